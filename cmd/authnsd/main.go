// Command authnsd runs the authoritative DNS server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/semihalev/zlog/v2"

	"github.com/coredomain/authnsd/config"
	"github.com/coredomain/authnsd/middleware"
	_ "github.com/coredomain/authnsd/middleware/metrics"
	_ "github.com/coredomain/authnsd/middleware/ratelimit"
	_ "github.com/coredomain/authnsd/middleware/recovery"
	"github.com/coredomain/authnsd/resolver"
	"github.com/coredomain/authnsd/server"
	"github.com/coredomain/authnsd/store"
)

var flagCfgPath = flag.String("config", "authnsd.toml", "location of the config file, if not found it will be generated")

func levelFromString(s string) zlog.Level {
	switch s {
	case "trace":
		return zlog.LevelDebug
	case "debug":
		return zlog.LevelDebug
	case "warn":
		return zlog.LevelWarn
	case "error":
		return zlog.LevelError
	default:
		return zlog.LevelInfo
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*flagCfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config loading failed:", err)
		os.Exit(1)
	}

	logger := zlog.NewStructured()
	logger.SetWriter(zlog.StdoutTerminal())
	logger.SetLevel(levelFromString(cfg.Server.LogLevel))
	zlog.SetDefault(logger)

	zlog.Info("starting authnsd")

	middleware.SetConfig(cfg)
	if err := middleware.Setup(); err != nil {
		zlog.Error("middleware setup failed", "error", err.Error())
		os.Exit(1)
	}

	sources := make([]store.ZoneSource, 0, len(cfg.Zones))
	for _, z := range cfg.Zones {
		sources = append(sources, store.ZoneSource{Name: z.Name, File: z.File})
	}

	reloader, err := store.NewReloader(sources)
	if err != nil {
		zlog.Error("zone load failed", "error", err.Error())
		os.Exit(1)
	}

	external := make(chan struct{}, 1)
	go reloader.Watch(external)
	defer reloader.Stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	go func() {
		for range hup {
			zlog.Info("reload requested", "signal", "SIGHUP")
			select {
			case external <- struct{}{}:
			default:
			}
		}
	}()

	handlers := []middleware.Handler{
		middleware.Get("recovery"),
		middleware.Get("metrics"),
		middleware.Get("ratelimit"),
		resolver.NewHandler(reloader.Index()),
	}
	srv := server.New(cfg, handlers)

	ctx, cancel := context.WithCancel(context.Background())
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigint
		zlog.Info("stopping authnsd")
		cancel()
	}()

	srv.Run(ctx)
}
