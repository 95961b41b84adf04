package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/semihalev/zlog/v2"
)

const configver = "1.0.0"

// Config holds the server's external field contract. Every field here
// except Server.Workers is consumed by the core pipeline; there is no knob
// for a concern the pipeline does not have (no blocklists, no forwarders,
// no cache sizing).
type Config struct {
	Version string

	Server ServerConfig
	Zones  []ZoneConfig
}

// ServerConfig groups the listener and pipeline settings.
type ServerConfig struct {
	Listen    string
	Workers   int
	RateLimit int `toml:"rate_limit"`
	APIListen string `toml:"api_listen"`
	LogLevel  string `toml:"log_level"`

	IdleTimeout Duration `toml:"idle_timeout"`
}

// ZoneConfig names one zone file to load at the given origin.
type ZoneConfig struct {
	Name string
	File string
}

// Duration wraps time.Duration so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

var defaultConfig = `# Config version, config and build versions can be different.
version = "%s"

[server]
# Address to bind to for the DNS server.
listen = "0.0.0.0:53"

# Advisory concurrency hint; both transports are goroutine-per-task
# regardless. The server does not read this value, and queries run
# without a per-query time budget.
workers = 4

# Queries per second admitted per source address. Zero disables limiting.
rate_limit = 0

# Address for the telemetry HTTP endpoint, left blank to disable.
api_listen = "127.0.0.1:8053"

# Log verbosity: trace, debug, info, warn, error.
log_level = "info"

# Idle timeout for stream (TCP) connections.
idle_timeout = "30s"

# Zones this server is authoritative for.
# [[zones]]
# name = "example.com."
# file = "/etc/authnsd/zones/example.com.zone"
`

// Load reads the TOML config at cfgfile, generating a commented template
// if it does not yet exist.
func Load(cfgfile string) (*Config, error) {
	cfg := new(Config)

	if _, err := os.Stat(cfgfile); os.IsNotExist(err) {
		if err := generateConfig(cfgfile); err != nil {
			return nil, err
		}
	}

	zlog.Info("Loading config file", "path", cfgfile)

	if _, err := toml.DecodeFile(cfgfile, cfg); err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	if cfg.Version != "" && cfg.Version != configver {
		zlog.Warn("Config file is out of version, check for changed fields", "have", cfg.Version, "want", configver)
	}

	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":53"
	}

	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}

	if cfg.Server.IdleTimeout.Duration == 0 {
		cfg.Server.IdleTimeout.Duration = 30 * time.Second
	}

	return cfg, nil
}

func generateConfig(path string) error {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not generate config: %w", err)
	}

	defer func() {
		if err := output.Close(); err != nil {
			zlog.Warn("Config generation failed while closing file", "error", err.Error())
		}
	}()

	r := strings.NewReader(fmt.Sprintf(defaultConfig, configver))
	if _, err := io.Copy(output, r); err != nil {
		return fmt.Errorf("could not copy default config: %w", err)
	}

	if abs, err := filepath.Abs(path); err == nil {
		zlog.Info("Default config file generated", "config", abs)
	}

	return nil
}
