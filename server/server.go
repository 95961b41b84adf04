// Package server runs the datagram and stream DNS listeners, both built
// on github.com/miekg/dns's dns.Server, and dispatches every query
// through the processing chain.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/zlog/v2"

	"github.com/coredomain/authnsd/config"
	"github.com/coredomain/authnsd/middleware"
)

// Server owns the UDP and TCP listeners and the pooled processing
// chain every query is dispatched through.
type Server struct {
	addr        string
	idleTimeout time.Duration

	chainPool sync.Pool

	udp *dns.Server
	tcp *dns.Server
}

// New builds a Server wired to run, in order, the given chain handlers
// on every query (the fixed recovery → metrics → ratelimit → resolver
// pipeline is assembled by the caller and passed in as handlers).
func New(cfg *config.Config, handlers []middleware.Handler) *Server {
	s := &Server{
		addr:        cfg.Server.Listen,
		idleTimeout: cfg.Server.IdleTimeout.Duration,
	}

	s.chainPool.New = func() interface{} {
		return middleware.NewChain(handlers)
	}

	return s
}

// ServeDNS implements dns.Handler: the miekg/dns server loop calls this
// once per received query, already on its own goroutine.
func (s *Server) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	ch := s.chainPool.Get().(*middleware.Chain)
	defer s.chainPool.Put(ch)

	ch.Reset(w, r)
	ch.Next(context.Background())
}

// Run starts the UDP and TCP listeners and blocks until ctx is done,
// then shuts both down with ShutdownContext.
func (s *Server) Run(ctx context.Context) {
	timeout := s.idleTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	s.udp = &dns.Server{
		Addr:         s.addr,
		Net:          "udp",
		Handler:      s,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.tcp = &dns.Server{
		Addr:          s.addr,
		Net:           "tcp",
		Handler:       s,
		MaxTCPQueries: 2048,
		ReadTimeout:   timeout,
		WriteTimeout:  timeout,
	}

	go s.listen(s.udp)
	go s.listen(s.tcp)

	<-ctx.Done()
	s.Shutdown()
}

func (s *Server) listen(srv *dns.Server) {
	zlog.Info("dns listener starting", "net", srv.Net, "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil {
		zlog.Error("dns listener failed", "net", srv.Net, "addr", s.addr, "error", err)
	}
}

// Shutdown stops accepting new connections on both listeners, giving
// in-flight queries a bounded grace period to finish.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.udp != nil {
		if err := s.udp.ShutdownContext(ctx); err != nil {
			zlog.Warn("udp shutdown", "error", err)
		}
	}
	if s.tcp != nil {
		if err := s.tcp.ShutdownContext(ctx); err != nil {
			zlog.Warn("tcp shutdown", "error", err)
		}
	}
}
