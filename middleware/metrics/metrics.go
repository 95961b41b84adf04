// Package metrics is the chain stage that drives the core metrics.Sink
// from observed requests and responses.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coredomain/authnsd/config"
	coremetrics "github.com/coredomain/authnsd/metrics"
	"github.com/coredomain/authnsd/middleware"
)

// Metrics is the chain stage wrapping a coremetrics.Sink.
type Metrics struct {
	sink coremetrics.Sink
}

func init() {
	middleware.Register(name, func(cfg *config.Config) middleware.Handler {
		return New(cfg)
	})
}

// New builds the metrics stage. Telemetry is opt-in: without an
// api_listen configured, observations go to a Noop sink so the pipeline
// never special-cases a missing sink.
func New(cfg *config.Config) *Metrics {
	var sink coremetrics.Sink = coremetrics.Noop{}
	if cfg != nil && cfg.Server.APIListen != "" {
		sink = coremetrics.NewPrometheus(prometheus.DefaultRegisterer)
	}
	return &Metrics{sink: sink}
}

// NewWithSink builds the metrics stage against an already-constructed
// sink instead of choosing one from the config.
func NewWithSink(sink coremetrics.Sink) *Metrics {
	return &Metrics{sink: sink}
}

// Name returns the middleware name.
func (m *Metrics) Name() string { return name }

// ServeDNS implements middleware.Handler.
func (m *Metrics) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	m.sink.IncTotal()

	switch ch.Writer.Proto() {
	case "udp":
		m.sink.IncUDP()
	case "tcp":
		m.sink.IncTCP()
	}

	ch.Next(ctx)

	if !ch.Writer.Written() {
		return
	}

	m.sink.IncByRcode(ch.Writer.Rcode())
}

const name = "metrics"
