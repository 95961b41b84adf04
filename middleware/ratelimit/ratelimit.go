// Package ratelimit is the chain stage admitting or dropping queries
// per source IP via a token bucket, grounded on the teacher's
// LimiterStore shape.
package ratelimit

import (
	"context"

	"github.com/cespare/xxhash/v2"
	"github.com/miekg/dns"

	"github.com/coredomain/authnsd/config"
	coremetrics "github.com/coredomain/authnsd/metrics"
	"github.com/coredomain/authnsd/middleware"
)

// RateLimit is the chain stage. A rate of 0 disables it entirely: every
// query is admitted without consulting the store.
type RateLimit struct {
	store *LimiterStore
	rate  int
	sink  coremetrics.Sink
}

func init() {
	middleware.Register(name, func(cfg *config.Config) middleware.Handler {
		return New(cfg)
	})
}

// New builds the rate limiter from cfg.Server.RateLimit.
func New(cfg *config.Config) *RateLimit {
	r := cfg.Server.RateLimit
	return &RateLimit{
		store: NewLimiterStore(storeSize, r),
		rate:  r,
		sink:  coremetrics.Noop{},
	}
}

// NewWithSink builds the rate limiter against an already-constructed
// metrics sink; New always uses a Noop sink.
func NewWithSink(cfg *config.Config, sink coremetrics.Sink) *RateLimit {
	r := New(cfg)
	r.sink = sink
	return r
}

// Name returns the middleware name.
func (r *RateLimit) Name() string { return name }

// ServeDNS implements middleware.Handler.
func (r *RateLimit) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	if r.rate == 0 {
		ch.Next(ctx)
		return
	}

	ip := ch.Writer.RemoteIP()
	if ip == nil {
		ch.Next(ctx)
		return
	}

	l := r.store.Get(hashIP(ip))
	if !l.rl.Allow() {
		r.sink.IncRateLimited()
		ch.CancelWithRcode(dns.RcodeRefused, false)
		return
	}

	ch.Next(ctx)
}

func hashIP(ip []byte) uint64 {
	h := xxhash.New()
	_, _ = h.Write(ip)
	return h.Sum64()
}

const (
	storeSize = 256 * 100
	name      = "ratelimit"
)
