package server

import (
	"context"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredomain/authnsd/config"
	"github.com/coredomain/authnsd/middleware"
	"github.com/coredomain/authnsd/mock"
)

type okHandler struct{}

func (okHandler) ServeDNS(ctx context.Context, ch *middleware.Chain) {
	resp := new(dns.Msg)
	resp.SetRcode(ch.Request, dns.RcodeSuccess)
	_ = ch.Writer.WriteMsg(resp)
}

func TestServer_ServeDNS_DispatchesThroughChain(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Listen: "127.0.0.1:0"}}
	s := New(cfg, []middleware.Handler{okHandler{}})

	w := mock.NewWriter("udp", "203.0.113.1:1234")
	req := new(dns.Msg)
	req.SetQuestion("example.com.", dns.TypeA)

	s.ServeDNS(w, req)

	require.True(t, w.Written())
	assert.Equal(t, dns.RcodeSuccess, w.Rcode())
}

func TestServer_ChainPoolReusesChains(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Listen: "127.0.0.1:0"}}
	s := New(cfg, []middleware.Handler{okHandler{}})

	for i := 0; i < 3; i++ {
		w := mock.NewWriter("udp", "203.0.113.2:0")
		req := new(dns.Msg)
		req.SetQuestion("example.com.", dns.TypeA)
		s.ServeDNS(w, req)
		require.True(t, w.Written())
	}
}

func TestServer_ShutdownWithoutRunIsSafe(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Listen: "127.0.0.1:0"}}
	s := New(cfg, nil)
	s.Shutdown()
}
