package resolver

import (
	"context"

	"github.com/miekg/dns"

	"github.com/coredomain/authnsd/middleware"
	"github.com/coredomain/authnsd/store"
)

// Handler is the terminal stage of the processing chain: it runs the
// query algorithm against the current store snapshot and writes the
// result, streaming an AXFR instead when Process says to.
type Handler struct {
	idx *store.Index
}

// NewHandler builds the terminal resolver stage against idx. idx is
// read fresh (Snapshot) on every query, so a concurrent reload is
// picked up without the handler needing to know about it.
func NewHandler(idx *store.Index) *Handler {
	return &Handler{idx: idx}
}

// Name returns the middleware name.
func (h *Handler) Name() string { return "resolver" }

// ServeDNS implements middleware.Handler.
func (h *Handler) ServeDNS(_ context.Context, ch *middleware.Chain) {
	proto := UDP
	if ch.Writer.Proto() == "tcp" {
		proto = TCP
	}

	st := h.idx.Snapshot()

	resp, hint := Process(ch.Request, st, proto)
	if hint == AXFR {
		raw := ch.Writer.Raw()
		if err := StreamAXFR(ch.Request, st, func(m *dns.Msg) error { return raw.WriteMsg(m) }); err != nil {
			ch.CancelWithRcode(dns.RcodeServerFailure, false)
		}
		return
	}

	_ = ch.Writer.WriteMsg(resp)
}
