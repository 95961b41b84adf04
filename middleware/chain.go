package middleware

import (
	"context"

	"github.com/miekg/dns"
)

// Handler is a single stage of the processing chain. ServeDNS does its
// work and then either calls ch.Next to invoke the next stage, or
// ch.Cancel/ch.CancelWithRcode to stop the chain early.
type Handler interface {
	ServeDNS(ctx context.Context, ch *Chain)
}

// Chain type.
type Chain struct {
	Writer  ResponseWriter
	Request *dns.Msg

	handlers []Handler

	head  int
	tail  int
	count int
}

// NewChain return new fresh chain.
func NewChain(handlers []Handler) *Chain {
	return &Chain{
		Writer:   &responseWriter{},
		handlers: handlers,
		count:    len(handlers),
	}
}

// (*Chain).Next next call next dns handler in the chain.
func (ch *Chain) Next(ctx context.Context) {
	if ch.count == 0 {
		return
	}

	handler := ch.handlers[ch.head]
	ch.head = (ch.head + 1) % len(ch.handlers)
	ch.count--

	handler.ServeDNS(ctx, ch)
}

// (*Chain).Cancel cancel next calls.
func (ch *Chain) Cancel() {
	ch.count = 0
}

// (*Chain).CancelWithRcode cancelWithRcode next calls with rcode.
func (ch *Chain) CancelWithRcode(rcode int, do bool) {
	m := new(dns.Msg)
	m.SetRcode(ch.Request, rcode)

	m.RecursionAvailable = false

	if reqOpt := ch.Request.IsEdns0(); reqOpt != nil {
		m.SetEdns0(reqOpt.UDPSize(), do)
	}

	_ = ch.Writer.WriteMsg(m)

	ch.count = 0
}

// (*Chain).Reset reset the chain variables.
func (ch *Chain) Reset(w dns.ResponseWriter, r *dns.Msg) {
	ch.Writer.Reset(w)
	ch.Request = r
	ch.count = len(ch.handlers)
	ch.head, ch.tail = 0, 0
}
