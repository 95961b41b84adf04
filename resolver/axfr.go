package resolver

import (
	"fmt"

	"github.com/miekg/dns"

	"github.com/coredomain/authnsd/store"
)

// Send delivers one framed AXFR response message to the peer. Transport
// implementations pass dns.ResponseWriter.WriteMsg.
type Send func(*dns.Msg) error

// StreamAXFR sends the zone named by req's question as a sequence of
// length-prefixed messages: the SOA, every record in the zone, and the
// SOA again as terminator, chunked to stay under the stream size cap.
// Process must have already confirmed req is an authorized TCP AXFR
// query before this is called.
func StreamAXFR(req *dns.Msg, st *store.Store, send Send) error {
	q := req.Question[0]

	z, ok := st.AuthoritativeFor(q.Name)
	if !ok {
		resp := new(dns.Msg)
		resp.SetReply(req)
		resp.Rcode = dns.RcodeRefused
		return send(resp)
	}

	records := z.AllRecords()
	records = append(records, z.SOA())

	frame := new(dns.Msg)
	frame.SetReply(req)
	frame.Authoritative = true

	flush := func() error {
		if len(frame.Answer) == 0 {
			return nil
		}
		if err := send(frame); err != nil {
			return fmt.Errorf("axfr send: %w", err)
		}
		frame = new(dns.Msg)
		frame.SetReply(req)
		frame.Authoritative = true
		return nil
	}

	for _, rr := range records {
		frame.Answer = append(frame.Answer, rr)
		packed, err := frame.Pack()
		if err != nil {
			frame.Answer = frame.Answer[:len(frame.Answer)-1]
			if err := flush(); err != nil {
				return err
			}
			frame.Answer = append(frame.Answer, rr)
			continue
		}
		if len(packed) > streamCap {
			frame.Answer = frame.Answer[:len(frame.Answer)-1]
			if err := flush(); err != nil {
				return err
			}
			frame.Answer = append(frame.Answer, rr)
		}
	}

	return flush()
}
