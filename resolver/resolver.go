// Package resolver implements the authoritative query algorithm: given a
// decoded request and a zone store snapshot, it produces a decoded
// response plus a transport hint telling the caller whether to send a
// single reply or stream a zone transfer.
package resolver

import (
	"github.com/miekg/dns"

	"github.com/coredomain/authnsd/store"
	"github.com/coredomain/authnsd/zone"
)

// MaxCNAMEHops bounds CNAME chase depth within a single zone.
const MaxCNAMEHops = 8

// Hint tells the caller how to deliver the response.
type Hint int

const (
	// Inline means resp is the single, complete reply.
	Inline Hint = iota
	// AXFR means the caller must call StreamAXFR to produce and
	// send the zone transfer frames; resp is nil.
	AXFR
)

// Proto identifies the transport a request arrived on, for payload-size
// capping.
type Proto int

const (
	UDP Proto = iota
	TCP
)

const (
	datagramCap = 512
	streamCap   = 65535
	defaultUDPPayload = 4096
)

// Process runs the query algorithm against req and returns the response
// to send (nil when hint is AXFR) and a transport hint.
func Process(req *dns.Msg, st *store.Store, proto Proto) (*dns.Msg, Hint) {
	resp := new(dns.Msg)
	resp.SetReply(req)
	resp.Authoritative = false
	resp.RecursionAvailable = false

	reqEDNS := req.IsEdns0()
	payload := uint16(datagramCap)
	if reqEDNS != nil {
		opts := 0
		for _, rr := range req.Extra {
			if rr.Header().Rrtype == dns.TypeOPT {
				opts++
			}
		}
		if reqEDNS.Version() != 0 || opts > 1 {
			resp.SetEdns0(defaultUDPPayload, false)
			resp.Rcode = dns.RcodeBadVers
			setExtendedRcode(resp, dns.RcodeBadVers)
			return resp, Inline
		}
		payload = reqEDNS.UDPSize()
		if payload < dns.MinMsgSize {
			payload = dns.MinMsgSize
		}
	}

	if len(req.Question) != 1 {
		resp.Rcode = dns.RcodeFormatError
		return resp, Inline
	}
	q := req.Question[0]

	if req.Opcode != dns.OpcodeQuery {
		resp.Rcode = dns.RcodeNotImplemented
		return resp, Inline
	}

	if q.Qclass != dns.ClassINET {
		resp.Rcode = dns.RcodeNotImplemented
		return resp, Inline
	}

	if q.Qtype == dns.TypeAXFR {
		if proto != TCP {
			resp.Rcode = dns.RcodeRefused
			return resp, Inline
		}
		if _, ok := st.AuthoritativeFor(q.Name); !ok {
			resp.Rcode = dns.RcodeRefused
			return resp, Inline
		}
		return nil, AXFR
	}

	z, ok := st.AuthoritativeFor(q.Name)
	if !ok {
		resp.Rcode = dns.RcodeRefused
		return resp, Inline
	}

	do := reqEDNS != nil && reqEDNS.Do()
	answer(resp, z, q.Name, q.Qtype, do)

	addGlue(resp, z)
	dedup(resp)

	if reqEDNS != nil {
		resp.SetEdns0(defaultUDPPayload, do)
	}

	// payload already carries the right datagram limit (512 absent
	// EDNS0, the advertised UDPSize otherwise); re-clamping it to the
	// 512 default here would truncate every EDNS0 response needlessly.
	// TCP isn't payload-bounded at all, only by the stream frame cap.
	effectiveCap := payload
	if proto == TCP {
		effectiveCap = streamCap
	}
	truncate(resp, proto, effectiveCap)

	return resp, Inline
}

// answer resolves (qname, qtype) within z and fills resp's answer and
// authority sections per the query algorithm.
func answer(resp *dns.Msg, z *zone.Zone, qname string, qtype uint16, do bool) {
	qname = zone.Canonical(qname)

	if qtype == dns.TypeANY {
		types := z.Types(qname)
		if len(types) > 0 {
			if rrset, ok := z.Lookup(qname, types[0]); ok && len(rrset) > 0 {
				resp.Answer = append(resp.Answer, rrset[0])
				resp.Authoritative = true
				return
			}
		}
		resp.Authoritative = true
		resp.Ns = negativeSOA(z)
		return
	}

	if z.HasName(qname) {
		resp.Authoritative = true

		if rrset, ok := z.Lookup(qname, qtype); ok {
			resp.Answer = append(resp.Answer, rrset...)
			appendRRSIG(resp, z, qname, qtype, do)
			return
		}

		if cname, ok := z.Lookup(qname, dns.TypeCNAME); ok && qtype != dns.TypeCNAME {
			chaseCNAME(resp, z, qname, cname, qtype, do)
			return
		}

		resp.Ns = negativeSOA(z)
		return
	}

	rrset, blocked, ok := z.Wildcard(qname, qtype)
	if ok {
		resp.Authoritative = true
		resp.Answer = append(resp.Answer, synthesize(rrset, qname)...)
		appendRRSIG(resp, z, rrset[0].Header().Name, qtype, do)
		return
	}
	if blocked {
		resp.Authoritative = true
		resp.Ns = negativeSOA(z)
		return
	}

	resp.Authoritative = true
	resp.Rcode = dns.RcodeNameError
	resp.Ns = negativeSOA(z)
}

// chaseCNAME follows a CNAME chain within z up to MaxCNAMEHops, stopping
// at the zone boundary or a resolved answer, whichever comes first.
func chaseCNAME(resp *dns.Msg, z *zone.Zone, owner string, first zone.RRSet, qtype uint16, do bool) {
	visited := make(map[string]bool, MaxCNAMEHops)
	cur := owner
	set := first

	for hop := 0; hop < MaxCNAMEHops; hop++ {
		if visited[cur] {
			return
		}
		visited[cur] = true

		resp.Answer = append(resp.Answer, set...)
		appendRRSIG(resp, z, cur, dns.TypeCNAME, do)

		target := zone.Canonical(set[0].(*dns.CNAME).Target)

		if !z.HasName(target) {
			return
		}

		if rrset, ok := z.Lookup(target, qtype); ok {
			resp.Answer = append(resp.Answer, rrset...)
			appendRRSIG(resp, z, target, qtype, do)
			return
		}

		next, ok := z.Lookup(target, dns.TypeCNAME)
		if !ok || qtype == dns.TypeCNAME {
			return
		}

		cur, set = target, next
	}
}

// synthesize substitutes rrset's wildcard owner with qname, per RFC 1034
// §4.3.3, returning freshly cloned records so the zone's stored set is
// never mutated.
func synthesize(rrset zone.RRSet, qname string) zone.RRSet {
	out := make(zone.RRSet, len(rrset))
	for i, rr := range rrset {
		clone := dns.Copy(rr)
		clone.Header().Name = qname
		out[i] = clone
	}
	return out
}

// appendRRSIG adds the RRSIG set covering (owner, qtype) to resp's answer
// when do is set, per the DO-bit propagation rule.
func appendRRSIG(resp *dns.Msg, z *zone.Zone, owner string, qtype uint16, do bool) {
	if !do || qtype == dns.TypeRRSIG {
		return
	}
	sigs, ok := z.Lookup(owner, dns.TypeRRSIG)
	if !ok {
		return
	}
	for _, rr := range sigs {
		if sig, ok := rr.(*dns.RRSIG); ok && sig.TypeCovered == qtype {
			resp.Answer = append(resp.Answer, rr)
		}
	}
}

// negativeSOA builds the authority section carried on NXDOMAIN and empty
// NOERROR answers: the zone's SOA with its MINIMUM field as the TTL.
func negativeSOA(z *zone.Zone) []dns.RR {
	soa := z.SOA()
	if soa == nil {
		return nil
	}
	neg := dns.Copy(soa).(*dns.SOA)
	neg.Hdr.Ttl = soa.Minttl
	return []dns.RR{neg}
}

func setExtendedRcode(m *dns.Msg, rcode int) {
	if opt := m.IsEdns0(); opt != nil {
		opt.SetExtendedRcode(uint16(rcode))
	}
}
