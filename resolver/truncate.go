package resolver

import "github.com/miekg/dns"

// truncate enforces the size cap on datagram responses by stripping
// sections in order (additional, then authority) until the packed
// message fits, finally falling back to a minimal TC=1 response with
// only the question section. The EDNS0 OPT record, if any, lives in
// Extra too but survives every stage, the final fallback included:
// an EDNS0 query is answered with an OPT iff the request carried one,
// truncated or not. Stream transport is never truncated.
func truncate(resp *dns.Msg, proto Proto, capBytes uint16) {
	if proto == TCP {
		return
	}
	if fits(resp, capBytes) {
		return
	}

	opt := resp.IsEdns0()
	resp.Extra = nil
	if opt != nil {
		resp.Extra = []dns.RR{opt}
	}
	if fits(resp, capBytes) {
		return
	}

	resp.Ns = nil
	if fits(resp, capBytes) {
		return
	}

	resp.Answer = nil
	resp.Truncated = true
}

func fits(m *dns.Msg, capBytes uint16) bool {
	packed, err := m.Pack()
	if err != nil {
		return false
	}
	return len(packed) <= int(capBytes)
}
