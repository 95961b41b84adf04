package resolver

import (
	"github.com/miekg/dns"

	"github.com/coredomain/authnsd/zone"
)

// glueTargets are the record types whose rdata names glue records may
// need to accompany.
var glueTargets = map[uint16]func(dns.RR) string{
	dns.TypeNS:  func(rr dns.RR) string { return rr.(*dns.NS).Ns },
	dns.TypeMX:  func(rr dns.RR) string { return rr.(*dns.MX).Mx },
	dns.TypeSRV: func(rr dns.RR) string { return rr.(*dns.SRV).Target },
}

// addGlue appends A/AAAA records for NS/MX/SRV targets referenced in
// resp's answer and authority sections, when z holds them.
func addGlue(resp *dns.Msg, z *zone.Zone) {
	targets := map[string]bool{}

	collect := func(rrs []dns.RR) {
		for _, rr := range rrs {
			extract, ok := glueTargets[rr.Header().Rrtype]
			if !ok {
				continue
			}
			targets[zone.Canonical(extract(rr))] = true
		}
	}
	collect(resp.Answer)
	collect(resp.Ns)

	for target := range targets {
		if a, ok := z.Lookup(target, dns.TypeA); ok {
			resp.Extra = append(resp.Extra, a...)
		}
		if aaaa, ok := z.Lookup(target, dns.TypeAAAA); ok {
			resp.Extra = append(resp.Extra, aaaa...)
		}
	}
}

// dedup removes records from resp.Extra that already appear verbatim in
// the answer or authority sections.
func dedup(resp *dns.Msg) {
	seen := make(map[string]bool, len(resp.Answer)+len(resp.Ns))
	for _, rr := range resp.Answer {
		seen[rr.String()] = true
	}
	for _, rr := range resp.Ns {
		seen[rr.String()] = true
	}

	out := resp.Extra[:0]
	extraSeen := make(map[string]bool, len(resp.Extra))
	for _, rr := range resp.Extra {
		key := rr.String()
		if seen[key] || extraSeen[key] {
			continue
		}
		extraSeen[key] = true
		out = append(out, rr)
	}
	resp.Extra = out
}
