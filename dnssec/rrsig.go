package dnssec

import "github.com/miekg/dns"

// RRSIGTimeValid reports whether now falls within [inception, expiration]
// using RFC 1982 serial-number arithmetic, so it stays correct across the
// 32-bit wraparound rather than comparing the fields as plain integers.
func RRSIGTimeValid(sig *dns.RRSIG, now uint32) bool {
	if sig == nil {
		return false
	}
	return serialLE(sig.Inception, now) && serialLE(now, sig.Expiration)
}

// serialLE reports whether a precedes or equals b in RFC 1982 serial
// order.
func serialLE(a, b uint32) bool {
	return int32(a-b) <= 0
}
