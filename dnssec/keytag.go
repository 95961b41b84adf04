// Package dnssec implements pure, stateless structural checks for DNSSEC
// record bodies. The zone parser and query processor do not call them;
// they are exercised by this package's tests. It performs no
// cryptographic signature verification.
package dnssec

import (
	"encoding/base64"
	"strings"

	"github.com/miekg/dns"
)

// KeyTag computes the RFC 4034 Appendix B key tag of a DNSKEY record,
// re-derived independently of the wire codec library's own KeyTag method
// so this helper is self-contained and directly testable.
func KeyTag(k *dns.DNSKEY) uint16 {
	if k == nil {
		return 0
	}

	rdata, err := dnskeyRDATA(k)
	if err != nil {
		return 0
	}

	if k.Algorithm == 1 { // RSA/MD5: legacy special case, RFC 4034 App. B.1
		if len(rdata) < 3 {
			return 0
		}
		return uint16(rdata[len(rdata)-3])<<8 | uint16(rdata[len(rdata)-2])
	}

	var ac uint32
	for i, b := range rdata {
		if i&1 == 0 {
			ac += uint32(b) << 8
		} else {
			ac += uint32(b)
		}
	}
	ac += (ac >> 16) & 0xFFFF

	return uint16(ac & 0xFFFF)
}

// dnskeyRDATA reconstructs the wire RDATA of a DNSKEY: Flags, Protocol,
// Algorithm, then the raw (base64-decoded) public key.
func dnskeyRDATA(k *dns.DNSKEY) ([]byte, error) {
	pub, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(k.PublicKey), ""))
	if err != nil {
		return nil, err
	}

	rdata := make([]byte, 0, 4+len(pub))
	rdata = append(rdata, byte(k.Flags>>8), byte(k.Flags))
	rdata = append(rdata, k.Protocol, k.Algorithm)
	rdata = append(rdata, pub...)

	return rdata, nil
}
