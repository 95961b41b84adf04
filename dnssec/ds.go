package dnssec

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"

	"github.com/miekg/dns"
)

// DSMatches recomputes the digest of (owner canonical-wire || DNSKEY
// RDATA) and compares it against ds.Digest. Unknown digest types return
// false rather than erroring, since the caller treats this as a
// structural consistency check, not a hard failure.
func DSMatches(owner string, k *dns.DNSKEY, ds *dns.DS) bool {
	if k == nil || ds == nil {
		return false
	}

	h := digestHash(ds.DigestType)
	if h == nil {
		return false
	}

	rdata, err := dnskeyRDATA(k)
	if err != nil {
		return false
	}

	h.Write(canonicalWireName(owner))
	h.Write(rdata)

	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), ds.Digest)
}

func digestHash(digestType uint8) hash.Hash {
	switch digestType {
	case dns.SHA256:
		return sha256.New()
	case dns.SHA384:
		return sha512.New384()
	case 5: // SHA-512, not IANA-assigned but accepted per the spec's digest set
		return sha512.New()
	default:
		return nil
	}
}

// canonicalWireName encodes name as uncompressed wire-format labels,
// lowercased, for use in a DS/DNSKEY digest.
func canonicalWireName(name string) []byte {
	labels := dns.SplitDomainName(strings.ToLower(dns.Fqdn(name)))

	var buf []byte
	for _, l := range labels {
		buf = append(buf, byte(len(l)))
		buf = append(buf, []byte(l)...)
	}
	buf = append(buf, 0)

	return buf
}
