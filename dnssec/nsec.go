package dnssec

import (
	"strings"

	"github.com/miekg/dns"
)

// Verdict is the result of testing an NSEC record against a query name
// and type.
type Verdict int

const (
	// NoDenial means this NSEC record says nothing about the query.
	NoDenial Verdict = iota
	// NameCovered means qname falls strictly between owner and
	// next_domain: the name itself does not exist.
	NameCovered
	// TypeAbsent means qname equals owner but qtype is missing from its
	// type bitmap.
	TypeAbsent
)

// NSECDenies evaluates n against qname/qtype per RFC 4034 §4.1's
// intended use: an authenticated-denial structural check, not a
// signature verification.
func NSECDenies(n *dns.NSEC, qname string, qtype uint16) Verdict {
	if n == nil {
		return NoDenial
	}

	owner := n.Hdr.Name

	if canonicalCompare(qname, owner) == 0 {
		for _, t := range n.TypeBitMap {
			if t == qtype {
				return NoDenial
			}
		}
		return TypeAbsent
	}

	if nameCovered(owner, n.NextDomain, qname) {
		return NameCovered
	}

	return NoDenial
}

// nameCovered reports whether qname lies strictly between owner and next
// in canonical name order, wrapping at the end of the zone when next
// precedes owner (the last NSEC record in a zone points back to the
// apex).
func nameCovered(owner, next, qname string) bool {
	if canonicalCompare(owner, next) < 0 {
		return canonicalCompare(owner, qname) < 0 && canonicalCompare(qname, next) < 0
	}
	return canonicalCompare(owner, qname) < 0 || canonicalCompare(qname, next) < 0
}

// canonicalCompare orders two names per RFC 4034 §6.1: label-by-label
// from the rightmost label, case-insensitive, shorter-prefix names sort
// first when all shared labels are equal.
func canonicalCompare(a, b string) int {
	la, lb := canonicalLabels(a), canonicalLabels(b)

	n := len(la)
	if len(lb) < n {
		n = len(lb)
	}

	for i := 0; i < n; i++ {
		if la[i] != lb[i] {
			if la[i] < lb[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(la) < len(lb):
		return -1
	case len(la) > len(lb):
		return 1
	default:
		return 0
	}
}

func canonicalLabels(name string) []string {
	labels := dns.SplitDomainName(strings.ToLower(dns.Fqdn(name)))
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return labels
}
