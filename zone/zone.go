// Package zone holds the typed, validated in-memory representation of a
// single authoritative zone: an origin, its record sets keyed by owner
// name and type, and the indexes the query processor needs to resolve
// names without re-walking the whole zone on every query.
package zone

import (
	"strings"

	"github.com/miekg/dns"
)

// RRSet is a record set: all records sharing an owner name and type.
// Order is insertion order, stable across queries against one generation.
type RRSet []dns.RR

type ownerRecords struct {
	sets      map[uint16]RRSet
	typeOrder []uint16
}

// Zone is an immutable, validated collection of records for one origin.
// Build it with a Builder; there is no way to mutate a Zone in place.
type Zone struct {
	Origin string // lowercased, fully qualified

	owners     map[string]*ownerRecords
	ownerOrder []string

	// hasDescendant holds every strict ancestor (within the zone) of a
	// non-wildcard owner name, whether or not the ancestor carries records
	// itself; IsEmptyNonTerminal combines it with HasName to find the
	// empty non-terminals that block wildcard synthesis.
	hasDescendant map[string]bool

	soa *dns.SOA
}

// Lookup returns the record set for owner+qtype, if any.
func (z *Zone) Lookup(owner string, qtype uint16) (RRSet, bool) {
	o, ok := z.owners[Canonical(owner)]
	if !ok {
		return nil, false
	}
	rrset, ok := o.sets[qtype]
	return rrset, ok
}

// Types returns every record type present at owner, in insertion order.
func (z *Zone) Types(owner string) []uint16 {
	o, ok := z.owners[Canonical(owner)]
	if !ok {
		return nil
	}
	return o.typeOrder
}

// HasName reports whether owner carries at least one record of its own.
// It does not report true for empty non-terminals; use IsEmptyNonTerminal
// for that.
func (z *Zone) HasName(owner string) bool {
	_, ok := z.owners[Canonical(owner)]
	return ok
}

// IsEmptyNonTerminal reports whether owner carries no records of its own
// but some name below it, within this zone, does.
func (z *Zone) IsEmptyNonTerminal(owner string) bool {
	owner = Canonical(owner)
	if z.HasName(owner) {
		return false
	}
	return z.hasDescendant[owner]
}

// Wildcard looks up a wildcard record set covering qname, walking qname's
// ancestors from the immediate parent up to and including the origin. The
// closest ancestor wins. An empty non-terminal encountered before a
// matching wildcard blocks synthesis entirely (blocked=true, no set).
func (z *Zone) Wildcard(qname string, qtype uint16) (rrset RRSet, blocked bool, ok bool) {
	qname = Canonical(qname)

	ancestor := parent(qname)
	for {
		if ancestor == "" {
			return nil, false, false
		}

		if z.IsEmptyNonTerminal(ancestor) {
			return nil, true, false
		}

		if rrset, ok := z.Lookup("*."+ancestor, qtype); ok {
			return rrset, false, true
		}
		// A wildcard owner can exist without the queried type; that is
		// not itself a block, just a miss at this ancestor level.

		if ancestor == z.Origin {
			return nil, false, false
		}
		ancestor = parent(ancestor)
	}
}

// SOA returns the zone's single SOA record.
func (z *Zone) SOA() *dns.SOA { return z.soa }

// NS returns the NS record set at the zone origin.
func (z *Zone) NS() RRSet {
	rrset, _ := z.Lookup(z.Origin, dns.TypeNS)
	return rrset
}

// AllRecords returns every record in the zone in a canonical, stable
// order for zone transfer: the SOA first, then the remaining record sets
// grouped by owner in insertion order.
func (z *Zone) AllRecords() []dns.RR {
	all := make([]dns.RR, 0, 64)
	all = append(all, z.soa)

	for _, owner := range z.ownerOrder {
		o := z.owners[owner]
		for _, t := range o.typeOrder {
			if owner == z.Origin && t == dns.TypeSOA {
				continue
			}
			all = append(all, o.sets[t]...)
		}
	}

	return all
}

// Canonical lowercases and fully-qualifies a name for use as a map key or
// comparison, matching the wire codec's own canonicalization.
func Canonical(name string) string {
	return strings.ToLower(dns.Fqdn(name))
}

// parent strips the leftmost label from a fully-qualified name. parent of
// the root (".") is "".
func parent(name string) string {
	if name == "." || name == "" {
		return ""
	}
	idx := nextLabelBoundary(name)
	if idx < 0 {
		return "."
	}
	return name[idx+1:]
}

// nextLabelBoundary finds the first unescaped '.' in name, or -1.
func nextLabelBoundary(name string) int {
	for i := 0; i < len(name); i++ {
		if name[i] == '\\' {
			i++
			continue
		}
		if name[i] == '.' {
			return i
		}
	}
	return -1
}

// IsSubdomain reports whether name is origin or a descendant of origin,
// both already canonical.
func IsSubdomain(origin, name string) bool {
	if name == origin {
		return true
	}
	return strings.HasSuffix(name, "."+origin)
}
