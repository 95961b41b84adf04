package zone

import (
	"fmt"

	"github.com/miekg/dns"
)

// Builder assembles a Zone record by record, then validates it once on
// Build. It is the only way to produce a *Zone; there is no in-place
// mutation once built.
type Builder struct {
	origin string

	owners     map[string]*ownerRecords
	ownerOrder []string
}

// NewBuilder starts a builder for origin, which must already be an
// absolute, lowercased name (callers qualify before constructing one).
func NewBuilder(origin string) *Builder {
	return &Builder{
		origin: Canonical(origin),
		owners: make(map[string]*ownerRecords),
	}
}

// Add inserts rr into its owner+type record set, preserving insertion
// order within the set and across owners.
func (b *Builder) Add(rr dns.RR) error {
	if rr.Header().Class != dns.ClassINET {
		return fmt.Errorf("unsupported class %s at %s", dns.ClassToString[rr.Header().Class], rr.Header().Name)
	}

	owner := Canonical(rr.Header().Name)
	if !IsSubdomain(b.origin, owner) {
		return fmt.Errorf("%w: owner %s is outside origin %s", ErrInvalidZone, owner, b.origin)
	}

	if err := validateWildcardPosition(owner); err != nil {
		return err
	}

	o, ok := b.owners[owner]
	if !ok {
		o = &ownerRecords{sets: make(map[uint16]RRSet)}
		b.owners[owner] = o
		b.ownerOrder = append(b.ownerOrder, owner)
	}

	t := rr.Header().Rrtype
	if _, ok := o.sets[t]; !ok {
		o.typeOrder = append(o.typeOrder, t)
	}
	o.sets[t] = append(o.sets[t], rr)

	return nil
}

// Build validates the accumulated records and returns the finished Zone.
func (b *Builder) Build() (*Zone, error) {
	origin := b.owners[b.origin]
	if origin == nil {
		return nil, fmt.Errorf("%w: no records at origin %s", ErrInvalidZone, b.origin)
	}

	soaSet, ok := origin.sets[dns.TypeSOA]
	if !ok {
		return nil, fmt.Errorf("%w: missing SOA at %s", ErrInvalidZone, b.origin)
	}
	if len(soaSet) != 1 {
		return nil, fmt.Errorf("%w: %d SOA records at %s, want exactly one", ErrInvalidZone, len(soaSet), b.origin)
	}
	soa, ok := soaSet[0].(*dns.SOA)
	if !ok {
		return nil, fmt.Errorf("%w: SOA record has wrong RDATA type", ErrInvalidZone)
	}

	if nsSet, ok := origin.sets[dns.TypeNS]; !ok || len(nsSet) == 0 {
		return nil, fmt.Errorf("%w: no NS records at origin %s", ErrInvalidZone, b.origin)
	}

	for owner, o := range b.owners {
		if err := validateCNAMEExclusivity(owner, o); err != nil {
			return nil, err
		}
		if err := validateRRSIGCoverage(owner, o); err != nil {
			return nil, err
		}
	}

	z := &Zone{
		Origin:        b.origin,
		owners:        b.owners,
		ownerOrder:    b.ownerOrder,
		hasDescendant: descendantIndex(b.origin, b.ownerOrder),
		soa:           soa,
	}

	return z, nil
}

// descendantIndex computes, for every strict ancestor (within the zone)
// of an owner name, that the ancestor has at least one descendant with
// records — the empty-non-terminal index used to gate wildcard synthesis.
func descendantIndex(origin string, owners []string) map[string]bool {
	idx := make(map[string]bool)

	for _, owner := range owners {
		if leftmostIsWildcard(owner) {
			// A wildcard owner's own parent must stay synthesizable; it
			// is not "real" data that shadows the wildcard it names.
			continue
		}
		for ancestor := parent(owner); ancestor != ""; ancestor = parent(ancestor) {
			idx[ancestor] = true
			if ancestor == origin {
				break
			}
		}
	}

	return idx
}

func validateWildcardPosition(owner string) error {
	if containsWildcardLabel(owner) && !leftmostIsWildcard(owner) {
		return fmt.Errorf("%w: wildcard label in %s is not leftmost", ErrInvalidZone, owner)
	}
	return nil
}

func leftmostIsWildcard(owner string) bool {
	b := nextLabelBoundary(owner)
	if b < 0 {
		return owner == "*"
	}
	return owner[:b] == "*"
}

func containsWildcardLabel(owner string) bool {
	rest := owner
	for {
		b := nextLabelBoundary(rest)
		var label string
		if b < 0 {
			label = rest
		} else {
			label = rest[:b]
		}
		if label == "*" {
			return true
		}
		if b < 0 {
			return false
		}
		rest = rest[b+1:]
	}
}

func validateCNAMEExclusivity(owner string, o *ownerRecords) error {
	if _, ok := o.sets[dns.TypeCNAME]; !ok {
		return nil
	}
	for t := range o.sets {
		switch t {
		case dns.TypeCNAME, dns.TypeRRSIG, dns.TypeNSEC:
			continue
		default:
			return fmt.Errorf("%w: CNAME coexists with %s at %s", ErrInvalidZone, dns.TypeToString[t], owner)
		}
	}
	return nil
}

func validateRRSIGCoverage(owner string, o *ownerRecords) error {
	rrsigs, ok := o.sets[dns.TypeRRSIG]
	if !ok {
		return nil
	}
	for _, rr := range rrsigs {
		sig, ok := rr.(*dns.RRSIG)
		if !ok {
			continue
		}
		if _, ok := o.sets[sig.TypeCovered]; !ok {
			return fmt.Errorf("%w: RRSIG at %s covers %s with no matching record set", ErrInvalidZone, owner, dns.TypeToString[sig.TypeCovered])
		}
	}
	return nil
}
