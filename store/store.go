// Package store holds the concurrent, atomically replaceable index of
// loaded zones the query processor resolves names against.
package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coredomain/authnsd/zone"
)

// ErrDuplicateOrigin is returned by Build when two zones share an origin.
var ErrDuplicateOrigin = errors.New("duplicate zone origin")

// Store is an immutable collection of zones, keyed by origin. Build a new
// one on every reload; never mutate one in place.
type Store struct {
	zones map[string]*zone.Zone
}

// Build validates that no two zones share an origin and returns the
// finished, immutable Store.
func Build(zones []*zone.Zone) (*Store, error) {
	byOrigin := make(map[string]*zone.Zone, len(zones))

	for _, z := range zones {
		if _, ok := byOrigin[z.Origin]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateOrigin, z.Origin)
		}
		byOrigin[z.Origin] = z
	}

	return &Store{zones: byOrigin}, nil
}

// AuthoritativeFor returns the zone whose origin is the longest suffix of
// name among all loaded zones, walking name's ancestors from itself up to
// the root.
func (s *Store) AuthoritativeFor(name string) (*zone.Zone, bool) {
	name = zone.Canonical(name)

	for candidate := name; ; {
		if z, ok := s.zones[candidate]; ok {
			return z, true
		}
		if candidate == "." || candidate == "" {
			return nil, false
		}
		candidate = stripLabel(candidate)
	}
}

// Origins returns every loaded zone's origin, for diagnostics.
func (s *Store) Origins() []string {
	origins := make([]string, 0, len(s.zones))
	for o := range s.zones {
		origins = append(origins, o)
	}
	return origins
}

func stripLabel(name string) string {
	idx := strings.IndexByte(name, '.')
	if idx < 0 {
		return "."
	}
	rest := name[idx+1:]
	if rest == "" {
		return "."
	}
	return rest
}
