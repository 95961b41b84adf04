package zone

import "errors"

// ErrInvalidZone is wrapped by every validation failure Builder reports:
// misplaced wildcards and owners outside the origin (from Add), and
// missing SOA, missing NS, CNAME exclusivity violations, and RRSIG
// coverage mismatches (from Build).
var ErrInvalidZone = errors.New("invalid zone")
