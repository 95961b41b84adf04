// Package zonefile parses the standard DNS master-file text format into a
// validated zone.Zone. The lexical and structural layer (comments,
// parenthesis continuation, owner inheritance, $ORIGIN/$TTL substitution)
// is this package's own; per-type RDATA grammar is delegated to
// github.com/miekg/dns's own line parser once a logical line has been
// assembled, rather than reimplemented here.
package zonefile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"github.com/semihalev/zlog/v2"

	"github.com/coredomain/authnsd/zone"
)

// supportedTypes is the record-type set this server understands (§3 of
// the originating spec). Anything else is a whole-file parse failure.
var supportedTypes = map[string]uint16{
	"A": dns.TypeA, "AAAA": dns.TypeAAAA, "NS": dns.TypeNS, "SOA": dns.TypeSOA,
	"CNAME": dns.TypeCNAME, "MX": dns.TypeMX, "TXT": dns.TypeTXT, "PTR": dns.TypePTR,
	"SRV": dns.TypeSRV, "CAA": dns.TypeCAA, "NAPTR": dns.TypeNAPTR, "TLSA": dns.TypeTLSA,
	"SSHFP": dns.TypeSSHFP, "DNSKEY": dns.TypeDNSKEY, "RRSIG": dns.TypeRRSIG,
	"NSEC": dns.TypeNSEC, "DS": dns.TypeDS,
}

// softTypes may fail to parse a single record body (bad base64/hex)
// without failing the whole zone; they are structural/informational
// DNSSEC and key-fingerprint types, not load-bearing for basic
// resolution (§4.C).
var softTypes = map[uint16]bool{
	dns.TypeDNSKEY: true, dns.TypeRRSIG: true, dns.TypeDS: true,
	dns.TypeSSHFP: true, dns.TypeTLSA: true,
}

const maxLabelLength = 63

// ParseFile reads the zone file at path and parses it for origin, which
// must be an absolute name (the caller's configured zone origin).
func ParseFile(path, origin string) (*zone.Zone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading zone file %s: %w", path, err)
	}
	return Parse(data, origin)
}

// Parse parses raw zone-file text for origin.
func Parse(data []byte, origin string) (*zone.Zone, error) {
	lines, err := scan(data)
	if err != nil {
		return nil, err
	}

	origin = zone.Canonical(origin)
	b := zone.NewBuilder(origin)

	p := &parser{
		builder:      b,
		origin:       origin,
		currentOwner: "",
	}

	for _, ll := range lines {
		if err := p.handle(ll); err != nil {
			return nil, err
		}
	}

	z, err := b.Build()
	if err != nil {
		return nil, err
	}

	return z, nil
}

type parser struct {
	builder      *zone.Builder
	origin       string // qualifies relative names; changes with $ORIGIN
	ttl          *uint32
	currentOwner string
}

func (p *parser) handle(ll logicalLine) error {
	if len(ll.tokens) == 0 {
		return nil
	}

	switch strings.ToUpper(ll.tokens[0]) {
	case "$ORIGIN":
		return p.directiveOrigin(ll)
	case "$TTL":
		return p.directiveTTL(ll)
	}

	return p.record(ll)
}

func (p *parser) directiveOrigin(ll logicalLine) error {
	if len(ll.tokens) < 2 {
		return errAt(ll.line, ll.col, "$ORIGIN requires a name")
	}
	p.origin = p.qualify(ll.tokens[1])
	return nil
}

func (p *parser) directiveTTL(ll logicalLine) error {
	if len(ll.tokens) < 2 {
		return errAt(ll.line, ll.col, "$TTL requires a value in seconds")
	}
	secs, err := strconv.ParseUint(ll.tokens[1], 10, 32)
	if err != nil {
		return errAt(ll.line, ll.col, "invalid $TTL value %q", ll.tokens[1])
	}
	v := uint32(secs)
	p.ttl = &v
	return nil
}

func (p *parser) record(ll logicalLine) error {
	fields := ll.tokens
	owner := p.currentOwner

	if !ll.leadingSpace {
		if len(fields) == 0 {
			return errAt(ll.line, ll.col, "empty record line")
		}
		owner = p.qualify(fields[0])
		fields = fields[1:]
		p.currentOwner = owner
	}

	if owner == "" {
		return errAt(ll.line, ll.col, "record has no owner name and none to inherit")
	}

	if err := checkLabelLengths(owner); err != nil {
		return errAt(ll.line, ll.col, "%s", err.Error())
	}

	ttl, fields, err := p.consumeTTLAndClass(fields, ll)
	if err != nil {
		return err
	}

	if len(fields) == 0 {
		return errAt(ll.line, ll.col, "record is missing a type")
	}
	typeName := strings.ToUpper(fields[0])
	rrtype, ok := supportedTypes[typeName]
	if !ok {
		return errAt(ll.line, ll.col, "unsupported record type %q", fields[0])
	}
	rdata := fields[1:]

	if ttl == nil {
		return errAt(ll.line, ll.col, "record has no TTL and no $TTL default is set")
	}

	line := fmt.Sprintf("%s %d IN %s %s", owner, *ttl, typeName, strings.Join(rdata, " "))
	// The current origin qualifies relative names inside the RDATA.
	zp := dns.NewZoneParser(strings.NewReader(line+"\n"), p.origin, "")
	rr, _ := zp.Next()
	if err := zp.Err(); err != nil {
		if softTypes[rrtype] {
			zlog.Warn("skipping malformed record", "owner", owner, "type", typeName, "line", ll.line, "error", err.Error())
			return nil
		}
		return errAt(ll.line, ll.col, "invalid %s record: %s", typeName, err.Error())
	}
	if rr == nil {
		// A bare comment or blank RDATA body parsed to nothing.
		return nil
	}

	if err := p.builder.Add(rr); err != nil {
		return errAt(ll.line, ll.col, "%s", err.Error())
	}

	return nil
}

// consumeTTLAndClass pulls the optional leading TTL and class fields off
// fields, in whichever order they appear (RFC 1035 allows either), and
// falls back to the current $TTL default when the record omits one.
func (p *parser) consumeTTLAndClass(fields []string, ll logicalLine) (*uint32, []string, error) {
	var ttl *uint32

	for i := 0; i < 2 && len(fields) > 0; i++ {
		if ttl == nil {
			if secs, err := strconv.ParseUint(fields[0], 10, 32); err == nil {
				v := uint32(secs)
				ttl = &v
				fields = fields[1:]
				continue
			}
		}

		switch strings.ToUpper(fields[0]) {
		case "IN":
			fields = fields[1:]
			continue
		case "CH", "HS", "CS", "ANY":
			return nil, nil, errAt(ll.line, ll.col, "unsupported class %q", fields[0])
		}

		break
	}

	if ttl == nil {
		ttl = p.ttl
	}

	return ttl, fields, nil
}

// qualify turns an owner or $ORIGIN token into an absolute, lowercased
// name: "@" is the current origin, a trailing dot means already absolute,
// anything else is relative to the current origin.
func (p *parser) qualify(name string) string {
	switch {
	case name == "@":
		return p.origin
	case strings.HasSuffix(name, "."):
		return zone.Canonical(name)
	default:
		return zone.Canonical(name + "." + p.origin)
	}
}

func checkLabelLengths(name string) error {
	for _, label := range dns.SplitDomainName(name) {
		if len(label) > maxLabelLength {
			return fmt.Errorf("label %q exceeds %d octets", label, maxLabelLength)
		}
	}
	return nil
}
