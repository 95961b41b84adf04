package zone

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func buildExampleZone(t *testing.T) *Zone {
	t.Helper()

	b := NewBuilder("example.com.")
	records := []string{
		"example.com. 3600 IN SOA ns1.example.com. admin.example.com. 2024010101 7200 3600 1209600 86400",
		"example.com. 3600 IN NS ns1.example.com.",
		"example.com. 3600 IN NS ns2.example.com.",
		"ns1.example.com. 3600 IN A 192.0.2.1",
		"ns2.example.com. 3600 IN A 192.0.2.2",
		"www.example.com. 3600 IN A 192.0.2.10",
		"www.example.com. 3600 IN AAAA 2001:db8::10",
		"mail.example.com. 3600 IN A 192.0.2.20",
		"example.com. 3600 IN MX 10 mail.example.com.",
		"example.com. 3600 IN TXT \"v=spf1 mx -all\"",
		"ftp.example.com. 3600 IN CNAME www.example.com.",
		"*.wild.example.com. 3600 IN A 192.0.2.77",
	}

	for _, r := range records {
		require.NoError(t, b.Add(mustRR(t, r)))
	}

	z, err := b.Build()
	require.NoError(t, err)
	return z
}

func TestZone_Lookup(t *testing.T) {
	z := buildExampleZone(t)

	rrset, ok := z.Lookup("WWW.example.com.", dns.TypeA)
	require.True(t, ok)
	require.Len(t, rrset, 1)
	assert.Equal(t, "192.0.2.10", rrset[0].(*dns.A).A.String())

	_, ok = z.Lookup("ns1.example.com.", dns.TypeAAAA)
	assert.False(t, ok)
}

func TestZone_HasName(t *testing.T) {
	z := buildExampleZone(t)

	assert.True(t, z.HasName("ns1.example.com."))
	assert.False(t, z.HasName("nonexistent.example.com."))
}

func TestZone_EmptyNonTerminal(t *testing.T) {
	b := NewBuilder("example.com.")
	require.NoError(t, b.Add(mustRR(t, "example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 2 3 4 5")))
	require.NoError(t, b.Add(mustRR(t, "example.com. 3600 IN NS ns1.example.com.")))
	require.NoError(t, b.Add(mustRR(t, "deep.sub.example.com. 3600 IN A 192.0.2.5")))

	z, err := b.Build()
	require.NoError(t, err)

	assert.True(t, z.IsEmptyNonTerminal("sub.example.com."))
	assert.False(t, z.IsEmptyNonTerminal("deep.sub.example.com."))
	assert.False(t, z.IsEmptyNonTerminal("other.example.com."))
}

func TestZone_Wildcard(t *testing.T) {
	z := buildExampleZone(t)

	rrset, blocked, ok := z.Wildcard("anything.wild.example.com.", dns.TypeA)
	require.True(t, ok)
	require.False(t, blocked)
	require.Len(t, rrset, 1)
	assert.Equal(t, "192.0.2.77", rrset[0].(*dns.A).A.String())

	_, _, ok = z.Wildcard("www.example.com.", dns.TypeA)
	assert.False(t, ok)
}

func TestZone_WildcardBlockedByENT(t *testing.T) {
	b := NewBuilder("example.com.")
	require.NoError(t, b.Add(mustRR(t, "example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 2 3 4 5")))
	require.NoError(t, b.Add(mustRR(t, "example.com. 3600 IN NS ns1.example.com.")))
	require.NoError(t, b.Add(mustRR(t, "*.wild.example.com. 3600 IN A 192.0.2.77")))
	require.NoError(t, b.Add(mustRR(t, "deep.leaf.wild.example.com. 3600 IN A 192.0.2.78")))

	z, err := b.Build()
	require.NoError(t, err)

	// leaf.wild.example.com. is an empty non-terminal (deep.leaf.wild exists
	// below it), so the wildcard at *.wild must not synthesize an answer
	// for other.leaf.wild.example.com.
	_, blocked, ok := z.Wildcard("other.leaf.wild.example.com.", dns.TypeA)
	assert.True(t, blocked)
	assert.False(t, ok)
}

func TestZone_AllRecords(t *testing.T) {
	z := buildExampleZone(t)

	all := z.AllRecords()
	require.NotEmpty(t, all)
	_, ok := all[0].(*dns.SOA)
	assert.True(t, ok, "first record in AXFR order must be the SOA")

	count := 0
	for _, rr := range all {
		if _, ok := rr.(*dns.SOA); ok {
			count++
		}
	}
	assert.Equal(t, 1, count, "SOA must appear exactly once in AllRecords")
}
