package resolver

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coredomain/authnsd/store"
	"github.com/coredomain/authnsd/zone"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	require.NoError(t, err)
	return rr
}

func buildExampleStore(t *testing.T) *store.Store {
	t.Helper()

	b := zone.NewBuilder("example.com.")
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
		"ftp.example.com. 3600 IN CNAME www.example.com.",
		"dangling.example.com. 3600 IN CNAME nowhere.elsewhere.com.",
		"*.wild.example.com. 3600 IN A 192.0.2.77",
	}
	for _, r := range records {
		require.NoError(t, b.Add(mustRR(t, r)))
	}
	z, err := b.Build()
	require.NoError(t, err)

	st, err := store.Build([]*zone.Zone{z})
	require.NoError(t, err)
	return st
}

func query(name string, qtype uint16) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	return m
}

func TestProcess_ExactMatch(t *testing.T) {
	st := buildExampleStore(t)

	resp, hint := Process(query("www.example.com.", dns.TypeA), st, UDP)
	require.Equal(t, Inline, hint)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	assert.True(t, resp.Authoritative)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, "192.0.2.10", resp.Answer[0].(*dns.A).A.String())
}

func TestProcess_NXDOMAIN(t *testing.T) {
	st := buildExampleStore(t)

	resp, _ := Process(query("nonexistent.example.com.", dns.TypeA), st, UDP)
	assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	require.Len(t, resp.Ns, 1)
	_, ok := resp.Ns[0].(*dns.SOA)
	assert.True(t, ok)
}

func TestProcess_NameExistsTypeAbsent(t *testing.T) {
	st := buildExampleStore(t)

	resp, _ := Process(query("www.example.com.", dns.TypeMX), st, UDP)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	assert.Empty(t, resp.Answer)
	require.Len(t, resp.Ns, 1)
}

func TestProcess_NotAuthoritative(t *testing.T) {
	st := buildExampleStore(t)

	resp, _ := Process(query("other.org.", dns.TypeA), st, UDP)
	assert.Equal(t, dns.RcodeRefused, resp.Rcode)
	assert.False(t, resp.Authoritative)
}

func TestProcess_WildcardSynthesis(t *testing.T) {
	st := buildExampleStore(t)

	resp, _ := Process(query("anything.wild.example.com.", dns.TypeA), st, UDP)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	assert.Equal(t, "anything.wild.example.com.", resp.Answer[0].Header().Name)
	assert.Equal(t, "192.0.2.77", resp.Answer[0].(*dns.A).A.String())
}

func TestProcess_CNAMEChase(t *testing.T) {
	st := buildExampleStore(t)

	resp, _ := Process(query("ftp.example.com.", dns.TypeA), st, UDP)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 2)
	_, ok := resp.Answer[0].(*dns.CNAME)
	assert.True(t, ok)
	a, ok := resp.Answer[1].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "192.0.2.10", a.A.String())
}

func TestProcess_CNAMELeavesZone(t *testing.T) {
	st := buildExampleStore(t)

	resp, _ := Process(query("dangling.example.com.", dns.TypeA), st, UDP)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 1)
	_, ok := resp.Answer[0].(*dns.CNAME)
	assert.True(t, ok, "only the CNAME itself is returned when the target leaves the zone")
}

func TestProcess_GlueForNS(t *testing.T) {
	st := buildExampleStore(t)

	resp, _ := Process(query("example.com.", dns.TypeNS), st, UDP)
	assert.Equal(t, dns.RcodeSuccess, resp.Rcode)
	require.Len(t, resp.Answer, 2)
	require.Len(t, resp.Extra, 2, "A glue for both nameservers")
}

func TestProcess_NotImplementedOpcode(t *testing.T) {
	st := buildExampleStore(t)

	m := query("example.com.", dns.TypeA)
	m.Opcode = dns.OpcodeStatus

	resp, _ := Process(m, st, UDP)
	assert.Equal(t, dns.RcodeNotImplemented, resp.Rcode)
}

func TestProcess_AXFROverUDPRefused(t *testing.T) {
	st := buildExampleStore(t)

	resp, hint := Process(query("example.com.", dns.TypeAXFR), st, UDP)
	require.Equal(t, Inline, hint)
	assert.Equal(t, dns.RcodeRefused, resp.Rcode)
}

func TestProcess_AXFROverTCPStreams(t *testing.T) {
	st := buildExampleStore(t)

	_, hint := Process(query("example.com.", dns.TypeAXFR), st, TCP)
	assert.Equal(t, AXFR, hint)
}

func TestProcess_BADVERS(t *testing.T) {
	st := buildExampleStore(t)

	m := query("example.com.", dns.TypeA)
	m.SetEdns0(4096, false)
	m.IsEdns0().SetVersion(1)

	resp, _ := Process(m, st, UDP)
	assert.Equal(t, dns.RcodeBadVers, resp.Rcode)
}

func TestProcess_DNSSECAnswerOnlyWithDO(t *testing.T) {
	b := zone.NewBuilder("example.com.")
	records := []string{
		"example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 2 3 4 5",
		"example.com. 3600 IN NS ns1.example.com.",
		"ns1.example.com. 3600 IN A 192.0.2.1",
		"www.example.com. 3600 IN A 192.0.2.10",
		"www.example.com. 3600 IN RRSIG A 8 3 3600 20300101000000 20240101000000 1234 example.com. ZmFrZXNpZw==",
	}
	for _, r := range records {
		require.NoError(t, b.Add(mustRR(t, r)))
	}
	z, err := b.Build()
	require.NoError(t, err)
	st, err := store.Build([]*zone.Zone{z})
	require.NoError(t, err)

	resp, _ := Process(query("www.example.com.", dns.TypeA), st, UDP)
	require.Len(t, resp.Answer, 1, "no RRSIG without DO")

	m := query("www.example.com.", dns.TypeA)
	m.SetEdns0(4096, true)
	resp, _ = Process(m, st, UDP)
	require.Len(t, resp.Answer, 2, "RRSIG accompanies the A record when DO is set")
}

func TestProcess_EDNS0PayloadAllowsFullResponseOverUDP(t *testing.T) {
	b := zone.NewBuilder("example.com.")
	records := []string{
		"example.com. 3600 IN SOA ns1.example.com. admin.example.com. 1 2 3 4 5",
		"example.com. 3600 IN NS ns1.example.com.",
		"ns1.example.com. 3600 IN A 192.0.2.1",
	}
	for i := 0; i < 10; i++ {
		records = append(records, "big.example.com. 3600 IN TXT \"0123456789012345678901234567890123456789012345678901234567890123456789\"")
	}
	for _, r := range records {
		require.NoError(t, b.Add(mustRR(t, r)))
	}
	z, err := b.Build()
	require.NoError(t, err)
	st, err := store.Build([]*zone.Zone{z})
	require.NoError(t, err)

	m := query("big.example.com.", dns.TypeTXT)
	m.SetEdns0(4096, false)

	resp, _ := Process(m, st, UDP)

	require.Len(t, resp.Answer, 10, "EDNS0 payload 4096 must return the full answer, not a truncated one")
	assert.False(t, resp.Truncated)

	packed, err := resp.Pack()
	require.NoError(t, err)
	assert.Greater(t, len(packed), 512, "this response only exercises the fix if it actually exceeds the legacy 512 cap")
}

func TestStreamAXFR(t *testing.T) {
	st := buildExampleStore(t)

	var frames []*dns.Msg
	err := StreamAXFR(query("example.com.", dns.TypeAXFR), st, func(m *dns.Msg) error {
		frames = append(frames, m)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, frames)

	first := frames[0].Answer[0]
	_, ok := first.(*dns.SOA)
	assert.True(t, ok, "first record must be the SOA")

	last := frames[len(frames)-1].Answer[len(frames[len(frames)-1].Answer)-1]
	_, ok = last.(*dns.SOA)
	assert.True(t, ok, "last record must be the SOA terminator")
}
