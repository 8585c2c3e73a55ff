package main

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/cache"
	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/mock"
	"github.com/hjrgrn/rusty-dns/mock/upstream"
	"github.com/hjrgrn/rusty-dns/record"
	"github.com/hjrgrn/rusty-dns/resolver"
	"github.com/hjrgrn/rusty-dns/store"
)

// This series of tests is essentially in order of the flow of ServeDNS in dns.go.

func setQuestion(qClass, qType uint16, name string) *dns.Msg {
	m := new(dns.Msg)
	m.Id = 1
	m.RecursionDesired = true
	m.Question = append(m.Question,
		dns.Question{Name: name, Qtype: qType, Qclass: qClass})

	return m
}

func aRecord(domain, address string, priority uint16, ttl uint32) record.Record {
	return record.Record{
		Address:        address,
		Priority:       priority,
		Domain:         domain,
		ExpirationDate: time.Now().Add(time.Duration(ttl) * time.Second),
		TTL:            ttl,
		RecordType:     dns.TypeA,
	}
}

// newTestServer assembles a skeletal server over a throw-away database and a canned
// upstream.
func newTestServer(tb testing.TB, cfg *config) (*server, *upstream.Upstream) {
	tb.Helper()

	st, err := store.Open(filepath.Join(tb.TempDir(), uuid.NewString()+".sqlite"))
	if err != nil {
		tb.Fatal("Setup failed", err)
	}
	tb.Cleanup(func() { st.Close() })

	up := upstream.NewUpstream()
	lookup := resolver.NewLookup(st, cache.New(), up)

	return newServer(cfg, lookup, nil, "", ""), up
}

// Early validation testing prior to resolution
func TestDNSFormErr(t *testing.T) {
	out := &mock.IOWriter{}
	log.SetOut(out)
	log.SetLevel(log.MajorLevel)
	server, _ := newTestServer(t, &config{logQueriesFlag: true})

	t.Run("Empty Message", func(t *testing.T) { testInvalid(t, server, new(dns.Msg)) })

	m := setQuestion(uint16(dns.ClassINET), dns.TypeA, "example.net.")
	q := dns.Question{Name: "xxx", Qtype: dns.TypeA, Qclass: uint16(dns.ClassINET)}
	m.Question = append(m.Question, q) // Two questions
	t.Run("Two Questions", func(t *testing.T) { testInvalid(t, server, m) })

	m = setQuestion(uint16(dns.ClassINET), dns.TypeA, "example.net.")
	m.Answer = append(m.Answer, newRR("example.net. IN A 127.0.0.1"))
	t.Run("Non-empty Answer", func(t *testing.T) { testInvalid(t, server, m) })

	m = setQuestion(uint16(dns.ClassINET), dns.TypeA, "example.net.")
	m.Ns = append(m.Ns, newRR("example.net. IN A 127.0.0.1"))
	t.Run("Non-empty NS", func(t *testing.T) { testInvalid(t, server, m) })

	m = setQuestion(uint16(dns.ClassINET), dns.TypeA, "example.net.")
	m.Opcode = dns.OpcodeNotify
	t.Run("Wrong op-code", func(t *testing.T) { testInvalid(t, server, m) })

	// Check the logging output while we're at it
	got := out.String()
	if strings.Count(got, "Malformed Query") != 5 {
		t.Error("Expected five Malformed Query log lines, got:", got)
	}
}

// Sub-test for TestDNSFormErr
func testInvalid(t *testing.T, server *server, m *dns.Msg) {
	wtr := &mock.ResponseWriter{}
	server.ServeDNS(wtr, m)
	resp := wtr.Get()
	if resp == nil {
		t.Fatal("Setup failed")
	}
	if resp.Rcode != dns.RcodeFormatError {
		t.Error("Expected format error, not", dnsutil.RcodeToString(resp.Rcode))
	}
}

func TestDNSWrongClass(t *testing.T) {
	log.SetOut(&mock.IOWriter{})
	server, _ := newTestServer(t, &config{})

	query := setQuestion(uint16(dns.ClassCHAOS), dns.TypeTXT, "version.bind.")
	wtr := &mock.ResponseWriter{}
	server.ServeDNS(wtr, query)
	resp := wtr.Get()
	if resp == nil {
		t.Fatal("No response to CHAOS query")
	}
	if resp.Rcode != dns.RcodeRefused {
		t.Error("Expected RcodeRefused, not", dnsutil.RcodeToString(resp.Rcode))
	}
	if server.stats.gen.wrongClass != 1 {
		t.Error("wrongClass stat not bumped", server.stats.gen.wrongClass)
	}
}

func TestDNSAnswer(t *testing.T) {
	log.SetOut(&mock.IOWriter{})
	server, up := newTestServer(t, &config{logQueriesFlag: true})
	up.SetAnswer("example.net", dns.TypeA, []record.Record{
		aRecord("example.net", "192.0.2.1", 10, 300),
		aRecord("example.net", "192.0.2.2", 20, 300),
	})

	query := setQuestion(uint16(dns.ClassINET), dns.TypeA, "Example.Net.")
	wtr := &mock.ResponseWriter{}
	server.ServeDNS(wtr, query)
	resp := wtr.Get()
	if resp == nil {
		t.Fatal("No response to A query")
	}
	if resp.Rcode != dns.RcodeSuccess {
		t.Fatal("Expected RcodeSuccess, not", dnsutil.RcodeToString(resp.Rcode))
	}
	if !resp.RecursionAvailable {
		t.Error("RA flag should be set on all of our responses")
	}
	if len(resp.Answer) != 2 {
		t.Fatal("Expected two answers, not", len(resp.Answer))
	}
	if resp.Answer[0].Header().Name != "Example.Net." {
		t.Error("Answer should echo the query casing, not", resp.Answer[0].Header().Name)
	}
	a, ok := resp.Answer[0].(*dns.A)
	if !ok {
		t.Fatal("Expected a dns.A answer, not", resp.Answer[0])
	}
	if a.A.String() != "192.0.2.1" { // Lowest priority comes first
		t.Error("Wrong first answer", a.A.String())
	}

	// Second query must come out of the cache, not the upstream
	server.ServeDNS(wtr, setQuestion(uint16(dns.ClassINET), dns.TypeA, "example.net."))
	resp = wtr.Get()
	if resp == nil || len(resp.Answer) != 2 {
		t.Fatal("No cached response to second query")
	}
	if got := up.Calls("example.net", dns.TypeA); got != 1 {
		t.Error("Expected exactly one upstream call, not", got)
	}

	if server.stats.A.good != 2 || server.stats.A.answers != 4 {
		t.Error("A stats wrong", server.stats.A.String())
	}
}

func TestDNSNXDomain(t *testing.T) {
	log.SetOut(&mock.IOWriter{})
	server, _ := newTestServer(t, &config{}) // Unregistered names answer NXDomain

	wtr := &mock.ResponseWriter{}
	server.ServeDNS(wtr, setQuestion(uint16(dns.ClassINET), dns.TypeA, "nope.example.net."))
	resp := wtr.Get()
	if resp == nil {
		t.Fatal("No response")
	}
	if resp.Rcode != dns.RcodeNameError {
		t.Error("Expected NXDOMAIN, not", dnsutil.RcodeToString(resp.Rcode))
	}
	if server.stats.gen.nxDomain != 1 {
		t.Error("nxDomain stat not bumped", server.stats.gen.nxDomain)
	}
}

func TestDNSServFail(t *testing.T) {
	log.SetOut(&mock.IOWriter{})
	server, up := newTestServer(t, &config{})
	up.SetError("down.example.net", dns.TypeA, resolver.ErrUpstreamUnreachable)
	up.SetError("slow.example.net", dns.TypeA, resolver.ErrUpstreamTimeout)

	wtr := &mock.ResponseWriter{}
	server.ServeDNS(wtr, setQuestion(uint16(dns.ClassINET), dns.TypeA, "down.example.net."))
	resp := wtr.Get()
	if resp == nil || resp.Rcode != dns.RcodeServerFailure {
		t.Fatal("Expected SERVFAIL for unreachable upstream", resp)
	}

	server.ServeDNS(wtr, setQuestion(uint16(dns.ClassINET), dns.TypeA, "slow.example.net."))
	resp = wtr.Get()
	if resp == nil || resp.Rcode != dns.RcodeServerFailure {
		t.Fatal("Expected SERVFAIL for upstream timeout", resp)
	}

	if server.stats.gen.servFail != 2 ||
		server.stats.gen.unreachable != 1 ||
		server.stats.gen.timeout != 1 {
		t.Error("servFail stats wrong", server.stats.gen.String())
	}
}

func TestDNSTTLCap(t *testing.T) {
	log.SetOut(&mock.IOWriter{})
	server, up := newTestServer(t, &config{ttlCapSecs: 5})
	up.SetAnswer("example.org", dns.TypeA, []record.Record{
		aRecord("example.org", "192.0.2.7", 0, 3600),
	})

	wtr := &mock.ResponseWriter{}
	server.ServeDNS(wtr, setQuestion(uint16(dns.ClassINET), dns.TypeA, "example.org."))
	resp := wtr.Get()
	if resp == nil || len(resp.Answer) != 1 {
		t.Fatal("No response to A query")
	}
	if resp.Answer[0].Header().Ttl != 5 {
		t.Error("Expected TTL capped to 5, not", resp.Answer[0].Header().Ttl)
	}
}

func newRR(s string) dns.RR {
	rr, _ := dns.NewRR(s)

	return rr
}
