package main

import (
	"net"
	"strconv"
	"strings"

	"github.com/markdingo/rrl"
	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/log"
)

// request tracks a single query from arrival thru to the response. One is created for
// each call to ServeDNS and it never escapes that call apart from its stats which are
// folded into the owning server.
type request struct {
	query    *dns.Msg
	response *dns.Msg
	question dns.Question
	opt      *dns.OPT // Optionally present in query

	qName   string // Lower-case, trailing dot chomped - the resolution key
	network string
	src     net.Addr

	maxSize    uint16 // Largest response we should generate
	msgSize    int    // Set by writeMsg for logging
	compressed bool
	truncated  bool

	rrlAction rrl.Action

	logQName string // Can override qName in the log line
	logNote  []string
	logError error

	stats serverStats
}

func newRequest(query *dns.Msg, src net.Addr, network string) *request {
	t := &request{query: query, src: src, network: network}
	t.response = new(dns.Msg)

	return t
}

// qTypeStats returns the per-type accumulator for the qType. Address types get their
// own buckets; the name-valued types share one.
func (t *request) qTypeStats(qType uint16) *qTypeStats {
	switch qType {
	case dns.TypeA:
		return &t.stats.A
	case dns.TypeAAAA:
		return &t.stats.AAAA
	}

	return &t.stats.Names
}

// addNote appends a short annotation which is included in the query log line. Purely
// to assist post-hoc analysis of anomalous queries.
func (t *request) addNote(n string) {
	t.logNote = append(t.logNote, n)
}

// genOpt creates the response OPT if the query arrived with one. We don't exchange any
// EDNS options, only the UDP size negotiation matters to us.
func (t *request) genOpt() *dns.OPT {
	if t.opt == nil {
		return nil
	}

	opt := new(dns.OPT)
	opt.Hdr.Name = "."
	opt.Hdr.Rrtype = dns.TypeOPT
	opt.SetUDPSize(dnsutil.MaxUDPSize)

	return opt
}

// Log a summary of the request and response in a compact, vaguely human-readable form.
//
// Output looks something like:
//
//	ru=ne q=A/example.net. s=127.0.0.2:4056 id=4 h=U sz=24/1232 C=1/0/1 Cache
func (t *request) log() {
	var sb strings.Builder

	sb.WriteString("ru=")
	if t.response.Rcode == dns.RcodeSuccess {
		sb.WriteString("ne")
	} else {
		sb.WriteString(dnsutil.RcodeToString(t.response.Rcode))
	}
	switch t.rrlAction {
	case rrl.Drop:
		sb.WriteString("/D")
	case rrl.Slip:
		sb.WriteString("/S")
	}

	qName := t.logQName
	if len(qName) == 0 {
		qName = t.question.Name
	}
	sb.WriteString(" q=")
	sb.WriteString(dnsutil.TypeToString(t.question.Qtype))
	sb.WriteString("/")
	sb.WriteString(qName)
	sb.WriteString(" s=")
	sb.WriteString(t.src.String())
	sb.WriteString(" id=")
	sb.WriteString(strconv.Itoa(int(t.response.MsgHdr.Id)))

	sb.WriteString(" h=")
	if t.network == dnsutil.TCPNetwork {
		sb.WriteString("T")
	} else {
		sb.WriteString("U")
	}
	if t.compressed {
		sb.WriteString("z")
	}
	if t.truncated {
		sb.WriteString("t")
	}

	sb.WriteString(" sz=")
	sb.WriteString(strconv.Itoa(t.msgSize))
	sb.WriteString("/")
	sb.WriteString(strconv.Itoa(int(t.maxSize)))

	sb.WriteString(" C=")
	sb.WriteString(strconv.Itoa(len(t.response.Answer)))
	sb.WriteString("/")
	sb.WriteString(strconv.Itoa(len(t.response.Ns)))
	sb.WriteString("/")
	sb.WriteString(strconv.Itoa(len(t.response.Extra)))

	if len(t.logNote) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(t.logNote, ":"))
	}
	if t.logError != nil {
		sb.WriteString(" Error:")
		sb.WriteString(t.logError.Error())
	}

	log.Major(sb.String())
}
