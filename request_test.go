package main

import (
	"testing"

	"github.com/markdingo/rrl"
	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/mock"
)

func TestRequestLog(t *testing.T) {
	out := &mock.IOWriter{}
	log.SetOut(out)
	log.SetLevel(log.MajorLevel)

	req := &request{}
	req.network = dnsutil.TCPNetwork
	req.compressed = true
	req.truncated = true
	req.response = new(dns.Msg)
	req.question = dns.Question{}
	req.src = mock.NewNetAddr("", "")
	req.log()

	got := out.String()
	exp := "ru=ne q=None/ s= id=0 h=Tzt sz=0/0 C=0/0/0\n"
	if exp != got {
		t.Error("Log wrong. Exp", exp, "Got", got)
	}

	out = &mock.IOWriter{}
	log.SetOut(out)
	req.rrlAction = rrl.Drop
	req.log()

	got = out.String()
	exp = "ru=ne/D q=None/ s= id=0 h=Tzt sz=0/0 C=0/0/0\n"
	if exp != got {
		t.Error("Log wrong. Exp", exp, "Got", got)
	}

	out = &mock.IOWriter{}
	log.SetOut(out)
	req.rrlAction = rrl.Send
	req.response.SetRcodeFormatError(new(dns.Msg))
	req.question = dns.Question{Name: "example.net.", Qtype: dns.TypeAAAA}
	req.addNote("one")
	req.addNote("two")
	req.log()

	got = out.String()
	exp = "ru=FORMERR q=AAAA/example.net. s= id=0 h=Tzt sz=0/0 C=0/0/0 one:two\n"
	if exp != got {
		t.Error("Log wrong. Exp", exp, "Got", got)
	}
}
