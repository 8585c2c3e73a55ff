package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/markdingo/miekgrrl"
	"github.com/markdingo/rrl"
	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/resolver"
	"github.com/hjrgrn/rusty-dns/store"
)

// Called from miekg - handles all DNS queries. All query logic is embedded in this one
// rather large function.
func (t *server) ServeDNS(wtr dns.ResponseWriter, query *dns.Msg) {
	req := newRequest(query, wtr.RemoteAddr(), t.network)
	req.stats.gen.queries++
	if t.cfg.logQueriesFlag {
		defer req.log()
	}
	defer t.addStats(&req.stats) // Add req.stats to t.stats

	// Validate query. Extra can have EDNS options so don't length check that slice.
	//
	// miekg.DefaultMsgAcceptFunc does some checking prior to the query arriving
	// here, but we are slightly more paranoid.
	if len(req.query.Question) > 0 {
		req.question = req.query.Question[0] // Populate early for logger
		req.qName = dnsutil.CanonicalName(req.question.Name)
		req.logQName = req.question.Name
	}

	req.opt = req.query.IsEdns0() // Extract Opt values nice and early

	if len(req.query.Question) != 1 ||
		len(req.query.Answer) != 0 ||
		len(req.query.Ns) != 0 ||
		req.query.Opcode != dns.OpcodeQuery {
		t.serveFormErr(wtr, req)
		req.addNote("Malformed Query")
		req.stats.gen.badRequest++
		return
	}

	// If query contains a UDP size value, use it if it's reasonable
	if t.network == dnsutil.UDPNetwork {
		req.maxSize = dnsutil.MaxUDPSize // Default unless over-ridden
		if req.opt != nil {
			mz := req.opt.UDPSize()
			if (mz > 512) && (mz <= dnsutil.MaxUDPSize) { // Reasonable?
				req.maxSize = mz
			}
		}
	}

	if req.question.Qclass != dns.ClassINET {
		t.serveRefused(wtr, req)
		req.addNote(fmt.Sprintf("Wrong class %s",
			dnsutil.ClassToString(dns.Class(req.question.Qclass))))
		req.stats.gen.wrongClass++
		return
	}

	statsp := req.qTypeStats(req.question.Qtype)
	statsp.queries++

	recs, err := t.lookup.Resolve(context.Background(), req.qName, req.question.Qtype)
	if err != nil {
		t.serveResolveError(wtr, req, err)
		return
	}

	req.response.SetReply(req.query)
	for _, rec := range recs {
		rr, err := rec.RR()
		if err != nil { // Rows are validated on entry so stay noisy if one slips thru
			req.addNote("bad row " + rec.Key())
			continue
		}
		rr.Header().Name = req.question.Name // Echo the query casing
		if t.cfg.ttlCapSecs > 0 && rr.Header().Ttl > t.cfg.ttlCapSecs {
			rr.Header().Ttl = t.cfg.ttlCapSecs
		}
		req.response.Answer = append(req.response.Answer, rr)
	}

	// Truncate msg to fit max size. Only relevant if connection is UDP.
	if req.maxSize > 0 {
		req.response.Truncate(int(req.maxSize)) // Removes excess RRs and sets TC=1
	}

	t.writeMsg(wtr, req)

	req.stats.gen.noError++
	statsp.good++
	statsp.answers += len(req.response.Answer)
	if len(req.response.Answer) == 0 {
		req.addNote("NoData")
		statsp.noData++
	}
}

// serveResolveError converts a resolution failure into the response the client sees.
// Name errors are a definitive answer from the upstream; everything else means we
// could not find out, which is SERVFAIL territory.
func (t *server) serveResolveError(wtr dns.ResponseWriter, req *request, err error) {
	var ioErr *store.IOError

	switch {
	case errors.Is(err, resolver.ErrNameNotFound):
		req.stats.gen.nxDomain++
		req.response.SetRcode(req.query, dns.RcodeNameError)

	case errors.Is(err, resolver.ErrUpstreamTimeout):
		req.stats.gen.servFail++
		req.stats.gen.timeout++
		req.addNote("upstream timeout")
		req.response.SetRcode(req.query, dns.RcodeServerFailure)

	case errors.As(err, &ioErr):
		req.stats.gen.servFail++
		req.stats.gen.dbError++
		req.addNote("db " + ioErr.Op)
		req.response.SetRcode(req.query, dns.RcodeServerFailure)

	default:
		req.stats.gen.servFail++
		req.stats.gen.unreachable++
		req.addNote(dnsutil.ShortenLookupError(err).Error())
		req.response.SetRcode(req.query, dns.RcodeServerFailure)
	}

	t.writeMsg(wtr, req)
}

func (t *server) serveFormErr(wtr dns.ResponseWriter, req *request) {
	req.response.SetRcodeFormatError(req.query)
	req.stats.gen.formErr++
	t.writeMsg(wtr, req)
}

func (t *server) serveRefused(wtr dns.ResponseWriter, req *request) {
	req.response.SetRcode(req.query, dns.RcodeRefused)
	t.writeMsg(wtr, req)
}

// writeMsg finalizes the output message with all of the common processing then calls
// the response writer to send the message. Any error is recorded in req.logError
func (t *server) writeMsg(wtr dns.ResponseWriter, req *request) {
	opt := req.genOpt()
	if opt != nil {
		req.response.Extra = append(req.response.Extra, opt)
	}

	req.response.RecursionAvailable = true // The upstream recurses on our behalf

	if t.rrlHandler != nil {
		action, _, _ := t.rrlHandler.Debit(req.src, miekgrrl.Derive(req.response, ""))
		req.rrlAction = action
		if !t.cfg.rrlDryRun {
			switch action {
			case rrl.Drop:
				req.stats.gen.rrlDrop++
				return
			case rrl.Slip:
				req.stats.gen.rrlSlip++
				req.response.Answer = nil // Slip sends a minimal truncated
				req.response.Ns = nil     // response so legitimate clients
				req.response.Extra = nil  // retry over TCP
				req.response.MsgHdr.Truncated = true
			}
		}
	}

	req.msgSize = req.response.Len() // Transfer to Stats for reporting purposes
	req.compressed = req.response.Compress
	req.truncated = req.response.MsgHdr.Truncated

	err := wtr.WriteMsg(req.response)
	if err != nil {
		req.logError = fmt.Errorf("WriteMsg failed: %s", dnsutil.ShortenLookupError(err))
	}
}
