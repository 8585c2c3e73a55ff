package main

import (
	"github.com/miekg/dns"
)

/*

This is a near-clone of the miekg.defaultMsgAcceptFunc. The logic is unchanged; the
point of the clone is to count rejections which the default function discards without
a trace. Review periodically to ensure it still matches the original.

*/

const (
	// Header.Bits
	_QR = 1 << 15 // query/response (response=1)
)

func (t *server) customMsgAcceptFunc(dh dns.Header) dns.MsgAcceptAction {
	if isResponse := dh.Bits&_QR != 0; isResponse {
		t.addAcceptError()
		return dns.MsgIgnore
	}

	// Don't allow dynamic updates, because then the sections can contain a whole bunch of RRs.
	opcode := int(dh.Bits>>11) & 0xF
	if opcode != dns.OpcodeQuery {
		t.addAcceptError()
		return dns.MsgRejectNotImplemented
	}

	if dh.Qdcount != 1 {
		t.addAcceptError()
		return dns.MsgReject
	}
	if dh.Ancount > 1 {
		t.addAcceptError()
		return dns.MsgReject
	}
	if dh.Nscount > 1 {
		t.addAcceptError()
		return dns.MsgReject
	}
	if dh.Arcount > 2 {
		t.addAcceptError()
		return dns.MsgReject
	}
	return dns.MsgAccept
}
