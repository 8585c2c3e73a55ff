package main

import (
	"fmt"
)

// qTypeStats is kept for the high activity qTypes: A, AAAA and the name-valued types
// as a group.
type qTypeStats struct {
	queries int // Type specific query count
	good    int // Good replies sent back to client
	answers int // Total RRs sent in all good replies
	noData  int // Good replies with nothing in them
}

func (t *qTypeStats) add(from *qTypeStats) {
	t.queries += from.queries
	t.good += from.good
	t.answers += from.answers
	t.noData += from.noData
}

func (t *qTypeStats) String() string {
	return fmt.Sprintf("q=%d good=%d(%d) nodata=%d",
		t.queries, t.good, t.answers, t.noData)
}

type generalStats struct {
	queries    int // Total queries
	badRequest int // No Question, wrong op-code

	wrongClass int // Refused counters

	noError  int // Rcode counters for non-answer responses
	nxDomain int
	servFail int
	formErr  int

	timeout     int // servFail break-down
	unreachable int
	dbError     int

	rrlDrop int
	rrlSlip int
}

func (t *generalStats) add(from *generalStats) {
	t.queries += from.queries
	t.badRequest += from.badRequest
	t.wrongClass += from.wrongClass
	t.noError += from.noError
	t.nxDomain += from.nxDomain
	t.servFail += from.servFail
	t.formErr += from.formErr
	t.timeout += from.timeout
	t.unreachable += from.unreachable
	t.dbError += from.dbError
	t.rrlDrop += from.rrlDrop
	t.rrlSlip += from.rrlSlip
}

func (t *generalStats) String() string {
	return fmt.Sprintf("q=%d/%d/%d rc=%d/%d/%d/%d sf=%d/%d/%d rrl=%d/%d",
		t.queries, t.badRequest, t.wrongClass,
		t.noError, t.nxDomain, t.servFail, t.formErr,
		t.timeout, t.unreachable, t.dbError,
		t.rrlDrop, t.rrlSlip)
}

type serverStats struct {
	gen   generalStats
	A     qTypeStats
	AAAA  qTypeStats
	Names qTypeStats // NS, CNAME, MX and PTR collectively
}

func (t *serverStats) add(from *serverStats) {
	t.gen.add(&from.gen)
	t.A.add(&from.A)
	t.AAAA.add(&from.AAAA)
	t.Names.add(&from.Names)
}

func (t *serverStats) String() string {
	return "Gen: " + t.gen.String() +
		" A: " + t.A.String() +
		" AAAA: " + t.AAAA.String() +
		" Names: " + t.Names.String()
}
