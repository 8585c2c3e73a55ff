package main

import (
	"sync"

	"github.com/markdingo/rrl"
	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/resolver"
)

// server is created for each listen address.
type server struct {
	cfg        *config
	lookup     *resolver.Lookup
	rrlHandler *rrl.RRL // May be nil if not configured

	network string // Listen details
	address string

	miekg *dns.Server

	statsMu sync.RWMutex
	stats   serverStats
}

func newServer(cfg *config, lookup *resolver.Lookup, rrlHandler *rrl.RRL, network, address string) *server {
	t := &server{
		cfg:        cfg,
		lookup:     lookup,
		rrlHandler: rrlHandler,
		network:    network,
		address:    address,
	}

	if len(t.network) == 0 {
		t.network = dnsutil.UDPNetwork
	}

	t.miekg = &dns.Server{Net: t.network, Addr: t.address, ReusePort: true, Handler: t}

	// The miekg.defaultMsgAcceptFunc silently discards malformed queries before they
	// reach ServeDNS. Replace it with our own near-clone so rejections at least show
	// up in the stats.

	t.miekg.MsgAcceptFunc = func(dh dns.Header) dns.MsgAcceptAction {
		return t.customMsgAcceptFunc(dh)
	}

	return t
}

// startServer starts accepting DNS queries by calling dns.ListenAndServe(). It waits
// until the service has actually started prior to returning to the caller by way of
// NotifyStartedFunc.
//
// Returns error if the server fails to start or nil.
func (t *rustyDNS) startServer(srv *server) error {
	t.wg.Add(1)

	hasStarted := make(chan error) // Make sure listener has started before returning
	srv.miekg.NotifyStartedFunc = func() {
		hasStarted <- nil
	}

	go func() {
		err := srv.miekg.ListenAndServe()
		t.wg.Done()
		if err != nil {
			hasStarted <- err
		}
		close(hasStarted)
	}()

	return <-hasStarted // Closed by t.miekg.NotifyStartedFunc
}

func (t *server) stop() {
	t.miekg.Shutdown()
}

func (t *server) addStats(from *serverStats) {
	t.statsMu.Lock()
	t.stats.add(from)
	t.statsMu.Unlock()
}

// Called from acceptFunc from within miekg when a query fails prior to our ServeDNS()
func (t *server) addAcceptError() {
	t.statsMu.Lock()
	t.stats.gen.badRequest++
	t.statsMu.Unlock()
}
