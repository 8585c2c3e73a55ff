package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/markdingo/rrl"

	"github.com/hjrgrn/rusty-dns/cache"
	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/reaper"
	"github.com/hjrgrn/rusty-dns/resolver"
	"github.com/hjrgrn/rusty-dns/store"
)

func reportError(severity string, err error, messages ...string) {
	msg := severity
	if len(messages) > 0 {
		msg += ": " + strings.Join(messages, " ")
	}
	if err != nil {
		msg += ": " + err.Error()
	}
	fmt.Fprintln(log.Out(), msg)
}

func fatal(err error, messages ...string) {
	reportError("Fatal", err, messages...)
	os.Exit(1)
}

func warning(err error, messages ...string) {
	reportError("Warning", err, messages...)
}

//////////////////////////////////////////////////////////////////////

func main() {
	rd := newRustyDNS()
	switch rd.parseOptions(os.Args) {
	case parseStop:
		return
	case parseFailed:
		os.Exit(1)
	case parseContinue:
	}

	// Transfer logging options to the log package

	if rd.cfg.logMajorFlag {
		log.SetLevel(log.MajorLevel)
	}
	if rd.cfg.logMinorFlag {
		log.SetLevel(log.MinorLevel)
	}
	if rd.cfg.logDebugFlag {
		log.SetLevel(log.DebugLevel)
	}

	fmt.Fprintln(log.Out(),
		programName, Version, "Starting with Log Level:", log.Level())

	// Validate everything that is likely a typo or usage error
	err := rd.ValidateCommandLineOptions()
	if err != nil {
		fatal(err)
	}

	err = rd.assemble()
	if err != nil {
		fatal(err)
	}

	rd.startServers() // Only returns if listens succeed

	rd.reaper.Start() // Eager sweep now, periodic sweeps from here on

	rd.Run()

	rd.statsReport(false) // Final stats - depending on log level

	fmt.Fprintln(log.Out(), programName, Version, "Exiting after",
		time.Now().Sub(rd.startTime).Round(time.Second))
}

// assemble builds the resolution pipeline bottom-up: database, cache, upstream
// exchanger, lookup service, reaper and optionally the RRL handler. Everything apart
// from the reaper is inert until the servers start taking queries.
func (t *rustyDNS) assemble() error {
	st, err := store.Open(t.cfg.dbPath)
	if err != nil {
		return err
	}
	t.store = st
	log.Minor("Opened cache database ", t.cfg.dbPath)

	t.cache = cache.New()

	ex := resolver.NewExchanger(t.cfg.upstream)
	t.lookup = resolver.NewLookup(t.store, t.cache, ex)
	t.lookup.SetFetchTimeout(t.cfg.fetchTimeout)

	t.reaper = reaper.NewReaper(t.store, t.cache, t.cfg.sweepInterval)

	if t.cfg.rrlConfig.IsActive() || t.cfg.rrlDryRun {
		t.rrlHandler = rrl.NewRRL(t.cfg.rrlConfig)
		log.Minor("Response Rate Limiting active")
	}

	return nil
}

// startServers creates and starts a UDP and TCP server pair for every listen address.
// A failed listen is fatal as it invariably means a typo or a permissions problem
// which the operator should know about immediately.
func (t *rustyDNS) startServers() {
	for _, addr := range t.cfg.listen {
		for _, network := range []string{dnsutil.UDPNetwork, dnsutil.TCPNetwork} {
			srv := newServer(t.cfg, t.lookup, t.rrlHandler, network, addr)
			err := t.startServer(srv)
			if err != nil {
				fatal(err, "could not start server on", network, addr)
			}
			t.addServer(srv)
			log.Major("Listening on ", network, " ", addr)
		}
	}
}
