package main

import (
	"context"
	"time"

	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/osutil"
)

// Run is the signal and reporting loop. It only returns once a terminating signal has
// arrived and everything has been wound down in an orderly manner: reaper first, then
// the listen servers, then the database.
func (t *rustyDNS) Run() {
	defer close(t.stopped)

	osutil.SignalNotify(t.sig)

	// A zero reportInterval means never report, which a nil channel arranges nicely.
	var reportC <-chan time.Time
	if t.cfg.reportInterval > 0 {
		ticker := time.NewTicker(t.cfg.reportInterval)
		defer ticker.Stop()
		reportC = ticker.C
	}

	log.Major(programName, " Ready")

	for {
		select {
		case s := <-t.sig:
			switch {
			case osutil.IsSignalTERM(s), osutil.IsSignalINT(s):
				log.Majorf("Signal %s initiates shutdown", s)
				t.shutdown()
				return

			case osutil.IsSignalUSR1(s):
				log.Majorf("Signal %s", s)
				t.statsReport(true)

			case osutil.IsSignalUSR2(s):
				t.cfg.logQueriesFlag = !t.cfg.logQueriesFlag
				log.Majorf("Signal %s toggles log-queries=%t", s, t.cfg.logQueriesFlag)

			default: // HUP and friends
				log.Majorf("Signal %s ignored", s)
			}

		case <-reportC:
			t.statsReport(false)

		case <-t.done:
			t.shutdown()
			return
		}
	}
}

// stop winds down Run() programmatically. Equivalent to sending a SIGTERM. Mostly for
// tests.
func (t *rustyDNS) stop() {
	close(t.done)
}

func (t *rustyDNS) shutdown() {
	if t.reaper != nil {
		t.reaper.Stop()
	}

	t.stopServers()
	t.wg.Wait()
	log.Major("All Listen servers stopped")

	if t.store != nil {
		if err := t.store.Close(); err != nil {
			warning(err, "closing cache database")
		}
	}
}

// statsReport logs the accumulated server stats. Stats are cumulative for the life of
// the process rather than a delta since the last report.
func (t *rustyDNS) statsReport(always bool) {
	if !always && !log.IfMajor() {
		return
	}

	var total serverStats
	t.serversMu.Lock()
	for _, srv := range t.servers {
		srv.statsMu.RLock()
		total.add(&srv.stats)
		srv.statsMu.RUnlock()
	}
	t.serversMu.Unlock()

	log.Major("Stats: Uptime ", time.Now().Sub(t.startTime).Round(time.Second))
	if t.store != nil && t.cache != nil {
		if rows, err := t.store.Count(context.Background()); err == nil {
			log.Majorf("Stats: DB rows=%d cache=%d", rows, t.cache.Len())
		}
	}
	log.Major("Stats: Total ", total.gen.String())
	log.Major("Stats: A ", total.A.String())
	log.Major("Stats: AAAA ", total.AAAA.String())
	log.Major("Stats: Names ", total.Names.String())
}
