package main

import (
	"fmt"
	"time"
)

// ValidateCommandLineOptions does what it can to check the command line options prior
// to starting any servers. The biggest checks - the listen addresses and the database
// path - can only really be validated by using them, which happens soon enough after
// this function returns.
func (t *rustyDNS) ValidateCommandLineOptions() error {
	if len(t.cfg.upstream) == 0 {
		return fmt.Errorf("--upstream cannot be empty")
	}
	if len(t.cfg.dbPath) == 0 {
		return fmt.Errorf("--db cannot be empty")
	}

	if t.cfg.fetchTimeout < time.Second {
		return fmt.Errorf("--fetch-timeout %s must be at least 1s", t.cfg.fetchTimeout)
	}
	if t.cfg.sweepInterval < time.Second {
		return fmt.Errorf("--sweep-interval %s must be at least 1s", t.cfg.sweepInterval)
	}
	if t.cfg.reportInterval != 0 && t.cfg.reportInterval < time.Second {
		return fmt.Errorf("--report %s must be at least 1s (or zero to disable)",
			t.cfg.reportInterval)
	}
	if t.cfg.ttlCap < 0 {
		return fmt.Errorf("--ttl-cap %s cannot be negative", t.cfg.ttlCap)
	}

	return nil
}
