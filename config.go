package main

import (
	"runtime/debug"
	"time"

	"github.com/markdingo/rrl"
)

const (
	programName = "rustydns"

	defaultProjectURL = "https://github.com/hjrgrn/rusty-dns"

	defaultService = "domain"
	defaultListen  = ":" + defaultService

	defaultUpstream      = "8.8.8.8:53"
	defaultDBPath        = "instance/cache.sqlite"
	defaultSweepInterval = time.Minute * 5
	defaultFetchTimeout  = time.Second * 12

	defaultReportInterval = time.Hour
)

// rrlConfigStrings separates out the RRL options from all the rest for easy management
// and identification.
type rrlConfigStrings struct {
	window       string // "--rrl-window"
	slipRatio    string // "--rrl-slip-ratio"
	maxTableSize string // "--rrl-max-table-size"

	ipv4PrefixLength string // "--rrl-ipv4-CIDR"
	ipv6PrefixLength string // "--rrl-ipv6-CIDR"

	responsesInterval string // "--rrl-responses-psec"
	nodataInterval    string // "--rrl-nodata-psec"
	nxdomainsInterval string // "--rrl-nxdomain-psec"
	errorsInterval    string // "--rrl-errors-psec"
	requestsInterval  string // "--rrl-requests-psec"
}

// config defines the global configuration settings used by rustydns. These settings
// apply across the whole program and all servers. Once set it should never be changed
// as it is shared amongst go-routines without any lock protection.
type config struct {
	projectURL string

	logMajorFlag   bool // Major events and on-going information such as periodic stats
	logMinorFlag   bool // Details associated with Major events
	logDebugFlag   bool // Developer flag
	logQueriesFlag bool // Each DNS query exchanged

	upstream string // Server queried on cache miss
	dbPath   string // SQLite cache database

	fetchTimeout   time.Duration // Bound on a single upstream fetch
	sweepInterval  time.Duration // Reaper cadence
	reportInterval time.Duration // Statistics reporting interval. Zero means never.

	ttlCap     time.Duration // "--ttl-cap". Zero means serve stored TTLs untouched.
	ttlCapSecs uint32        // Converted from ttlCap by parseOptions

	listen []string // All addresses to listen on

	rrlOptions   rrlConfigStrings // Set by flags package
	rrlOptionSet bool             // True if at least one rrl option was set
	rrlDryRun    bool             // "--rrl-dryrun"
	rrlConfig    *rrl.Config      // Populated if RRL is active
}

func newConfig() *config {
	t := &config{projectURL: defaultProjectURL}
	info, ok := debug.ReadBuildInfo()
	if ok {
		t.projectURL = info.Main.Path // Override with embedded if present
	}

	t.rrlConfig = rrl.NewConfig() // This default config is a no-op

	return t
}
