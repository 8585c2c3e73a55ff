package main

import (
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/hjrgrn/rusty-dns/log"
)

type parseResult int // This is a ternary variable
const (
	parseStop     parseResult = iota // No error, but don't continue
	parseContinue                    // No errors and continue
	parseFailed                      // Errors, do not continue
)

// The usage output has generally been formated to fit within a 100 column terminal.
// Some usage messages carry a trailing \n to place a bit of white-space around dense
// option output, which only works for options with no default value as otherwise the
// flag package prints the default message after the \n.
func (t *rustyDNS) parseOptions(args []string) parseResult {
	var helpFlag, versionFlag bool

	name := programName
	if len(args) > 0 {
		name = args[0]
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Consider '-h' for command-line usage")
	}

	fs.SetOutput(log.Out())

	// Non-config flags

	fs.BoolVarP(&helpFlag, "help", "h", false, "Print command-line usage")
	fs.BoolVarP(&versionFlag, "version", "v", false, "Print version and origin URL")

	// config flags

	fs.BoolVar(&t.cfg.logMajorFlag, "log-major", true, "Log major events to Stdout")
	fs.BoolVar(&t.cfg.logMinorFlag, "log-minor", false,
		"Log minor events to Stdout - this implies --log-major")
	fs.BoolVar(&t.cfg.logDebugFlag, "log-debug", false,
		"Log debug events to Stdout - this implies --log-minor")
	fs.BoolVar(&t.cfg.logQueriesFlag, "log-queries", true,
		`Log DNS queries to Stdout. This setting can be toggled with
SIGUSR2.`)

	// config Durations

	fs.DurationVar(&t.cfg.fetchTimeout, "fetch-timeout", defaultFetchTimeout,
		"Bound on a single upstream fetch including retries (>= 1s)")
	fs.DurationVar(&t.cfg.sweepInterval, "sweep-interval", defaultSweepInterval,
		"Interval between expiration sweeps of the cache database (>= 1s)")
	fs.DurationVar(&t.cfg.reportInterval, "report", defaultReportInterval,
		"Interval between statistics reports (>= 1s)")
	fs.DurationVar(&t.cfg.ttlCap, "ttl-cap", 0,
		`Upper bound applied to the TTL of served answers. Zero means
answers are served with their stored TTL untouched.`)

	// config StringVars

	fs.StringVar(&t.cfg.dbPath, "db", defaultDBPath,
		`Path of the SQLite cache database. Created if missing. Accepted
answers are persisted here and survive restarts.
`)
	fs.StringVar(&t.cfg.upstream, "upstream", defaultUpstream,
		`Server to forward cache misses to - accepts 'host:port' or
'host' syntax with the port defaulting to 'domain'.
`)

	// config RRL StringVars - all RRL configs are set as strings so as to match the
	// interface provided by the rrl package. It does the actual conversion of
	// numbers and so forth and generates errors if they are invalid or out of range.

	fs.StringVar(&t.cfg.rrlOptions.window, "rrl-window", "",
		"Seconds during which response rates are tracked (default 15)")
	fs.StringVar(&t.cfg.rrlOptions.slipRatio, "rrl-slip-ratio", "",
		`Ratio of rate-limited responses given a truncated response over
a dropped response. A ratio of 0 disables slip processing and
thus all rate-limited responses are dropped (default 2).`)
	fs.StringVar(&t.cfg.rrlOptions.maxTableSize, "rrl-max-table-size", "",
		`Maximum number of responses to be tracked at one time. When
exceeded, rrl stops rate limiting new responses (default
100000).`)
	fs.BoolVar(&t.cfg.rrlDryRun, "rrl-dryrun", false,
		"Invoke RRL analysis but ignore recommended action")
	fs.StringVar(&t.cfg.rrlOptions.ipv4PrefixLength, "rrl-ipv4-CIDR", "",
		`The prefix length in bits to use for identifying a ipv4 client
CIDR (default 24).`)
	fs.StringVar(&t.cfg.rrlOptions.ipv6PrefixLength, "rrl-ipv6-CIDR", "",
		`The prefix length in bits to use for identifying a ipv6 client
CIDR (default 56).`)
	fs.StringVar(&t.cfg.rrlOptions.responsesInterval, "rrl-responses-psec", "",
		`The number of Answer responses allowed per second. An
allowance of 0 disables Answer rate limiting (default 0).`)
	fs.StringVar(&t.cfg.rrlOptions.nodataInterval, "rrl-nodata-psec", "",
		`The number of NoData responses allowed per second. An allowance
of 0 disables NoData rate limiting (defaults to
--rrl-responses-psec).`)
	fs.StringVar(&t.cfg.rrlOptions.nxdomainsInterval, "rrl-nxdomain-psec", "",
		`The number of NXDomain responses allowed per second. An
allowance of 0 disables NXDomain rate limiting (defaults to
--rrl-responses-psec).`)
	fs.StringVar(&t.cfg.rrlOptions.errorsInterval, "rrl-errors-psec", "",
		`The number of Error responses allowed per second (excluding
NXDomain). An allowance of 0 disables Error rate limiting
(defaults to --rrl-responses-psec).`)
	fs.StringVar(&t.cfg.rrlOptions.requestsInterval, "rrl-requests-psec", "",
		`The number of requests allowed per second from a source IP.
An allowance of 0 disables rate limiting of requests (default 0).`)

	// config String Arrays

	fs.StringArrayVar(&t.cfg.listen, "listen", []string{},
		`Address to listen on for DNS queries - accepts 'host:port',
':port', ':service', v4address:port or [v6address]:port syntax.
The default is ':domain'.
`)

	err := fs.Parse(args[1:])
	if err != nil {
		if err == flag.ErrHelp {
			return parseStop
		}
		return parseFailed
	}

	if helpFlag {
		printUsage(t.cfg, fs)
		return parseStop
	}

	if versionFlag {
		fmt.Fprintln(log.Out(), programName, Version, "Release Date:", ReleaseDate)
		fmt.Fprintln(log.Out(), "Project:", t.cfg.projectURL)
		return parseStop
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(log.Out(), "Error:Unexpected goop on command line: '%s'\n",
			strings.Join(fs.Args(), " "))
		return parseFailed
	}

	if len(t.cfg.listen) == 0 {
		t.cfg.listen = append(t.cfg.listen, defaultListen)
	}

	t.cfg.ttlCapSecs = uint32(t.cfg.ttlCap.Seconds())

	return t.parseRRLOptions()
}

// RRL options have to be treated specially because we're adhering to the interface of
// the imported rrl package. In essence, the rrl package does all the conversion to
// ints and floats then returns errors as necessary so at this level all values are
// accepted as strings without any validation.
//
// Since the rrl config starts life as a no-op config, at least one of the *psec values
// has to be set greater than zero otherwise rrl does nothing in the Debit() call. But
// this may not be obvious so as soon as any --rrl-* option is set we presume the
// caller wants a functional rrl so we also check that at least one *psec value is set.
func (t *rustyDNS) parseRRLOptions() parseResult {
	if !t.setRRLOption("window", t.cfg.rrlOptions.window) {
		return parseFailed
	}
	if !t.setRRLOption("slip-ratio", t.cfg.rrlOptions.slipRatio) {
		return parseFailed
	}
	if !t.setRRLOption("max-table-size", t.cfg.rrlOptions.maxTableSize) {
		return parseFailed
	}
	if !t.setRRLOption("ipv4-CIDR", t.cfg.rrlOptions.ipv4PrefixLength) {
		return parseFailed
	}
	if !t.setRRLOption("ipv6-CIDR", t.cfg.rrlOptions.ipv6PrefixLength) {
		return parseFailed
	}
	if !t.setRRLOption("responses-per-second", t.cfg.rrlOptions.responsesInterval) {
		return parseFailed
	}
	if !t.setRRLOption("nodata-per-second", t.cfg.rrlOptions.nodataInterval) {
		return parseFailed
	}
	if !t.setRRLOption("nxdomains-per-second", t.cfg.rrlOptions.nxdomainsInterval) {
		return parseFailed
	}
	if !t.setRRLOption("errors-per-second", t.cfg.rrlOptions.errorsInterval) {
		return parseFailed
	}
	if !t.setRRLOption("requests-per-second", t.cfg.rrlOptions.requestsInterval) {
		return parseFailed
	}

	// Check that they haven't only set no-op rrl options
	if (t.cfg.rrlOptionSet || t.cfg.rrlDryRun) && !t.cfg.rrlConfig.IsActive() {
		fmt.Fprintln(log.Out(), "Error: RRL requires at least one -*psec option to activate")
		return parseFailed
	}

	return parseContinue
}

func (t *rustyDNS) setRRLOption(name, value string) bool {
	if len(value) == 0 {
		return true
	}

	t.cfg.rrlOptionSet = true // Say at least one --rrl option is present
	err := t.cfg.rrlConfig.SetValue(name, value)
	if err != nil {
		fmt.Fprintln(log.Out(), "Error:", err.Error())
		return false
	}

	return true
}

// I trust all output devices can render UTF-8 these days otherwise the ellipses will
// look a bit odd.
func printUsage(cfg *config, fs *flag.FlagSet) {
	o := log.Out()
	fmt.Fprintln(o, "NAME")
	fmt.Fprintln(o, " ", programName, "-- a caching DNS resolver with a persistent cache")
	fmt.Fprintln(o)
	fmt.Fprintln(o, "SYNOPSIS")
	fmt.Fprintln(o, "     rustydns -h | --help | -v | --version")
	fmt.Fprintln(o, "     rustydns [--listen listen-address]… [--upstream server]")
	fmt.Fprintln(o, `                 [--db path] [--ttl-cap time.Duration=0]
                 [--fetch-timeout time.Duration=12s]
                 [--sweep-interval time.Duration=5m] [--report time.Duration=1h]
                 [--log-major=true] [--log-minor] [--log-debug]
                 [--log-queries=true]
                 [--rrl-dryrun]
                 [--rrl-ipv4-CIDR length] [--rrl-ipv6-CIDR length]
                 [--rrl-max-table-size size] [--rrl-window size] [--rrl-slip-ratio ratio]
                 [--rrl-errors-psec seconds] [--rrl-nodata-psec seconds]
                 [--rrl-nxdomain-psec seconds]
                 [--rrl-requests-psec seconds] [--rrl-responses-psec seconds]`)

	fmt.Fprintln(o)
	fmt.Fprintln(o, "     Ellipses (…) indicate options which can be specified multiple times.")
	fmt.Fprint(o, `
DESCRIPTION
     rustydns is a caching DNS resolver. Queries are answered from a TTL-governed
     cache of resource records held in memory and persisted in a SQLite database,
     so accepted answers survive restarts. Cache misses are forwarded to a single
     configured upstream server which is expected to provide recursion; concurrent
     misses for the same name and type are coalesced into one upstream query.

     Answers are served in ascending priority order and equally preferred answers
     are rotated between successive queries to distribute load.

     A typical invocation is:

           # rustydns --listen :53 --upstream 9.9.9.9 --db /var/cache/rustydns.sqlite
`)
	fmt.Fprintln(o)
	fmt.Fprintln(o, "OPTIONS")
	op := fs.Output() // Save and restore - not sure this is a good idea
	fs.SetOutput(o)
	fs.PrintDefaults()
	fs.SetOutput(op)

	fmt.Fprint(o, `
NOTES
  1. --listen can be repeated multiple times.
  2. RRL is only activated when at least one of the *-psec values is set above zero.

SIGNALS
  SIGTERM - initiate shutdown
  SIGINT  - initiate shutdown
  SIGUSR1 - generates an immediate stats report
  SIGUSR2 - toggles --log-queries
`)
}
