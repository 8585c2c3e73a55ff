package resolver

import (
	"context"
	"time"

	"github.com/hjrgrn/rusty-dns/record"
)

const (
	defaultExchangeTimeout = 4 * time.Second // Single wire exchange with the upstream
	defaultFetchTimeout    = 3 * defaultExchangeTimeout
)

// Upstream is the external resolution capability consulted on a cache miss. Given a
// query it returns the accepted candidate records with their absolute expirations
// already stamped as now+ttl at the instant the answer was accepted, or fails with one
// of the Err* values in errors.go. It is treated as an opaque capability with a
// bounded-latency contract.
//
// Implementations must be concurrency safe as Lookup issues fetches from many
// go-routines, and must honour ctx cancellation as Lookup bounds every fetch with a
// deadline.
type Upstream interface {
	Exchange(ctx context.Context, domain string, qType uint16) ([]record.Record, error)
}
