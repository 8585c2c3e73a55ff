package resolver

import (
	"errors"
)

// Resolution failures are local to the single attempt which caused them. They are never
// cached, never poison the cache and a subsequent call for the same key retries from
// scratch. The packet layer translates them into standard failure response codes.
var (
	// ErrUpstreamTimeout means the upstream server did not answer within the
	// bounded fetch budget.
	ErrUpstreamTimeout = errors.New("upstream resolution timed out")

	// ErrUpstreamUnreachable covers transport failures and non-success response
	// codes other than name errors.
	ErrUpstreamUnreachable = errors.New("upstream server unreachable")

	// ErrNameNotFound is the upstream's authoritative statement that the name does
	// not exist. Distinct from an empty answer, which merely means "no records of
	// that type".
	ErrNameNotFound = errors.New("name does not exist")
)
