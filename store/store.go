package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hjrgrn/rusty-dns/record"
)

// Store is the durable home of resource records. It owns row lifetime: the in-memory
// cache only ever holds a derived, revocable view and on disagreement the Store is the
// source of truth.
//
// The interface exists so that the persistence technology is substitutable without
// touching the cache or resolver logic, and so tests can supply their own.
type Store interface {
	// Upsert atomically inserts or replaces rows matching the uniqueness key
	// (domain, record_type, address, host) and returns the number of rows
	// affected. Records are validated before any row is touched; a failure of any
	// kind leaves prior state unchanged.
	Upsert(ctx context.Context, recs []record.Record) (int64, error)

	// Query returns the non-expired rows for (domain, qType) ordered ascending by
	// priority with ties broken by insertion order. An empty slice means "no live
	// knowledge" which callers treat as a cache miss, never as NXDOMAIN.
	Query(ctx context.Context, domain string, qType uint16) ([]record.Record, error)

	// PruneExpired deletes all rows with expiration_date at or before now and
	// returns the number removed. It is idempotent and safe to run concurrently
	// with Query and Upsert.
	PruneExpired(ctx context.Context, now time.Time) (int64, error)

	// Count returns the number of rows currently held, expired or not. Used for
	// stats reporting.
	Count(ctx context.Context) (int64, error)

	Close() error
}

// IOError wraps persistence failures so callers can distinguish them from upstream and
// validation failures. It never indicates partially applied state.
type IOError struct {
	Op  string
	Err error
}

func (t *IOError) Error() string {
	return fmt.Sprintf("store %s: %s", t.Op, t.Err.Error())
}

func (t *IOError) Unwrap() error {
	return t.Err
}
