package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hjrgrn/rusty-dns/cache"
	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/record"
	"github.com/hjrgrn/rusty-dns/store"
)

// Lookup answers resolution requests. Many requests run concurrently; misses for the
// same key collapse onto a single in-flight upstream fetch whose outcome is shared by
// every waiter.
//
// Lock ordering rule: Lookup never holds any cache lock while performing store I/O or
// while awaiting the upstream - all cache calls are self-contained - so the fast read
// path can never deadlock against the slow persistence path.
type Lookup struct {
	store    store.Store
	cache    *cache.Cache
	upstream Upstream

	fetchTimeout time.Duration

	// flights is the in-flight fetch table: one entry per key, insertion and
	// attachment atomic with respect to each other, entry removed on every exit
	// path once the fetch resolves.
	flights singleflight.Group
}

// NewLookup creates a fully formed Lookup which is ready to use.
func NewLookup(st store.Store, ca *cache.Cache, up Upstream) *Lookup {
	return &Lookup{
		store:        st,
		cache:        ca,
		upstream:     up,
		fetchTimeout: defaultFetchTimeout,
	}
}

// Resolve returns the ordered, rotated records for (domain, qType).
//
// Cache hit: records come back ascending by priority with equal-priority runs rotated
// one step per call. Cache miss: the store is consulted for knowledge which survived a
// restart, and failing that at most one upstream fetch per key is issued regardless of
// how many callers are waiting. Accepted answers are written through the store and
// then the cache before anyone sees them. Failures are returned to every waiter and
// are never cached - the next call starts over.
func (t *Lookup) Resolve(ctx context.Context, domain string, qType uint16) ([]record.Record, error) {
	domain = dnsutil.CanonicalName(domain)

	if recs, ok := t.cache.Get(domain, qType); ok {
		return recs, nil
	}

	key := dnsutil.LookupKey(domain, qType)
	v, err, _ := t.flights.Do(key, func() (interface{}, error) {
		return t.fetch(ctx, domain, qType)
	})
	if err != nil {
		return nil, err
	}

	return v.([]record.Record), nil
}

// fetch runs inside the single flight for a key. The supplied ctx belongs to the
// caller which won the race to start the flight; its cancellation releases all waiters
// with a failure, which is the acceptable cost of sharing one fetch.
func (t *Lookup) fetch(ctx context.Context, domain string, qType uint16) ([]record.Record, error) {
	// Durable knowledge first - it may hold live rows from a previous process
	// generation which the cache has never seen.
	recs, err := t.store.Query(ctx, domain, qType)
	if err != nil {
		// A read failure doesn't block resolution, it just costs us the
		// shortcut. Upsert failures below still surface.
		log.Minorf("store query %s/%s: %s", domain, dnsutil.TypeToString(qType), err.Error())
	} else if len(recs) > 0 {
		t.cache.Put(domain, qType, recs)
		return t.serveEntry(domain, qType, recs), nil
	}

	fctx, cancel := context.WithTimeout(ctx, t.fetchTimeout)
	defer cancel()

	recs, err = t.upstream.Exchange(fctx, domain, qType)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 { // NoError with no usable answers: serve empty, cache nothing
		return recs, nil
	}

	if _, err = t.store.Upsert(ctx, recs); err != nil {
		return nil, err
	}
	t.cache.Put(domain, qType, recs)

	if log.IfMinor() {
		log.Minorf("registered %d records for %s/%s", len(recs), domain,
			dnsutil.TypeToString(qType))
	}

	return t.serveEntry(domain, qType, recs), nil
}

// serveEntry reads the just-installed entry back so that the flight's own caller
// consumes a rotation step exactly like every later caller. If the entry already
// expired in the meantime the raw records are returned as-is.
func (t *Lookup) serveEntry(domain string, qType uint16, recs []record.Record) []record.Record {
	if got, ok := t.cache.Get(domain, qType); ok {
		return got
	}

	return recs
}

// SetFetchTimeout adjusts the bound applied to each upstream fetch. Zero or negative
// values are ignored.
func (t *Lookup) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		t.fetchTimeout = d
	}
}
