// Package upstream implements resolver.Upstream against a table of canned responses so
// tests can drive the lookup path without a network. Responses are registered per
// (domain, qType) key; unregistered keys answer ErrNameNotFound. Exchange invocations
// are counted per key which is what the coalescing tests care about.
package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/record"
	"github.com/hjrgrn/rusty-dns/resolver"
)

type response struct {
	recs  []record.Record
	err   error
	delay time.Duration
}

type Upstream struct {
	mu        sync.Mutex
	responses map[string]response
	calls     map[string]int
}

// NewUpstream creates an empty mock which is ready to use.
func NewUpstream() *Upstream {
	return &Upstream{
		responses: make(map[string]response),
		calls:     make(map[string]int),
	}
}

// SetAnswer registers the records returned for (domain, qType). Expirations are left
// exactly as supplied so tests control freshness.
func (t *Upstream) SetAnswer(domain string, qType uint16, recs []record.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses[dnsutil.LookupKey(domain, qType)] = response{recs: recs}
}

// SetError registers a failure for (domain, qType).
func (t *Upstream) SetError(domain string, qType uint16, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.responses[dnsutil.LookupKey(domain, qType)] = response{err: err}
}

// SetDelay makes the registered response for (domain, qType) stall before answering,
// which holds the flight open long enough for other callers to attach.
func (t *Upstream) SetDelay(domain string, qType uint16, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.responses[dnsutil.LookupKey(domain, qType)]
	r.delay = d
	t.responses[dnsutil.LookupKey(domain, qType)] = r
}

// Calls returns how many Exchange invocations (domain, qType) has seen.
func (t *Upstream) Calls(domain string, qType uint16) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.calls[dnsutil.LookupKey(domain, qType)]
}

func (t *Upstream) Exchange(ctx context.Context, domain string, qType uint16) ([]record.Record, error) {
	key := dnsutil.LookupKey(domain, qType)

	t.mu.Lock()
	t.calls[key]++
	r, ok := t.responses[key]
	t.mu.Unlock()

	if !ok {
		return nil, resolver.ErrNameNotFound
	}

	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, resolver.ErrUpstreamTimeout
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	recs := make([]record.Record, len(r.recs))
	copy(recs, r.recs)

	return recs, nil
}
