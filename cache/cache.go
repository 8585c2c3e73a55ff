package cache

import (
	"crypto/rand"
	"encoding/binary"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dchest/siphash"

	"github.com/hjrgrn/rusty-dns/dnsutil"
	"github.com/hjrgrn/rusty-dns/record"
)

const shardCount = 64 // Must be a power of two

// entry is the cached answer set for one (domain, qType) key. records is held sorted
// ascending by priority with insertion order preserved within equal priorities. rotate
// is the per-key rotation state - it lives here rather than in any global table so
// rotation on one key never contends with another.
type entry struct {
	records []record.Record
	expires time.Time // Minimum ExpirationDate of all members
	rotate  uint32    // Accessed atomically under the shard read lock
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// Cache is the in-memory mirror of the live subset of the store. Keys are spread
// across shards by a keyed siphash so reads never block other reads and writes to one
// key never block activity on unrelated keys.
//
// The cache never serves a record whose expiration has passed: a read finding a stale
// entry treats it as absent regardless of whether the background sweep has run yet.
type Cache struct {
	k0, k1 uint64 // siphash keys, fixed at construction
	shards [shardCount]*shard
}

// New must be used to construct a Cache - a zero value will panic on use due to
// unconstructed shard maps.
func New() *Cache {
	t := &Cache{}
	var seed [16]byte
	rand.Read(seed[:]) // rand.Read never actually fails
	t.k0 = binary.LittleEndian.Uint64(seed[0:8])
	t.k1 = binary.LittleEndian.Uint64(seed[8:16])
	for ix := range t.shards {
		t.shards[ix] = &shard{entries: make(map[string]*entry)}
	}

	return t
}

func (t *Cache) shardFor(key string) *shard {
	return t.shards[siphash.Hash(t.k0, t.k1, []byte(key))&(shardCount-1)]
}

// Get returns the cached ordered records for (domain, qType) or ok=false on a miss. A
// miss is normal control flow, not an error, and the caller must not retry internally.
//
// On a hit the records come back ascending by priority with each equal-priority run
// cyclically rotated one step further than the previous Get for the same key, which
// distributes load across equally eligible answers deterministically.
func (t *Cache) Get(domain string, qType uint16) ([]record.Record, bool) {
	key := dnsutil.LookupKey(domain, qType)
	sh := t.shardFor(key)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[key]
	if !ok {
		return nil, false
	}
	if !time.Now().Before(e.expires) { // Lazy expiration
		return nil, false
	}

	n := int(atomic.AddUint32(&e.rotate, 1) - 1)

	out := make([]record.Record, 0, len(e.records))
	ix := 0
	for ix < len(e.records) { // Rotate each equal-priority run by n
		jx := ix + 1
		for jx < len(e.records) && e.records[jx].Priority == e.records[ix].Priority {
			jx++
		}
		run := e.records[ix:jx]
		off := n % len(run)
		out = append(out, run[off:]...)
		out = append(out, run[:off]...)
		ix = jx
	}

	return out, true
}

// Put installs or replaces the entry for (domain, qType). The entry's effective
// expiration is the minimum ExpirationDate among the supplied records so the whole
// entry dies when its earliest-expiring member would be invalid individually. Rotation
// state starts afresh.
//
// An empty records slice is treated as an Invalidate.
func (t *Cache) Put(domain string, qType uint16, recs []record.Record) {
	if len(recs) == 0 {
		t.Invalidate(domain, qType)
		return
	}

	cp := make([]record.Record, len(recs))
	copy(cp, recs)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Priority < cp[j].Priority })

	expires := cp[0].ExpirationDate
	for _, rec := range cp[1:] {
		if rec.ExpirationDate.Before(expires) {
			expires = rec.ExpirationDate
		}
	}

	key := dnsutil.LookupKey(domain, qType)
	sh := t.shardFor(key)

	sh.mu.Lock()
	sh.entries[key] = &entry{records: cp, expires: expires}
	sh.mu.Unlock()
}

// Invalidate removes the entry unconditionally. Used after detecting staleness or on
// explicit refresh.
func (t *Cache) Invalidate(domain string, qType uint16) {
	key := dnsutil.LookupKey(domain, qType)
	sh := t.shardFor(key)

	sh.mu.Lock()
	delete(sh.entries, key)
	sh.mu.Unlock()
}

// RemoveExpired eagerly drops entries whose effective expiration is at or before
// now. The background sweep calls this to reduce memory footprint - correctness of
// reads never depends on it as Get expires lazily anyway. Returns the number of
// entries removed.
func (t *Cache) RemoveExpired(now time.Time) int {
	removed := 0
	for _, sh := range t.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			if !now.Before(e.expires) {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}

	return removed
}

// Len returns the current entry count across all shards.
func (t *Cache) Len() int {
	n := 0
	for _, sh := range t.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}

	return n
}
