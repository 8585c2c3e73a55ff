// Package reaper runs the periodic expiration sweep over the record store and the
// in-memory cache. The sweep reduces disk and memory footprint; read correctness never
// depends on it as both layers also expire lazily at read time.
package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/hjrgrn/rusty-dns/cache"
	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/store"
)

const defaultSweepTimeout = 30 * time.Second // Store I/O budget for one sweep

// Reaper owns the background sweep go-routine. It is created stopped; Start launches
// it and Stop signals shutdown and waits for it to exit. A sweep failure is logged and
// retried on the next tick - the reaper never terminates the process and never blocks
// the resolver's read path.
type Reaper struct {
	store    store.Store
	cache    *cache.Cache
	interval time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewReaper creates a Reaper sweeping every interval. Intervals below one second are
// raised to one second to stop a mistyped config from turning the sweep into a
// busy-loop.
func NewReaper(st store.Store, ca *cache.Cache, interval time.Duration) *Reaper {
	if interval < time.Second {
		interval = time.Second
	}

	return &Reaper{
		store:    st,
		cache:    ca,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs an eager sweep immediately - rows which died while the process was down
// must go before anything is served - then launches the periodic go-routine.
func (t *Reaper) Start() {
	t.sweep(time.Now())

	t.wg.Add(1)
	go t.run()
}

// Stop tells the sweep go-routine to exit and waits until it has. Safe to call once
// only.
func (t *Reaper) Stop() {
	close(t.done)
	t.wg.Wait()
}

func (t *Reaper) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.sweep(time.Now())
		}
	}
}

func (t *Reaper) sweep(now time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSweepTimeout)
	defer cancel()

	pruned, err := t.store.PruneExpired(ctx, now)
	if err != nil {
		log.Majorf("reaper: %s - will retry next sweep", err.Error())
		return
	}

	removed := t.cache.RemoveExpired(now)

	if (pruned > 0 || removed > 0) && log.IfMinor() {
		log.Minorf("reaper: pruned %d rows, evicted %d cache entries", pruned, removed)
	}
}
