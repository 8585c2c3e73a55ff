package reaper

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/cache"
	"github.com/hjrgrn/rusty-dns/log"
	"github.com/hjrgrn/rusty-dns/mock"
	"github.com/hjrgrn/rusty-dns/record"
	"github.com/hjrgrn/rusty-dns/store"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), uuid.NewString()+".sqlite"))
	if err != nil {
		t.Fatal("Setup error opening store", err)
	}
	t.Cleanup(func() { st.Close() })

	return st
}

func TestEagerSweepOnStart(t *testing.T) {
	st := newStore(t)
	ca := cache.New()

	short := record.Record{
		Domain: "short.example.net", RecordType: dns.TypeA, Address: "1.2.3.4",
		TTL: 300, ExpirationDate: time.Now().Add(20 * time.Millisecond),
	}
	if _, err := st.Upsert(context.Background(), []record.Record{short}); err != nil {
		t.Fatal("Setup error seeding store", err)
	}
	ca.Put("short.example.net", dns.TypeA, []record.Record{short})

	time.Sleep(30 * time.Millisecond) // Let the row die

	r := NewReaper(st, ca, time.Hour) // Interval long enough to never tick
	r.Start()
	defer r.Stop()

	n, err := st.Count(context.Background())
	if err != nil {
		t.Fatal("Unexpected Count error", err)
	}
	if n != 0 {
		t.Error("Start should sweep eagerly, rows left:", n)
	}
	if ca.Len() != 0 {
		t.Error("Start should evict dead cache entries, left:", ca.Len())
	}
}

func TestPeriodicSweep(t *testing.T) {
	st := newStore(t)
	ca := cache.New()

	r := NewReaper(st, ca, time.Second)
	r.Start()
	defer r.Stop()

	short := record.Record{
		Domain: "tick.example.net", RecordType: dns.TypeA, Address: "1.2.3.4",
		TTL: 300, ExpirationDate: time.Now().Add(100 * time.Millisecond),
	}
	if _, err := st.Upsert(context.Background(), []record.Record{short}); err != nil {
		t.Fatal("Setup error seeding store", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		n, err := st.Count(context.Background())
		if err != nil {
			t.Fatal("Unexpected Count error", err)
		}
		if n == 0 {
			return // Swept
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Error("Periodic sweep never removed the expired row")
}

// failingStore wraps a real store and fails PruneExpired on demand.
type failingStore struct {
	store.Store
	mu   sync.Mutex
	fail bool
}

func (t *failingStore) setFail(f bool) {
	t.mu.Lock()
	t.fail = f
	t.mu.Unlock()
}

func (t *failingStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	t.mu.Lock()
	fail := t.fail
	t.mu.Unlock()
	if fail {
		return 0, &store.IOError{Op: "prune", Err: errors.New("disk on fire")}
	}

	return t.Store.PruneExpired(ctx, now)
}

func TestSweepFailureIsRetried(t *testing.T) {
	out := &mock.IOWriter{}
	log.SetOut(out)
	log.SetLevel(log.MajorLevel)

	fs := &failingStore{Store: newStore(t), fail: true}
	ca := cache.New()

	r := NewReaper(fs, ca, time.Second)
	r.Start() // Eager sweep fails, must not panic or stop anything
	defer r.Stop()

	if !strings.Contains(out.String(), "retry next sweep") {
		t.Error("Failed sweep should be logged, got", out.String())
	}

	fs.setFail(false) // Next tick should succeed quietly
	out.Reset()
	time.Sleep(1300 * time.Millisecond)

	if strings.Contains(out.String(), "retry next sweep") {
		t.Error("Recovered sweep should not log failures, got", out.String())
	}
}
