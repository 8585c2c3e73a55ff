package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/miekg/dns"

	"github.com/hjrgrn/rusty-dns/record"
)

func aRecord(domain, address string, priority uint16, expires time.Time) record.Record {
	return record.Record{
		Domain:         domain,
		RecordType:     dns.TypeA,
		Address:        address,
		Priority:       priority,
		TTL:            300,
		ExpirationDate: expires,
	}
}

func TestGetPut(t *testing.T) {
	c := New()
	future := time.Now().Add(time.Hour)

	if _, ok := c.Get("a.b.c", dns.TypeA); ok {
		t.Error("Empty cache should miss")
	}

	c.Put("a.b.c", dns.TypeA, []record.Record{aRecord("a.b.c", "1.2.3.4", 0, future)})
	recs, ok := c.Get("a.b.c", dns.TypeA)
	if !ok || len(recs) != 1 || recs[0].Address != "1.2.3.4" {
		t.Error("Expected a hit with one record, got", ok, recs)
	}

	if _, ok = c.Get("a.b.c", dns.TypeAAAA); ok {
		t.Error("Different qType should miss")
	}

	// Replacement overwrites the prior entry
	c.Put("a.b.c", dns.TypeA, []record.Record{aRecord("a.b.c", "5.6.7.8", 0, future)})
	recs, _ = c.Get("a.b.c", dns.TypeA)
	if len(recs) != 1 || recs[0].Address != "5.6.7.8" {
		t.Error("Put should replace, got", recs)
	}

	c.Invalidate("a.b.c", dns.TypeA)
	if _, ok = c.Get("a.b.c", dns.TypeA); ok {
		t.Error("Invalidate should remove the entry")
	}
}

func TestPriorityOrdering(t *testing.T) {
	c := New()
	future := time.Now().Add(time.Hour)

	c.Put("example.net", dns.TypeA, []record.Record{
		aRecord("example.net", "10.0.0.10", 10, future),
		aRecord("example.net", "10.0.0.20", 20, future),
		aRecord("example.net", "10.0.0.5", 5, future),
	})

	recs, ok := c.Get("example.net", dns.TypeA)
	if !ok || len(recs) != 3 {
		t.Fatal("Expected three records", ok, recs)
	}
	for ix, pref := range []uint16{5, 10, 20} {
		if recs[ix].Priority != pref {
			t.Error(ix, "Priority order wrong:", recs[ix].Priority, "expect", pref)
		}
	}
}

func TestEqualPriorityRotation(t *testing.T) {
	c := New()
	future := time.Now().Add(time.Hour)

	c.Put("wiki.archlinux.org", dns.TypeA, []record.Record{
		aRecord("wiki.archlinux.org", "1.2.3.4", 0, future),
		aRecord("wiki.archlinux.org", "1.2.3.5", 0, future),
	})

	first, _ := c.Get("wiki.archlinux.org", dns.TypeA)
	second, _ := c.Get("wiki.archlinux.org", dns.TypeA)
	third, _ := c.Get("wiki.archlinux.org", dns.TypeA)

	if first[0].Address != "1.2.3.4" || first[1].Address != "1.2.3.5" {
		t.Error("First Get should return insertion order, got", first)
	}
	if second[0].Address != "1.2.3.5" || second[1].Address != "1.2.3.4" {
		t.Error("Second Get should be rotated one step, got", second)
	}
	if third[0].Address != first[0].Address {
		t.Error("Third Get should cycle back to the start, got", third)
	}
}

func TestRotationPerPriorityRun(t *testing.T) {
	c := New()
	future := time.Now().Add(time.Hour)

	// One preferred record plus an equal-priority pair: the preferred record must
	// stay at the front while the pair behind it rotates.
	c.Put("example.net", dns.TypeA, []record.Record{
		aRecord("example.net", "10.0.0.1", 0, future),
		aRecord("example.net", "10.0.0.2", 5, future),
		aRecord("example.net", "10.0.0.3", 5, future),
	})

	first, _ := c.Get("example.net", dns.TypeA)
	second, _ := c.Get("example.net", dns.TypeA)

	if first[0].Address != "10.0.0.1" || second[0].Address != "10.0.0.1" {
		t.Error("Preferred record should never rotate away from the front")
	}
	if first[1].Address != "10.0.0.2" || second[1].Address != "10.0.0.3" {
		t.Error("Equal-priority run should rotate", first, second)
	}
}

func TestLazyExpiration(t *testing.T) {
	c := New()

	c.Put("short.example.net", dns.TypeA, []record.Record{
		aRecord("short.example.net", "1.2.3.4", 0, time.Now().Add(30*time.Millisecond)),
	})

	if _, ok := c.Get("short.example.net", dns.TypeA); !ok {
		t.Error("Entry should be live before expiration")
	}

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("short.example.net", dns.TypeA); ok {
		t.Error("Stale entry must read as absent without any sweep running")
	}
}

func TestMinExpirationGovernsEntry(t *testing.T) {
	c := New()
	soon := time.Now().Add(30 * time.Millisecond)
	later := time.Now().Add(time.Hour)

	c.Put("example.net", dns.TypeA, []record.Record{
		aRecord("example.net", "1.2.3.4", 0, soon),
		aRecord("example.net", "1.2.3.5", 0, later),
	})

	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("example.net", dns.TypeA); ok {
		t.Error("Entry must expire with its earliest-expiring member")
	}
}

func TestRemoveExpired(t *testing.T) {
	c := New()
	now := time.Now()

	c.Put("dead.example.net", dns.TypeA,
		[]record.Record{aRecord("dead.example.net", "1.2.3.4", 0, now.Add(time.Millisecond))})
	c.Put("live.example.net", dns.TypeA,
		[]record.Record{aRecord("live.example.net", "1.2.3.5", 0, now.Add(time.Hour))})

	removed := c.RemoveExpired(now.Add(time.Second))
	if removed != 1 {
		t.Error("Expected one removal, got", removed)
	}
	if c.Len() != 1 {
		t.Error("Expected one surviving entry, got", c.Len())
	}
	if _, ok := c.Get("live.example.net", dns.TypeA); !ok {
		t.Error("Live entry should survive the sweep")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	future := time.Now().Add(time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			domain := "concurrent.example.net"
			for ix := 0; ix < 200; ix++ {
				c.Put(domain, uint16(g+1),
					[]record.Record{aRecord(domain, "1.2.3.4", 0, future)})
				c.Get(domain, uint16(g+1))
				c.Get(domain, uint16((g+1)%8+1))
			}
		}(g)
	}
	wg.Wait()

	if c.Len() != 8 {
		t.Error("Expected eight entries after concurrent churn, got", c.Len())
	}
}
