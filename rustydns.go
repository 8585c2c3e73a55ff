package main

import (
	"os"
	"sync"
	"time"

	"github.com/markdingo/rrl"

	"github.com/hjrgrn/rusty-dns/cache"
	"github.com/hjrgrn/rusty-dns/reaper"
	"github.com/hjrgrn/rusty-dns/resolver"
	"github.com/hjrgrn/rusty-dns/store"
)

// rustyDNS is the container for the whole application. A single instance is created
// by main() and it lives for the life of the process.
type rustyDNS struct {
	cfg       *config
	startTime time.Time

	wg      sync.WaitGroup
	sig     chan os.Signal // All signal handling occurs in Run()
	done    chan struct{}  // Closed to tell servers to stop
	stopped chan struct{}  // Closed when Run() has fully wound down

	store      store.Store
	cache      *cache.Cache
	lookup     *resolver.Lookup
	reaper     *reaper.Reaper
	rrlHandler *rrl.RRL // nil unless an --rrl option made it active

	serversMu sync.Mutex
	servers   []*server
}

func newRustyDNS() *rustyDNS {
	t := &rustyDNS{cfg: newConfig(), startTime: time.Now()}
	t.sig = make(chan os.Signal, 4) // Should be enough buffering to never lose signals
	t.done = make(chan struct{})
	t.stopped = make(chan struct{})

	return t
}

func (t *rustyDNS) addServer(srv *server) {
	t.serversMu.Lock()
	defer t.serversMu.Unlock()
	t.servers = append(t.servers, srv)
}

// stopServers can only be called once per rustyDNS instance.
func (t *rustyDNS) stopServers() {
	t.serversMu.Lock()
	defer t.serversMu.Unlock()
	for _, srv := range t.servers {
		srv.stop()
	}
}

// Done is closed once Run() has completely wound down. Mostly for tests.
func (t *rustyDNS) Done() chan struct{} {
	return t.stopped
}
