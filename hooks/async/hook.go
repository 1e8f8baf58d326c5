// Package asynchook moves precache hook callbacks off the serve and install
// paths onto a bounded worker queue. Events are dropped when the queue is full.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    FallbackEvery: 10, // sample logs: ~every 10th offline fallback
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	ctrl, _ := precache.New(precache.Options{
//	    Namespace: "shell",
//	    Provider:  provider,
//	    Source:    source,
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/precache"
)

type Hooks struct {
	inner   precache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed against sends on a closed q
	closed bool
}

var _ precache.Hooks = (*Hooks)(nil)

func New(inner precache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close stops accepting events and waits for queued ones to run. Events
// reported after Close count as dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded on a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) InstallSuperseded(g string)   { h.try(func() { h.inner.InstallSuperseded(g) }) }
func (h *Hooks) Activated(g, prev string)     { h.try(func() { h.inner.Activated(g, prev) }) }
func (h *Hooks) Evicted(g string, n int)      { h.try(func() { h.inner.Evicted(g, n) }) }
func (h *Hooks) OfflineFallback(p string)     { h.try(func() { h.inner.OfflineFallback(p) }) }
func (h *Hooks) CorruptEntry(k, r string)     { h.try(func() { h.inner.CorruptEntry(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) InstallFailed(g string, paths []string) {
	cp := append([]string(nil), paths...)
	h.try(func() { h.inner.InstallFailed(g, cp) })
}
