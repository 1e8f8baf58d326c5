package precache

import "sync/atomic"

// closedBit marks a generation that no longer admits readers. The low bits of
// Generation.refs count in-flight readers.
const closedBit = int64(1) << 62

// Generation is an immutable snapshot of one manifest. Readers pin it with a
// reference count so eviction waits for in-flight serves to finish.
type Generation struct {
	id       string
	manifest Manifest
	byPath   map[string]ManifestEntry

	refs atomic.Int64
	idle chan struct{} // signalled when refs drops to zero
}

func newGeneration(m Manifest) *Generation {
	byPath := make(map[string]ManifestEntry, len(m))
	for _, e := range m {
		byPath[e.URL] = e
	}
	return &Generation{
		id:       m.ID(),
		manifest: m,
		byPath:   byPath,
		idle:     make(chan struct{}, 1),
	}
}

func (g *Generation) ID() string { return g.id }

// Manifest returns a copy of the generation's manifest.
func (g *Generation) Manifest() Manifest {
	out := make(Manifest, len(g.manifest))
	copy(out, g.manifest)
	return out
}

func (g *Generation) entry(path string) (ManifestEntry, bool) {
	e, ok := g.byPath[path]
	return e, ok
}

// acquire pins g for a reader. It fails once g has been closed for eviction.
func (g *Generation) acquire() bool {
	for {
		v := g.refs.Load()
		if v&closedBit != 0 {
			return false
		}
		if g.refs.CompareAndSwap(v, v+1) {
			return true
		}
	}
}

func (g *Generation) release() {
	if g.refs.Add(-1) == 0 {
		select {
		case g.idle <- struct{}{}:
		default:
		}
	}
}

// tryClose succeeds only when no reader holds g; afterwards acquire fails.
func (g *Generation) tryClose() bool {
	return g.refs.CompareAndSwap(0, closedBit)
}

// Readers reports the number of in-flight readers.
func (g *Generation) Readers() int64 { return g.refs.Load() &^ closedBit }
