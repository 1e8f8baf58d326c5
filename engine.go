package precache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	c "github.com/unkn0wn-root/precache/codec"
	gen "github.com/unkn0wn-root/precache/genstore"
	"github.com/unkn0wn-root/precache/internal/util"
	"github.com/unkn0wn-root/precache/internal/wire"
	pr "github.com/unkn0wn-root/precache/provider"
)

// Engine stores generations in a Provider and serves from the active one.
// The active pointer is only written by the Controller.
type Engine struct {
	ns          string
	provider    pr.Provider
	codec       c.Codec[Asset]
	gens        gen.GenStore
	source      Source
	log         Logger
	hooks       Hooks
	offline     string
	concurrency int
	ttl         time.Duration

	active atomic.Pointer[Generation]

	// manifests of generations with entries in the provider, for eviction
	knownMu sync.Mutex
	known   map[string]Manifest
}

// Active returns the live generation id, or "" when none.
func (e *Engine) Active() string {
	if g := e.active.Load(); g != nil {
		return g.id
	}
	return ""
}

// Install retrieves every entry and stores it under the genID namespace.
// Entries already stored with the same revision are skipped, so a fully
// populated generation is a no-op. Entries unchanged relative to the active
// generation are copied from it. If any entry fails, every entry of genID is
// released and *InstallError is returned. Cancelling ctx aborts in-flight
// retrievals and releases partial entries as well.
func (e *Engine) Install(ctx context.Context, genID string, entries Manifest) error {
	if genID == "" {
		return errors.New("precache: install: empty generation id")
	}
	if _, err := Diff(nil, entries); err != nil {
		return err
	}
	e.remember(genID, entries)

	if st, err := e.gens.Get(ctx, genID); err != nil {
		e.log.Warn("genstore get failed", Fields{"gen": genID, "err": err})
	} else if st == gen.Complete && e.populated(ctx, genID, entries) {
		e.log.Debug("install skipped (generation already complete)", Fields{"gen": genID})
		return nil
	}
	if err := e.gens.Mark(ctx, genID, gen.Pending); err != nil {
		e.log.Warn("genstore mark pending failed", Fields{"gen": genID, "err": err})
	}

	// Pin the active generation so unchanged entries can be copied from it
	// without racing its eviction.
	prev := e.acquireActive()
	if prev != nil && prev.id == genID {
		prev.release()
		prev = nil
	}
	if prev != nil {
		defer prev.release()
	}

	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, ent := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := e.installEntry(gctx, genID, ent, prev); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				mu.Lock()
				failed[ent.URL] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		e.release(context.WithoutCancel(ctx), genID)
		return fmt.Errorf("precache: install %s aborted: %w", genID, err)
	}
	if len(failed) > 0 {
		e.release(ctx, genID)
		ierr := newInstallError(genID, failed)
		e.hooks.InstallFailed(genID, ierr.FailedPaths)
		return ierr
	}
	if err := e.gens.Mark(ctx, genID, gen.Complete); err != nil {
		e.log.Warn("genstore mark complete failed", Fields{"gen": genID, "err": err})
	}
	e.log.Debug("generation installed", Fields{"gen": genID, "entries": len(entries)})
	return nil
}

// prev is nil or pinned by the caller; prev.id != genID.
func (e *Engine) installEntry(ctx context.Context, genID string, ent ManifestEntry, prev *Generation) error {
	key := util.AssetKey(e.ns, genID, ent.URL)
	if f, ok, err := e.readFrame(ctx, key, genID); err == nil && ok && f.Revision == ent.Revision {
		return nil
	}

	if prev != nil {
		if pe, ok := prev.entry(ent.URL); ok && pe.Revision == ent.Revision {
			if a, ok, err := e.Lookup(ctx, prev.id, ent.URL); err == nil && ok {
				return e.store(ctx, key, genID, ent.Revision, a)
			}
		}
	}

	a, err := e.source.Retrieve(ctx, ent.URL)
	if err != nil {
		return err
	}
	return e.store(ctx, key, genID, ent.Revision, a)
}

func (e *Engine) store(ctx context.Context, key, genID, revision string, a Asset) error {
	payload, err := e.codec.Encode(a)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	frame, err := wire.EncodeAsset(genID, revision, payload)
	if err != nil {
		return err
	}
	ok, err := e.provider.Set(ctx, key, frame, int64(len(frame)), e.ttl)
	if err != nil {
		return err
	}
	if !ok {
		e.hooks.ProviderSetRejected(key)
		return errProviderRejected
	}
	return nil
}

func (e *Engine) populated(ctx context.Context, genID string, entries Manifest) bool {
	for _, ent := range entries {
		f, ok, err := e.readFrame(ctx, util.AssetKey(e.ns, genID, ent.URL), genID)
		if err != nil || !ok || f.Revision != ent.Revision {
			return false
		}
	}
	return true
}

// Lookup reads path from generation genID. It never mutates state: corrupt or
// foreign entries are reported to Hooks and treated as a miss.
func (e *Engine) Lookup(ctx context.Context, genID, path string) (Asset, bool, error) {
	key := util.AssetKey(e.ns, genID, path)
	f, ok, err := e.readFrame(ctx, key, genID)
	if err != nil || !ok {
		return Asset{}, false, err
	}
	a, err := e.codec.Decode(f.Payload)
	if err != nil {
		e.hooks.CorruptEntry(key, "value_decode")
		return Asset{}, false, nil
	}
	return a, true, nil
}

func (e *Engine) readFrame(ctx context.Context, key, genID string) (wire.Asset, bool, error) {
	raw, ok, err := e.provider.Get(ctx, key)
	if err != nil || !ok {
		return wire.Asset{}, false, err
	}
	f, err := wire.DecodeAsset(raw)
	if err != nil {
		e.hooks.CorruptEntry(key, "corrupt")
		return wire.Asset{}, false, nil
	}
	if f.Generation != genID {
		e.hooks.CorruptEntry(key, "foreign_generation")
		return wire.Asset{}, false, nil
	}
	return f, true, nil
}

// Serve resolves requestPath against the generation active at call start and
// completes against it even if activation happens meanwhile. It tries the
// exact path, the path without query or fragment, the directory index, then
// the offline fallback. Otherwise it returns *CacheMiss.
func (e *Engine) Serve(ctx context.Context, requestPath string) (Asset, error) {
	g := e.acquireActive()
	if g == nil {
		return Asset{}, &CacheMiss{Path: requestPath}
	}
	defer g.release()

	for _, p := range candidates(requestPath) {
		if _, ok := g.entry(p); !ok {
			continue
		}
		a, ok, err := e.Lookup(ctx, g.id, p)
		if err != nil {
			return Asset{}, err
		}
		if ok {
			return a, nil
		}
	}

	if e.offline != "" {
		if _, ok := g.entry(e.offline); ok {
			a, ok, err := e.Lookup(ctx, g.id, e.offline)
			if err != nil {
				return Asset{}, err
			}
			if ok {
				e.hooks.OfflineFallback(requestPath)
				return a, nil
			}
		}
	}
	e.log.Debug("serve miss", Fields{"path": requestPath, "gen": g.id})
	return Asset{}, &CacheMiss{Path: requestPath, Generation: g.id}
}

func candidates(p string) []string {
	out := []string{p}
	bare := p
	if i := strings.IndexAny(bare, "?#"); i >= 0 {
		bare = bare[:i]
		out = append(out, bare)
	}
	if strings.HasSuffix(bare, "/") {
		out = append(out, bare+"index.html")
	}
	return out
}

// Evict deletes every payload of genID and forgets its install state.
// Evicting the active generation fails with *EvictionError wrapping
// ErrActiveGeneration and deletes nothing.
func (e *Engine) Evict(ctx context.Context, genID string) error {
	if e.Active() == genID {
		return &EvictionError{Generation: genID, Err: ErrActiveGeneration}
	}
	n, err := e.release(ctx, genID)
	if err != nil {
		return &EvictionError{Generation: genID, Err: err}
	}
	e.hooks.Evicted(genID, n)
	e.log.Debug("generation evicted", Fields{"gen": genID, "entries": n})
	return nil
}

// release deletes all entries of genID regardless of state.
func (e *Engine) release(ctx context.Context, genID string) (int, error) {
	e.knownMu.Lock()
	m := e.known[genID]
	e.knownMu.Unlock()

	var errs []error
	for _, ent := range m {
		if err := e.provider.Del(ctx, util.AssetKey(e.ns, genID, ent.URL)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ent.URL, err))
		}
	}
	if err := e.gens.Forget(ctx, genID); err != nil {
		errs = append(errs, fmt.Errorf("genstore: %w", err))
	}
	if len(errs) > 0 {
		return len(m), errors.Join(errs...)
	}

	e.knownMu.Lock()
	delete(e.known, genID)
	e.knownMu.Unlock()
	return len(m), nil
}

func (e *Engine) remember(genID string, m Manifest) {
	e.knownMu.Lock()
	e.known[genID] = m
	e.knownMu.Unlock()
}

// acquireActive pins the current active generation, or returns nil.
func (e *Engine) acquireActive() *Generation {
	for {
		g := e.active.Load()
		if g == nil {
			return nil
		}
		if g.acquire() {
			return g
		}
		// closed after the pointer moved on; reload
	}
}

func (e *Engine) close(ctx context.Context) error {
	if e.gens != nil {
		_ = e.gens.Close(ctx)
	}
	if e.provider != nil {
		return e.provider.Close(ctx)
	}
	return nil
}
