package precache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State of the lifecycle controller.
type State int32

const (
	Idle State = iota
	Installing
	Installed
	Activating
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Installing:
		return "installing"
	case Installed:
		return "installed"
	case Activating:
		return "activating"
	case Active:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type installJob struct {
	gen        *Generation
	cancel     context.CancelFunc
	done       chan struct{}
	err        error
	superseded bool // guarded by Controller.mu
}

// Controller drives Idle -> Installing -> Installed -> Activating -> Active.
// It is the only writer of the engine's active pointer.
type Controller struct {
	engine       *Engine
	manifests    *ManifestStore
	log          Logger
	hooks        Hooks
	autoTakeover bool
	evictPoll    time.Duration

	mu         sync.Mutex
	state      State
	installing *installJob
	installed  *Generation
	retiring   map[string]chan struct{} // gen id -> closed once its entries are released
	closed     bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup // installs and evictions
}

// Engine exposes the cache engine for direct Install/Lookup/Evict.
func (c *Controller) Engine() *Engine { return c.engine }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active returns the live generation id, or "".
func (c *Controller) Active() string { return c.engine.Active() }

// Installing returns the id of the in-progress install, or "".
func (c *Controller) Installing() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installing == nil {
		return ""
	}
	return c.installing.gen.id
}

// Pending returns the id of the Installed generation awaiting takeover, or "".
func (c *Controller) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.installed == nil {
		return ""
	}
	return c.installed.id
}

// Serve answers requestPath from the active generation. See Engine.Serve.
func (c *Controller) Serve(ctx context.Context, requestPath string) (Asset, error) {
	return c.engine.Serve(ctx, requestPath)
}

// Lookup reads path from a specific generation. See Engine.Lookup.
func (c *Controller) Lookup(ctx context.Context, genID, path string) (Asset, bool, error) {
	return c.engine.Lookup(ctx, genID, path)
}

// Reload loads the configured manifest source and installs it.
func (c *Controller) Reload(ctx context.Context) (string, error) {
	m, err := c.manifests.Load(ctx)
	if err != nil {
		c.log.Error("manifest load failed", Fields{"err": err})
		return "", err
	}
	return c.Update(ctx, m)
}

// Update installs the generation described by entries and returns its id.
//
// A manifest equal to the active one is a no-op. A manifest equal to the one
// currently Installing joins that install. Any other manifest supersedes the
// running install (its waiters get ErrSuperseded and its partial entries are
// released) and any Installed-but-not-active generation.
//
// On failure the active generation keeps serving and the error is returned.
// If ctx ends first the install keeps running in the background.
func (c *Controller) Update(ctx context.Context, entries []ManifestEntry) (string, error) {
	m, err := NewManifest(entries)
	if err != nil {
		c.log.Error("manifest rejected", Fields{"err": err})
		return "", err
	}
	g := newGeneration(m)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}

	if job := c.installing; job != nil && job.gen.id == g.id {
		c.mu.Unlock()
		c.log.Debug("install coalesced", Fields{"gen": g.id})
		return g.id, c.wait(ctx, job)
	}
	if c.installed != nil && c.installed.id == g.id {
		c.mu.Unlock()
		return g.id, nil
	}

	c.supersedeLocked()

	var activeManifest Manifest
	if act := c.engine.active.Load(); act != nil {
		activeManifest = act.manifest
	}
	d, err := Diff(activeManifest, m)
	if err != nil {
		c.state = c.restingLocked()
		c.mu.Unlock()
		return "", err
	}
	if d.Empty() && activeManifest != nil {
		c.state = Active
		c.mu.Unlock()
		c.log.Debug("manifest unchanged", Fields{"gen": g.id})
		return g.id, nil
	}

	job := c.startInstallLocked(g)
	c.mu.Unlock()

	c.log.Info("install started", Fields{
		"gen":       g.id,
		"add":       len(d.ToAdd),
		"remove":    len(d.ToRemove),
		"unchanged": len(d.Unchanged),
	})
	return g.id, c.wait(ctx, job)
}

func (c *Controller) wait(ctx context.Context, job *installJob) error {
	select {
	case <-job.done:
		return job.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// supersedeLocked abandons the running install and any Installed generation.
func (c *Controller) supersedeLocked() {
	if job := c.installing; job != nil {
		c.abandonLocked(job)
		c.hooks.InstallSuperseded(job.gen.id)
		c.log.Info("install superseded", Fields{"gen": job.gen.id})
	}
	if g := c.installed; g != nil {
		c.installed = nil
		c.hooks.InstallSuperseded(g.id)
		c.log.Info("installed generation superseded", Fields{"gen": g.id})
		c.retireLocked(g)
	}
}

// abandonLocked cancels job. Until its runInstall has released what it stored,
// a new install of the same generation waits on job.done.
func (c *Controller) abandonLocked(job *installJob) {
	job.superseded = true
	job.cancel()
	c.installing = nil
	c.retiring[job.gen.id] = job.done
}

// wantedLocked reports whether genID is active, installed or being installed.
func (c *Controller) wantedLocked(genID string) bool {
	if c.engine.Active() == genID {
		return true
	}
	if c.installed != nil && c.installed.id == genID {
		return true
	}
	return c.installing != nil && c.installing.gen.id == genID
}

func (c *Controller) restingLocked() State {
	if c.engine.active.Load() != nil {
		return Active
	}
	return Idle
}

func (c *Controller) startInstallLocked(g *Generation) *installJob {
	ctx, cancel := context.WithCancel(c.baseCtx)
	job := &installJob{gen: g, cancel: cancel, done: make(chan struct{})}
	c.installing = job
	c.state = Installing

	// a previous generation with the same id may still be releasing entries
	evicting := c.retiring[g.id]

	c.wg.Add(1)
	go c.runInstall(ctx, job, evicting)
	return job
}

func (c *Controller) runInstall(ctx context.Context, job *installJob, evicting <-chan struct{}) {
	defer c.wg.Done()
	defer job.cancel()
	id := job.gen.id

	// not interruptible: job.done may itself gate a later install of id
	if evicting != nil {
		<-evicting
	}
	err := ctx.Err()
	if err == nil {
		err = c.engine.Install(ctx, id, job.gen.manifest)
	}

	c.mu.Lock()
	superseded := job.superseded
	if c.installing == job {
		c.installing = nil
	}
	evict := false
	switch {
	case superseded:
		job.err = fmt.Errorf("%w: %s", ErrSuperseded, id)
		// completed just before being superseded. Never activated, so no
		// reader holds it; drop it unless the same manifest was asked for again.
		evict = err == nil && !c.wantedLocked(id)
	case err != nil:
		job.err = err
		c.state = Idle
		c.log.Error("install failed; keeping active generation", Fields{
			"gen":    id,
			"active": c.engine.Active(),
			"err":    err,
		})
	default:
		c.installed = job.gen
		c.state = Installed
		c.log.Info("generation installed", Fields{"gen": id})
		if c.autoTakeover {
			job.err = c.activateLocked(job.gen)
		}
	}
	c.mu.Unlock()

	if evict {
		if err := c.engine.Evict(context.Background(), id); err != nil {
			c.log.Error("evict failed", Fields{"gen": id, "err": err})
		}
	}

	c.mu.Lock()
	if c.retiring[id] == job.done {
		delete(c.retiring, id)
	}
	c.mu.Unlock()
	close(job.done)
}

// Takeover promotes the Installed generation to active immediately, without
// waiting for readers of the previous generation. The previous generation is
// evicted in the background once its in-flight serves finish.
func (c *Controller) Takeover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.installed == nil {
		return ErrNothingToActivate
	}
	return c.activateLocked(c.installed)
}

func (c *Controller) activateLocked(g *Generation) error {
	if c.installed != g {
		return fmt.Errorf("%w: %s", ErrSuperseded, g.id)
	}
	c.state = Activating

	prev := c.engine.active.Load()
	if !c.engine.active.CompareAndSwap(prev, g) {
		c.state = Installed
		return errors.New("precache: active generation changed during takeover")
	}
	c.installed = nil
	c.state = Active

	prevID := ""
	if prev != nil {
		prevID = prev.id
	}
	c.hooks.Activated(g.id, prevID)
	c.log.Info("generation activated", Fields{"gen": g.id, "previous": prevID})

	if prev != nil && prev.id != g.id {
		c.retireLocked(prev)
	}
	return nil
}

// retireLocked evicts g in the background once no reader holds it.
// g must not be the active generation.
func (c *Controller) retireLocked(g *Generation) {
	prior := c.retiring[g.id]
	done := make(chan struct{})
	c.retiring[g.id] = done

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if prior != nil {
			<-prior
		}
		c.awaitDrained(g)
		if err := c.engine.Evict(context.Background(), g.id); err != nil {
			c.log.Error("evict failed", Fields{"gen": g.id, "err": err})
		}

		c.mu.Lock()
		if c.retiring[g.id] == done {
			delete(c.retiring, g.id)
		}
		c.mu.Unlock()
		close(done)
	}()
}

func (c *Controller) awaitDrained(g *Generation) {
	t := time.NewTicker(c.evictPoll)
	defer t.Stop()
	for !g.tryClose() {
		select {
		case <-g.idle:
		case <-t.C:
		}
	}
}

// Drain blocks until every background eviction started so far has finished.
func (c *Controller) Drain(ctx context.Context) error {
	for {
		c.mu.Lock()
		pending := make([]chan struct{}, 0, len(c.retiring))
		for _, ch := range c.retiring {
			pending = append(pending, ch)
		}
		c.mu.Unlock()
		if len(pending) == 0 {
			return nil
		}
		for _, ch := range pending {
			select {
			case <-ch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close cancels any running install, waits for background work, then closes
// the genstore and provider.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if job := c.installing; job != nil {
		c.abandonLocked(job)
	}
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.engine.close(ctx)
}
