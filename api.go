package precache

import (
	"context"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/precache/codec"
	gen "github.com/unkn0wn-root/precache/genstore"
	pr "github.com/unkn0wn-root/precache/provider"
)

const (
	defaultConcurrency      = 8
	defaultEvictionPoll     = 25 * time.Millisecond
	defaultCleanupInterval  = time.Hour
	defaultPendingRetention = 24 * time.Hour
)

// Options tune the engine and its lifecycle controller.
// Namespace, Provider and Source are required; others have sensible defaults.
type Options struct {
	// Required
	Namespace string // logical namespace to avoid collisions. e.g. "shell", "app:prod"
	Provider  pr.Provider
	Source    Source // asset origin used during install

	Codec              c.Codec[Asset] // nil => codec.Msgpack[Asset]
	GenStore           gen.GenStore   // nil => LocalGenStore (in-process)
	Manifests          ManifestSource // used by Reload; optional
	Logger             Logger         // if nil, NopLogger is used
	Hooks              Hooks          // if nil, NopHooks is used
	OfflinePath        string         // served when a request matches nothing; "" disables
	InstallConcurrency int            // parallel retrievals per install; 0 => 8
	AssetTTL           time.Duration  // provider TTL for stored assets; 0 => no expiry
	MaxAssetSize       int            // encoded asset size limit in bytes; 0 => unlimited
	AutoTakeover       bool           // activate each generation as soon as it is installed
	EvictionPoll       time.Duration  // reader-drain poll while evicting; 0 => 25ms
	CleanupInterval    time.Duration  // local genstore sweep; 0 => 1h
	PendingRetention   time.Duration  // local genstore: drop abandoned installs after; 0 => 24h
}

// New builds the engine and its controller. No generation is active until
// the first Update + Takeover (or Update with AutoTakeover).
func New(opts Options) (*Controller, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("precache: provider is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("precache: source is required")
	}
	if opts.Namespace == "" {
		return nil, fmt.Errorf("precache: namespace is required")
	}

	e := &Engine{
		ns:       opts.Namespace,
		provider: opts.Provider,
		source:   opts.Source,
		ttl:      opts.AssetTTL,
		known:    make(map[string]Manifest),
	}

	// defaults
	e.codec = coalesce[c.Codec[Asset]](opts.Codec, c.Msgpack[Asset]{})
	if opts.MaxAssetSize > 0 {
		e.codec = c.Limit[Asset]{Inner: e.codec, Max: opts.MaxAssetSize}
	}
	e.log = coalesce[Logger](opts.Logger, NopLogger{})
	e.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	e.concurrency = coalesce(opts.InstallConcurrency, defaultConcurrency)
	if opts.OfflinePath != "" {
		e.offline = normalizeURL(opts.OfflinePath)
	}

	if opts.GenStore != nil {
		e.gens = opts.GenStore
	} else {
		e.gens = gen.NewLocalGenStore(
			coalesce(opts.CleanupInterval, defaultCleanupInterval),
			coalesce(opts.PendingRetention, defaultPendingRetention),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ctrl := &Controller{
		engine:       e,
		log:          e.log,
		hooks:        e.hooks,
		autoTakeover: opts.AutoTakeover,
		evictPoll:    coalesce(opts.EvictionPoll, defaultEvictionPoll),
		retiring:     make(map[string]chan struct{}),
		baseCtx:      ctx,
		cancel:       cancel,
	}
	if opts.Manifests != nil {
		ctrl.manifests = NewManifestStore(opts.Manifests)
	}
	return ctrl, nil
}
