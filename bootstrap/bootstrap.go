// Package bootstrap assembles a runnable precache server from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/precache"
	"github.com/unkn0wn-root/precache/codec"
	"github.com/unkn0wn-root/precache/config"
	"github.com/unkn0wn-root/precache/genstore"
	"github.com/unkn0wn-root/precache/handler"
	asynchook "github.com/unkn0wn-root/precache/hooks/async"
	"github.com/unkn0wn-root/precache/provider"
	pbig "github.com/unkn0wn-root/precache/provider/bigcache"
	predis "github.com/unkn0wn-root/precache/provider/redis"
	pris "github.com/unkn0wn-root/precache/provider/ristretto"
	"github.com/unkn0wn-root/precache/sloghooks"
	"github.com/unkn0wn-root/precache/source/fssource"
	"github.com/unkn0wn-root/precache/source/httpsource"
)

// bigcache has no per-entry TTL; without AssetTTL entries live this long.
const defaultBigCacheWindow = 365 * 24 * time.Hour

// App is a wired controller and its HTTP surface.
type App struct {
	Controller *precache.Controller
	Handler    http.Handler

	log    precache.Logger
	hooks  *asynchook.Hooks
	closer func() error
}

// New builds the provider, genstore, source and controller described by cfg.
// It does not install anything; call Start for the initial install.
func New(ctx context.Context, cfg *config.Config, log precache.Logger) (*App, error) {
	if log == nil {
		log = precache.NopLogger{}
	}
	for _, w := range cfg.Warnings() {
		log.Warn(w, precache.Fields{"action": "config"})
	}

	src, network, err := buildSource(cfg)
	if err != nil {
		return nil, err
	}

	var rdb goredis.UniversalClient
	if cfg.Provider == config.ProviderRedis {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
	}

	p, err := buildProvider(ctx, cfg, rdb)
	if err != nil {
		return nil, err
	}

	var gens genstore.GenStore
	if rdb != nil {
		// replicas sharing redis must agree on install state
		gens = genstore.NewRedisGenStore(rdb, cfg.Namespace)
	}

	assetCodec, err := buildCodec(cfg.AssetCodec)
	if err != nil {
		_ = p.Close(ctx)
		return nil, err
	}

	hooks := buildHooks(cfg)

	ctrl, err := precache.New(precache.Options{
		Namespace:          cfg.Namespace,
		Provider:           p,
		Source:             src,
		Codec:              assetCodec,
		GenStore:           gens,
		Manifests:          cfg.Manifest(),
		Logger:             log,
		Hooks:              hooksOption(hooks),
		OfflinePath:        cfg.OfflinePath,
		InstallConcurrency: cfg.InstallConcurrency,
		AssetTTL:           cfg.AssetTTL.DurationValue(),
		MaxAssetSize:       cfg.MaxAssetSize,
		AutoTakeover:       cfg.AutoTakeover,
		EvictionPoll:       cfg.EvictionPoll.DurationValue(),
	})
	if err != nil {
		if hooks != nil {
			hooks.Close()
		}
		_ = p.Close(ctx)
		return nil, err
	}

	app := &App{
		Controller: ctrl,
		Handler:    handler.New(handler.Options{Controller: ctrl, Network: network, Logger: log}),
		log:        log,
		hooks:      hooks,
	}
	if rdb != nil {
		app.closer = rdb.Close
	}
	return app, nil
}

// Start installs the configured manifest. With AutoTakeover off the result
// waits for POST /-/takeover.
func (a *App) Start(ctx context.Context) error {
	id, err := a.Controller.Reload(ctx)
	if err != nil {
		return err
	}
	a.log.Info("initial install finished", precache.Fields{
		"gen":   id,
		"state": a.Controller.State().String(),
	})
	return nil
}

// Close shuts down the controller, flushes queued hook events and closes any
// shared client.
func (a *App) Close(ctx context.Context) error {
	err := a.Controller.Close(ctx)
	if a.hooks != nil {
		a.hooks.Close()
		if n := a.hooks.Dropped(); n > 0 {
			a.log.Warn("hook events dropped", precache.Fields{"count": n})
		}
	}
	if a.closer != nil {
		err = errors.Join(err, a.closer())
	}
	return err
}

// buildHooks returns nil unless cfg.Hooks is "slog". Events go to slog.Default
// from one worker so the serve path never blocks on logging.
func buildHooks(cfg *config.Config) *asynchook.Hooks {
	if cfg.Hooks != config.HooksSlog {
		return nil
	}
	raw := sloghooks.New(slog.Default(), sloghooks.Options{
		FallbackEvery: cfg.HookSampleEvery,
		CorruptEvery:  cfg.HookSampleEvery,
	})
	return asynchook.New(raw, 1, cfg.HookQueue)
}

// hooksOption keeps a nil *asynchook.Hooks from becoming a non-nil interface.
func hooksOption(h *asynchook.Hooks) precache.Hooks {
	if h == nil {
		return nil
	}
	return h
}

func buildSource(cfg *config.Config) (precache.Source, precache.Source, error) {
	if cfg.AssetDir != "" {
		info, err := os.Stat(cfg.AssetDir)
		if err != nil {
			return nil, nil, fmt.Errorf("AssetDir: %w", err)
		}
		if !info.IsDir() {
			return nil, nil, fmt.Errorf("AssetDir %s is not a directory", cfg.AssetDir)
		}
		return fssource.New(os.DirFS(cfg.AssetDir)), nil, nil
	}

	src, err := httpsource.New(httpsource.Options{
		Origin:  cfg.Origin,
		Timeout: cfg.UpstreamTimeout.DurationValue(),
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.NetworkFallback {
		return src, src, nil
	}
	return src, nil, nil
}

func buildProvider(ctx context.Context, cfg *config.Config, rdb goredis.UniversalClient) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderRistretto:
		rc := pris.DefaultConfig()
		rc.MaxCost = cfg.MaxCacheBytes
		p, err := pris.New(rc)
		if err != nil {
			return nil, fmt.Errorf("ristretto: %w", err)
		}
		return p, nil
	case config.ProviderBigCache:
		window := cfg.AssetTTL.DurationValue()
		if window <= 0 {
			window = defaultBigCacheWindow
		}
		p, err := pbig.New(ctx, pbig.Config{
			LifeWindow:         window,
			MaxEntrySize:       cfg.MaxAssetSize,
			HardMaxCacheSizeMB: int(cfg.MaxCacheBytes >> 20),
		})
		if err != nil {
			return nil, fmt.Errorf("bigcache: %w", err)
		}
		return p, nil
	case config.ProviderRedis:
		p, err := predis.New(predis.Config{Client: rdb})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func buildCodec(name string) (codec.Codec[precache.Asset], error) {
	switch name {
	case "", "msgpack":
		return codec.Msgpack[precache.Asset]{}, nil
	case "cbor":
		c, err := codec.NewCBOR[precache.Asset](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "json":
		return codec.JSON[precache.Asset]{}, nil
	default:
		return nil, fmt.Errorf("unknown asset codec %q", name)
	}
}
