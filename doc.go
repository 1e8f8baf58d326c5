// Package precache implements a versioned precache-and-serve engine for an
// offline-capable application shell.
//
// Components:
//   - Manifest store: loads and validates (url, revision) pairs, computes
//     order-independent diffs and generation ids.
//   - Engine: installs a manifest into a generation namespace of a Provider,
//     looks up and serves assets from the active generation, evicts old ones.
//   - Controller: the install/activate state machine. It owns the single
//     active-generation pointer and swaps it with compare-and-swap.
//
// Keys:
//
//	asset:<ns>:<generation>:<url>  - one framed, codec-encoded Asset
//
// Flow:
//
//	ctrl, _ := precache.New(precache.Options{Namespace: "shell", Provider: p, Source: src})
//	_, _ = ctrl.Update(ctx, manifest) // install next generation
//	_ = ctrl.Takeover(ctx)            // promote it, old generation drains and is evicted
//	a, err := ctrl.Serve(ctx, "/")    // errors.Is(err, precache.ErrCacheMiss) => go to network
package precache
