package precache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCacheMiss is returned (wrapped in *CacheMiss) when neither the
	// requested path nor the offline fallback is cached. Callers go to network.
	ErrCacheMiss = errors.New("precache: cache miss")
	// ErrSuperseded is returned to waiters of an install replaced by a newer manifest.
	ErrSuperseded = errors.New("precache: install superseded")
	// ErrNothingToActivate is returned by Takeover when no generation is Installed.
	ErrNothingToActivate = errors.New("precache: no installed generation to activate")
	// ErrActiveGeneration is wrapped by *EvictionError when eviction targets the live generation.
	ErrActiveGeneration = errors.New("precache: generation is active")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("precache: controller closed")

	errProviderRejected = errors.New("precache: provider rejected write")
)

// ManifestError reports a malformed manifest. It is fatal to the install
// attempt that loaded it only.
type ManifestError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ManifestError) Error() string {
	switch {
	case e.URL != "" && e.Err != nil:
		return fmt.Sprintf("precache: manifest entry %q: %s: %v", e.URL, e.Reason, e.Err)
	case e.URL != "":
		return fmt.Sprintf("precache: manifest entry %q: %s", e.URL, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("precache: manifest: %s: %v", e.Reason, e.Err)
	default:
		return fmt.Sprintf("precache: manifest: %s", e.Reason)
	}
}

func (e *ManifestError) Unwrap() error { return e.Err }

// InstallError reports the assets that could not be retrieved or stored.
// The generation was not promoted and its partial entries were released.
type InstallError struct {
	Generation  string
	FailedPaths []string // sorted
	Errs        map[string]error
}

func newInstallError(gen string, failed map[string]error) *InstallError {
	paths := make([]string, 0, len(failed))
	for p := range failed {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return &InstallError{Generation: gen, FailedPaths: paths, Errs: failed}
}

func (e *InstallError) Error() string {
	const show = 5
	paths := e.FailedPaths
	suffix := ""
	if len(paths) > show {
		suffix = fmt.Sprintf(" (+%d more)", len(paths)-show)
		paths = paths[:show]
	}
	return fmt.Sprintf("precache: install %s: %d asset(s) failed: %s%s",
		e.Generation, len(e.FailedPaths), strings.Join(paths, ", "), suffix)
}

func (e *InstallError) Unwrap() []error {
	errs := make([]error, 0, len(e.FailedPaths))
	for _, p := range e.FailedPaths {
		if err := e.Errs[p]; err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// CacheMiss is the expected, non-fatal outcome of Serve when nothing cached
// matches. It unwraps to ErrCacheMiss.
type CacheMiss struct {
	Path       string
	Generation string // empty when no generation is active
}

func (e *CacheMiss) Error() string {
	if e.Generation == "" {
		return fmt.Sprintf("precache: cache miss for %q (no active generation)", e.Path)
	}
	return fmt.Sprintf("precache: cache miss for %q in %s", e.Path, e.Generation)
}

func (e *CacheMiss) Unwrap() error { return ErrCacheMiss }

// EvictionError reports a failed eviction. Wrapping ErrActiveGeneration it
// signals a broken invariant in the caller.
type EvictionError struct {
	Generation string
	Err        error
}

func (e *EvictionError) Error() string {
	return fmt.Sprintf("precache: evict %s: %v", e.Generation, e.Err)
}

func (e *EvictionError) Unwrap() error { return e.Err }
