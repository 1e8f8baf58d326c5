// Package sloghooks reports precache hook events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/precache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FallbackEvery uint64
	CorruptEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fallbackCtr atomic.Uint64
	corruptCtr  atomic.Uint64
}

var _ precache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) InstallFailed(gen string, failedPaths []string) {
	if h.l == nil {
		return
	}
	h.l.Error("precache.install_failed",
		"gen", gen,
		"failed", len(failedPaths),
		"paths", failedPaths)
}

func (h *Hooks) InstallSuperseded(gen string) {
	if h.l == nil {
		return
	}
	h.l.Info("precache.install_superseded", "gen", gen)
}

func (h *Hooks) Activated(gen, previous string) {
	if h.l == nil {
		return
	}
	h.l.Info("precache.activated",
		"gen", gen,
		"previous", previous)
}

func (h *Hooks) Evicted(gen string, entries int) {
	if h.l == nil {
		return
	}
	h.l.Info("precache.evicted",
		"gen", gen,
		"entries", entries)
}

func (h *Hooks) OfflineFallback(path string) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Debug("precache.offline_fallback", "path", path)
}

func (h *Hooks) CorruptEntry(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("precache.corrupt_entry",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("precache.provider_set_rejected",
		"key", h.redact(storageKey))
}
