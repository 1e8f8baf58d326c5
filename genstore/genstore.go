package genstore

import (
	"context"
	"time"
)

// State is the install state of one generation.
type State uint8

const (
	// Unknown means the store has no record (never installed, forgotten or expired).
	Unknown State = iota
	// Pending means an install started but has not finished.
	Pending
	// Complete means every entry of the generation was stored.
	Complete
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

func parseState(s string) State {
	switch s {
	case "pending":
		return Pending
	case "complete":
		return Complete
	default:
		return Unknown
	}
}

// GenStore records which generations are installed.
// Use LocalGenStore (default) for in-process state, or RedisGenStore when the
// payload provider is shared across processes or survives restarts.
type GenStore interface {
	// Get returns the recorded state; missing => Unknown.
	Get(ctx context.Context, gen string) (State, error)
	// Mark records gen as s.
	Mark(ctx context.Context, gen string, s State) error
	// Forget drops the record for gen.
	Forget(ctx context.Context, gen string) error
	// Cleanup prunes Pending records older than retention (no-op for Redis).
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
