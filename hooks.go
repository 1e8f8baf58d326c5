package precache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; some are called on the
// serve path.
type Hooks interface {
	// An install attempt failed; the generation was not promoted.
	InstallFailed(gen string, failedPaths []string)

	// An Installing or Installed generation was replaced by a newer manifest.
	InstallSuperseded(gen string)

	// gen became active. previous is "" on first activation.
	Activated(gen, previous string)

	// All payloads of gen were deleted.
	Evicted(gen string, entries int)

	// Serve answered path with the offline fallback entry.
	OfflineFallback(path string)

	// A stored entry could not be used and was treated as a miss.
	// reason ∈ {"corrupt", "foreign_generation", "value_decode"}
	CorruptEntry(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction). The asset
	// counts as failed for the install.
	ProviderSetRejected(storageKey string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) InstallFailed(string, []string) {}
func (NopHooks) InstallSuperseded(string)       {}
func (NopHooks) Activated(string, string)       {}
func (NopHooks) Evicted(string, int)            {}
func (NopHooks) OfflineFallback(string)         {}
func (NopHooks) CorruptEntry(string, string)    {}
func (NopHooks) ProviderSetRejected(string)     {}
