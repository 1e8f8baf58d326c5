package precache

import (
	"context"
	"sort"
	"strings"

	c "github.com/unkn0wn-root/precache/codec"
	"github.com/unkn0wn-root/precache/internal/util"
)

// ManifestEntry declares one asset that must be available offline.
// URL is the logical path and the unique key within a manifest.
type ManifestEntry struct {
	URL      string `json:"url" cbor:"url" msgpack:"url" mapstructure:"url"`
	Revision string `json:"revision" cbor:"revision" msgpack:"revision" mapstructure:"revision"`
}

// Manifest is a validated, normalized list of entries in declared order.
type Manifest []ManifestEntry

// NewManifest normalizes URLs and validates entries. Relative paths are rooted
// ("index.html" -> "/index.html"); absolute http(s) URLs are kept verbatim.
func NewManifest(entries []ManifestEntry) (Manifest, error) {
	out := make(Manifest, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		u := normalizeURL(e.URL)
		rev := strings.TrimSpace(e.Revision)
		if u == "" {
			return nil, &ManifestError{Reason: "empty url"}
		}
		if rev == "" {
			return nil, &ManifestError{URL: u, Reason: "empty revision"}
		}
		if _, dup := seen[u]; dup {
			return nil, &ManifestError{URL: u, Reason: "duplicate url"}
		}
		seen[u] = struct{}{}
		out = append(out, ManifestEntry{URL: u, Revision: rev})
	}
	return out, nil
}

func normalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "/") {
		return u
	}
	return "/" + strings.TrimPrefix(u, "./")
}

// ID returns the generation id of m. Order of entries does not matter.
func (m Manifest) ID() string {
	pairs := make([]util.Pair, len(m))
	for i, e := range m {
		pairs[i] = util.Pair{Path: e.URL, Revision: e.Revision}
	}
	return util.GenerationID(pairs)
}

// GenerationID is shorthand for m.ID().
func GenerationID(m Manifest) string { return m.ID() }

// Sorted returns a copy ordered by URL.
func (m Manifest) Sorted() Manifest {
	s := make(Manifest, len(m))
	copy(s, m)
	sort.Slice(s, func(i, j int) bool { return s[i].URL < s[j].URL })
	return s
}

// ManifestDiff splits two manifests by (url, revision). A url whose revision
// changed appears in ToAdd with the new revision and in ToRemove with the old.
// All slices are sorted by URL.
type ManifestDiff struct {
	ToAdd     []ManifestEntry
	ToRemove  []ManifestEntry
	Unchanged []ManifestEntry
}

// Empty reports whether the manifests describe the same set.
func (d ManifestDiff) Empty() bool { return len(d.ToAdd) == 0 && len(d.ToRemove) == 0 }

// Diff compares old and next. Either may be nil. A duplicate url in either
// side fails with *ManifestError.
func Diff(old, next Manifest) (ManifestDiff, error) {
	oldIdx, err := index(old)
	if err != nil {
		return ManifestDiff{}, err
	}
	nextIdx, err := index(next)
	if err != nil {
		return ManifestDiff{}, err
	}

	var d ManifestDiff
	for _, e := range next.Sorted() {
		if rev, ok := oldIdx[e.URL]; ok && rev == e.Revision {
			d.Unchanged = append(d.Unchanged, e)
		} else {
			d.ToAdd = append(d.ToAdd, e)
		}
	}
	for _, e := range old.Sorted() {
		if rev, ok := nextIdx[e.URL]; !ok || rev != e.Revision {
			d.ToRemove = append(d.ToRemove, e)
		}
	}
	return d, nil
}

func index(m Manifest) (map[string]string, error) {
	idx := make(map[string]string, len(m))
	for _, e := range m {
		if _, dup := idx[e.URL]; dup {
			return nil, &ManifestError{URL: e.URL, Reason: "duplicate url"}
		}
		idx[e.URL] = e.Revision
	}
	return idx, nil
}

// ManifestSource supplies raw manifest entries, typically static
// configuration loaded at process start.
type ManifestSource interface {
	Load(ctx context.Context) ([]ManifestEntry, error)
}

// StaticManifest is an in-memory ManifestSource.
type StaticManifest []ManifestEntry

func (s StaticManifest) Load(context.Context) ([]ManifestEntry, error) {
	out := make([]ManifestEntry, len(s))
	copy(out, s)
	return out, nil
}

// CodecManifest decodes a serialized list of {url, revision} objects, e.g. a
// JSON file emitted by a build step.
type CodecManifest struct {
	Data  []byte
	Codec c.Codec[[]ManifestEntry]
}

func (s CodecManifest) Load(context.Context) ([]ManifestEntry, error) {
	codec := s.Codec
	if codec == nil {
		codec = c.JSON[[]ManifestEntry]{}
	}
	return codec.Decode(s.Data)
}

// ManifestStore loads and validates manifests from a source.
type ManifestStore struct {
	src ManifestSource
}

func NewManifestStore(src ManifestSource) *ManifestStore {
	return &ManifestStore{src: src}
}

// Load returns the validated manifest. Identical source data yields an
// identical manifest.
func (s *ManifestStore) Load(ctx context.Context) (Manifest, error) {
	if s == nil || s.src == nil {
		return nil, &ManifestError{Reason: "no manifest source configured"}
	}
	entries, err := s.src.Load(ctx)
	if err != nil {
		return nil, &ManifestError{Reason: "load failed", Err: err}
	}
	return NewManifest(entries)
}

// Diff compares two manifests; see the package-level Diff.
func (s *ManifestStore) Diff(old, next Manifest) (ManifestDiff, error) { return Diff(old, next) }
