package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Pair is one (path, revision) member of a generation.
type Pair struct {
	Path     string
	Revision string
}

// GenerationID returns a deterministic id over the set of pairs, independent of
// input order: "g" + first 16 hex chars of sha256 over the sorted pairs.
func GenerationID(pairs []Pair) string {
	s := make([]Pair, len(pairs))
	copy(s, pairs)
	sort.Slice(s, func(i, j int) bool {
		if s[i].Path != s[j].Path {
			return s[i].Path < s[j].Path
		}
		return s[i].Revision < s[j].Revision
	})

	h := sha256.New()
	for _, p := range s {
		h.Write([]byte(p.Path))
		h.Write([]byte{0})
		h.Write([]byte(p.Revision))
		h.Write([]byte{'\n'})
	}
	return "g" + hex.EncodeToString(h.Sum(nil))[:16]
}

// AssetKey isolates an asset by namespace and generation.
func AssetKey(ns, gen, path string) string {
	return "asset:" + ns + ":" + gen + ":" + path
}
