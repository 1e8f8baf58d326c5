package precache

import (
	"context"
	"os"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"

	c "github.com/unkn0wn-root/precache/codec"
)

// FileManifest reads a manifest file emitted by a build step. The file is
// read on every Load, so Reload picks up a rewritten manifest.
type FileManifest struct {
	Path  string
	Codec c.Codec[[]ManifestEntry] // JSON when nil
}

func (s FileManifest) Load(ctx context.Context) ([]ManifestEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	return CodecManifest{Data: data, Codec: s.Codec}.Load(ctx)
}

var protoStruct = c.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })

// ProtoManifest encodes a manifest as a google.protobuf.Struct mapping each
// URL to its revision string. Decoded entries are ordered by URL.
type ProtoManifest struct{}

var _ c.Codec[[]ManifestEntry] = ProtoManifest{}

func (ProtoManifest) Encode(entries []ManifestEntry) ([]byte, error) {
	fields := make(map[string]*structpb.Value, len(entries))
	for _, e := range entries {
		if _, dup := fields[e.URL]; dup {
			return nil, &ManifestError{URL: e.URL, Reason: "duplicate url"}
		}
		fields[e.URL] = structpb.NewStringValue(e.Revision)
	}
	return protoStruct.Encode(&structpb.Struct{Fields: fields})
}

func (ProtoManifest) Decode(b []byte) ([]ManifestEntry, error) {
	s, err := protoStruct.Decode(b)
	if err != nil {
		return nil, err
	}
	out := make([]ManifestEntry, 0, len(s.GetFields()))
	for url, v := range s.GetFields() {
		rev, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, &ManifestError{URL: url, Reason: "revision must be a string"}
		}
		out = append(out, ManifestEntry{URL: url, Revision: rev.StringValue})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}
