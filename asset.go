package precache

import "context"

// Asset is one cached response payload.
type Asset struct {
	Body        []byte `json:"body" cbor:"body" msgpack:"body"`
	ContentType string `json:"content_type,omitempty" cbor:"content_type,omitempty" msgpack:"content_type,omitempty"`
}

// Source retrieves the underlying resource for a logical path during install.
// Implementations must honor ctx cancellation; superseded installs cancel it.
type Source interface {
	Retrieve(ctx context.Context, path string) (Asset, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, path string) (Asset, error)

func (f SourceFunc) Retrieve(ctx context.Context, path string) (Asset, error) { return f(ctx, path) }
