package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf encodes a message type with deterministic field and map ordering,
// so equal messages encode to equal bytes.
type Protobuf[T proto.Message] struct {
	fresh func() T
}

// NewProtobuf takes a constructor for the empty message Decode fills,
// e.g. func() *structpb.Struct { return &structpb.Struct{} }.
func NewProtobuf[T proto.Message](fresh func() T) Protobuf[T] {
	return Protobuf[T]{fresh: fresh}
}

func (p Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (p Protobuf[T]) Decode(b []byte) (T, error) {
	var zero T
	if p.fresh == nil {
		return zero, fmt.Errorf("protobuf codec: no message constructor")
	}
	m := p.fresh()
	if err := proto.Unmarshal(b, m); err != nil {
		return zero, fmt.Errorf("protobuf codec: %w", err)
	}
	return m, nil
}
