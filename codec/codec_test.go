package codec

import (
	"bytes"
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

type entry struct {
	URL      string `json:"url" cbor:"url" msgpack:"url"`
	Revision string `json:"revision" cbor:"revision" msgpack:"revision"`
}

func TestCodecsRoundTripManifest(t *testing.T) {
	in := []entry{{URL: "/", Revision: "1"}, {URL: "/pwa", Revision: "2"}}
	codecs := map[string]Codec[[]entry]{
		"json":    JSON[[]entry]{},
		"msgpack": Msgpack[[]entry]{},
		"cbor":    MustCBOR[[]entry](true),
	}
	for name, c := range codecs {
		b, err := c.Encode(in)
		if err != nil {
			t.Fatalf("%s encode: %v", name, err)
		}
		out, err := c.Decode(b)
		if err != nil {
			t.Fatalf("%s decode: %v", name, err)
		}
		if len(out) != 2 || out[0] != in[0] || out[1] != in[1] {
			t.Fatalf("%s mismatch: %+v", name, out)
		}
	}
}

func TestCBORDeterministicIsStable(t *testing.T) {
	c := MustCBOR[map[string]string](true)
	m := map[string]string{"b": "2", "a": "1", "c": "3"}
	first, err := c.Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := c.Encode(m)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding changed between calls")
		}
	}
}

func TestLimitRejectsOversized(t *testing.T) {
	c := Limit[string]{Inner: JSON[string]{}, Max: 8}
	if _, err := c.Encode(strings.Repeat("x", 32)); err == nil {
		t.Fatalf("expected encode error for oversized value")
	}
	if _, err := c.Decode([]byte(`"` + strings.Repeat("x", 32) + `"`)); err == nil {
		t.Fatalf("expected decode error for oversized payload")
	}
	b, err := c.Encode("ok")
	if err != nil {
		t.Fatalf("encode small: %v", err)
	}
	if v, err := c.Decode(b); err != nil || v != "ok" {
		t.Fatalf("decode small: v=%q err=%v", v, err)
	}
}

func TestProtobufBytesValue(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.BytesValue { return &wrapperspb.BytesValue{} })
	b, err := c.Encode(wrapperspb.Bytes([]byte("<html>")))
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(v.GetValue()) != "<html>" {
		t.Fatalf("got %q", v.GetValue())
	}
}

func TestProtobufDecodeErrors(t *testing.T) {
	var zero Protobuf[*wrapperspb.BytesValue]
	if _, err := zero.Decode(nil); err == nil {
		t.Fatalf("codec without constructor must fail")
	}
	c := NewProtobuf(func() *wrapperspb.BytesValue { return &wrapperspb.BytesValue{} })
	if _, err := c.Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatalf("garbage input must fail")
	}
}

func TestBytesIdentity(t *testing.T) {
	in := []byte{1, 2, 3}
	b, _ := Bytes{}.Encode(in)
	out, _ := Bytes{}.Decode(b)
	if !bytes.Equal(in, out) {
		t.Fatalf("identity codec changed bytes")
	}
}
