package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindAsset byte = 1
)

var (
	ErrCorrupt = errors.New("precache: corrupt entry")
	ErrTooLong = errors.New("precache: frame field too long")
	magic4     = [...]byte{'P', 'R', 'C', 'H'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Asset is the decoded form of a stored precache entry.
type Asset struct {
	Generation string
	Revision   string
	Payload    []byte
}

// EncodeAsset frames one cached asset:
//
//	magic(4) | ver(1) | kind(1=asset) | genLen(u16 be) | gen | revLen(u16 be) | rev | vlen(u32 be) | payload(vlen)
func EncodeAsset(gen, revision string, payload []byte) ([]byte, error) {
	if len(gen) == 0 || len(gen) > 0xFFFF || len(revision) > 0xFFFF {
		return nil, ErrTooLong
	}
	if uint64(len(payload)) > 0xFFFFFFFF {
		return nil, ErrTooLong
	}

	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 2 + len(gen) + 2 + len(revision) + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindAsset)

	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint16(u2[:], uint16(len(gen)))
	buf.Write(u2[:])
	buf.WriteString(gen)

	binary.BigEndian.PutUint16(u2[:], uint16(len(revision)))
	buf.Write(u2[:])
	buf.WriteString(revision)

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])
	buf.Write(payload)

	return buf.Bytes(), nil
}

// DecodeAsset parses a frame produced by EncodeAsset. The returned payload
// aliases b. Trailing bytes are rejected.
func DecodeAsset(b []byte) (Asset, error) {
	const hdr = 4 + 1 + 1
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindAsset {
		return Asset{}, ErrCorrupt
	}
	off := hdr

	gen, off, ok := readString(b, off)
	if !ok || gen == "" {
		return Asset{}, ErrCorrupt
	}
	rev, off, ok := readString(b, off)
	if !ok {
		return Asset{}, ErrCorrupt
	}

	// vlen
	if off+4 > len(b) {
		return Asset{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // exact length; no trailing junk
		return Asset{}, ErrCorrupt
	}

	return Asset{Generation: gen, Revision: rev, Payload: b[off : off+vlen]}, nil
}

func readString(b []byte, off int) (string, int, bool) {
	if off+2 > len(b) {
		return "", off, false
	}
	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	if n > len(b)-off {
		return "", off, false
	}
	return string(b[off : off+n]), off + n, true
}
