// Package wire frames cache entries for the in-memory mirror so a mirror
// hit carries the metadata needed for read-time policy without touching
// disk. Framing is strict: decoders reject trailing bytes.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("dircache: corrupt mirrored entry")
	magic4     = [...]byte{'D', 'I', 'R', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | writtenAt unix-nanos (i64 be) | generations (u32 be) | vlen(u32 be) | payload(vlen)
func EncodeEntry(writtenAtNanos int64, generations int, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 8 + 4 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte

	binary.BigEndian.PutUint64(u8[:], uint64(writtenAtNanos))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(generations))
	buf.Write(u4[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeEntry(b []byte) (writtenAtNanos int64, generations int, payload []byte, err error) {
	const hdr = 4 + 1 + 8 + 4 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return 0, 0, nil, ErrCorrupt
	}

	off := 5

	writtenAtNanos = int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	generations = int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict framing, no trailing bytes
		return 0, 0, nil, ErrCorrupt
	}

	return writtenAtNanos, generations, b[off : off+vlen], nil
}
