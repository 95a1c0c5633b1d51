// Package compress provides the pluggable transform applied to historical
// generations as they are rotated out of the live slot. The live value
// (generation 0) is never compressed; a transform only ever sees data
// crossing the no-longer-newest boundary.
//
// Each transform has a stable one-byte id recorded in the manifest next to
// the generation it was applied to, so historical data stays readable even
// after the cache is reconfigured with a different transform.
package compress

import "fmt"

// Encoding ids persisted in manifests. Never renumber.
const (
	IDPlain uint8 = 0
	IDLZ4   uint8 = 1
	IDZstd  uint8 = 2
	IDGzip  uint8 = 3
)

// Transform encodes generation data at rotation time and decodes it on
// historical reads.
type Transform interface {
	// ID is the encoding id recorded in the manifest.
	ID() uint8
	Encode([]byte) ([]byte, error)
	Decode([]byte) ([]byte, error)
}

// Identity stores generations as-is.
type Identity struct{}

func (Identity) ID() uint8 { return IDPlain }

func (Identity) Encode(b []byte) ([]byte, error) { return b, nil }
func (Identity) Decode(b []byte) ([]byte, error) { return b, nil }

// ByID resolves the transform for a manifest-recorded encoding id.
func ByID(id uint8) (Transform, error) {
	switch id {
	case IDPlain:
		return Identity{}, nil
	case IDLZ4:
		return LZ4{}, nil
	case IDZstd:
		return NewZstd()
	case IDGzip:
		return Gzip{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown encoding id %d", id)
	}
}
