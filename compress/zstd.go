package compress

import "github.com/klauspost/compress/zstd"

// Zstd compresses generations with zstandard. Construct with NewZstd; the
// zero value is not ready to use.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

var _ Transform = (*Zstd)(nil)

func NewZstd() (*Zstd, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

// MustZstd is like NewZstd but panics on error. Handy for package-level
// variables in tests and examples.
func MustZstd() *Zstd {
	z, err := NewZstd()
	if err != nil {
		panic(err)
	}
	return z
}

func (z *Zstd) ID() uint8 { return IDZstd }

func (z *Zstd) Encode(b []byte) ([]byte, error) {
	return z.enc.EncodeAll(b, nil), nil
}

func (z *Zstd) Decode(b []byte) ([]byte, error) {
	return z.dec.DecodeAll(b, nil)
}
