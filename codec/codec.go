// Package codec provides value (de)serializers for the typed cache
// wrapper. A codec only shapes the payload bytes; the on-disk layout and
// manifest bookkeeping are unaffected by the codec in use.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
