package dircache

import (
	"context"

	c "github.com/unkn0wn-root/dircache/codec"
)

// Typed wraps a Cache with a Codec so callers work with V instead of raw
// bytes. The disk entry stays the source of truth: a decode failure is
// surfaced as an error and never deletes the entry.
type Typed[V any] struct {
	cache Cache
	codec c.Codec[V]
}

func NewTyped[V any](cache Cache, codec c.Codec[V]) Typed[V] {
	return Typed[V]{cache: cache, codec: codec}
}

func (t Typed[V]) Get(ctx context.Context, key Key) (V, bool, error) {
	var zero V
	e, ok, err := t.cache.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := t.codec.Decode(e.Data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (t Typed[V]) Insert(ctx context.Context, key Key, value V) error {
	b, err := t.codec.Encode(value)
	if err != nil {
		return err
	}
	return t.cache.Insert(ctx, key, b)
}

func (t Typed[V]) Remove(ctx context.Context, key Key) error {
	return t.cache.Remove(ctx, key)
}

func (t Typed[V]) GetOrInsertWith(ctx context.Context, key Key, produce func() (V, error)) (V, error) {
	var zero V
	e, err := t.cache.GetOrInsertWith(ctx, key, func() ([]byte, error) {
		v, err := produce()
		if err != nil {
			return nil, err
		}
		return t.codec.Encode(v)
	})
	if err != nil {
		return zero, err
	}
	return t.codec.Decode(e.Data)
}
