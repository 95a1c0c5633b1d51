// Package mirror defines the optional in-memory read layer kept in front
// of the on-disk store.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no prepended or
// appended metadata, no re-encoding, no mutation). The mirror holds the framed
// entry bytes as written to disk, so any mutation surfaces as frame corruption
// on the next read.
//
// A mirror is purely an accelerator. Missing or rejected writes are never an
// error for the cache; the disk copy stays authoritative.
package mirror

import (
	"context"
	"time"
)

// Mirror is a minimal byte store with TTLs.
// Must be safe for concurrent use and must be byte-for-byte transparent:
// Get must return exactly the []byte previously passed to Set for the same
// key. Implementations must not prepend/append metadata, transcode, or
// otherwise mutate values.
type Mirror interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an internal error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
