package dircache

import (
	"context"
	"strings"
	"time"

	"github.com/unkn0wn-root/dircache/compress"
	"github.com/unkn0wn-root/dircache/fsio"
	"github.com/unkn0wn-root/dircache/mirror"
)

// Key addresses one cache entry as ordered path segments. Each segment
// becomes one directory level under BaseDir, so keys stay browsable with
// ordinary filesystem tools. Segments are validated on every operation;
// nothing a key can contain escapes BaseDir.
type Key []string

// String renders the key in its canonical slash-joined form, as used in
// logs and hooks.
func (k Key) String() string { return strings.Join(k, "/") }

// ProduceFunc computes the value for a key that is not cached yet.
type ProduceFunc func() ([]byte, error)

// Entry is a cached value together with its manifest metadata.
type Entry struct {
	Data        []byte
	WrittenAt   time.Time
	Generations int // retained history count
}

// OpenMode controls how New treats a missing BaseDir.
type OpenMode int

const (
	// CreateIfMissing creates the base directory tree on construction.
	CreateIfMissing OpenMode = iota
	// OnlyIfExists fails construction when BaseDir is absent or not a
	// directory.
	OnlyIfExists
)

// Cache is the high-level map-like API over a browsable file tree.
// Implementations are synchronous; every operation hits the disk directly
// unless a mirror answers first.
type Cache interface {
	Enabled() bool
	Close(context.Context) error

	// Get returns the live value, or ok=false when the key is absent,
	// its bookkeeping is unreadable, or the entry is older than MaxAge.
	Get(ctx context.Context, key Key) (Entry, bool, error)

	// Insert writes value as the live value, demoting the previous one
	// into the generation history when generations are enabled.
	Insert(ctx context.Context, key Key, value []byte) error

	// Remove deletes the entry and its history. Absent keys are a no-op.
	Remove(ctx context.Context, key Key) error

	// GetOrInsertWith returns the cached entry, or runs produce exactly
	// once, inserts the result, and returns it.
	GetOrInsertWith(ctx context.Context, key Key, produce ProduceFunc) (Entry, error)

	// GetGeneration reads the nth superseded value (1 = most recent).
	GetGeneration(ctx context.Context, key Key, n int) ([]byte, bool, error)

	// Keys enumerates every key currently on disk.
	Keys(ctx context.Context) ([]Key, error)
}

// Options tune the behavior of the cache.
// Only BaseDir is required; others have sensible defaults.
type Options struct {
	// Required
	BaseDir string // root of the cache tree on disk

	OpenMode OpenMode // default CreateIfMissing

	MaxAge             time.Duration      // entry lifetime on read; 0 => never expires
	GenerationsEnabled bool               // keep superseded values; default off
	MaxGenerations     int                // history cap; 0 => 1 when enabled
	Compression        compress.Transform // applied to generations >= 1; nil => plain

	FS        fsio.FS       // nil => osfs
	Mirror    mirror.Mirror // nil => no in-memory mirror
	MirrorTTL time.Duration // 0 => MaxAge, or 10m when MaxAge is 0

	Logger   Logger // if nil, NopLogger is used
	Hooks    Hooks  // if nil, NopHooks is used
	Disabled bool   // default false (enabled)
}

// New builds a Cache rooted at opts.BaseDir.
func New(opts Options) (Cache, error) {
	return newCache(opts)
}
