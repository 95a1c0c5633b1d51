package dircache

import "time"

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// A key failed path-safety validation and the operation was refused.
	KeyRejected(key string, err error)

	// A malformed manifest was dropped on a read path and the entry was
	// reported absent. dir is the key directory on disk.
	ManifestCorrupt(dir string, err error)

	// An entry older than MaxAge was skipped on read. The files stay on disk.
	EntryExpired(key string, writtenAt time.Time)

	// Rotation deleted generations that fell past MaxGenerations.
	GenerationsPruned(key string, pruned int)

	// Mirror returned ok=false on Set (backpressure/eviction).
	MirrorSetRejected(key string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) KeyRejected(string, error)      {}
func (NopHooks) ManifestCorrupt(string, error)  {}
func (NopHooks) EntryExpired(string, time.Time) {}
func (NopHooks) GenerationsPruned(string, int)  {}
func (NopHooks) MirrorSetRejected(string)       {}
