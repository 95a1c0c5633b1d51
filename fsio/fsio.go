// Package fsio defines the byte-storage primitive the cache performs all
// disk access through.
//
// Implementations MUST report missing files with an error satisfying
// errors.Is(err, fs.ErrNotExist): the generation store distinguishes
// "absent" from "failed" on that basis. Each call is assumed
// atomic-enough on its own; no cross-call transaction is assumed, which is
// why rotation can be left partially applied on failure.
package fsio

// DirEntry is a single name inside a directory listing.
type DirEntry struct {
	Name  string
	IsDir bool
}

// FS is a minimal synchronous filesystem surface. Calls block until the
// operation completes; there is no cancellation at this layer.
type FS interface {
	// ReadFile returns the full content of the file at path.
	ReadFile(path string) ([]byte, error)

	// WriteFile replaces the file at path with data, creating it if needed.
	WriteFile(path string, data []byte) error

	// Remove deletes the file at path.
	Remove(path string) error

	// Rename moves a file, copying and deleting when a direct rename is
	// not possible (e.g. across filesystems).
	Rename(oldPath, newPath string) error

	// MkdirAll creates the directory at path along with any missing parents.
	MkdirAll(path string) error

	// ReadDir lists the directory at path.
	ReadDir(path string) ([]DirEntry, error)

	// RemoveDirIfEmpty deletes the directory at path when it is empty.
	// A non-empty or missing directory is not an error.
	RemoveDirIfEmpty(path string) error
}
