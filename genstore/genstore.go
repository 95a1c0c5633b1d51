// Package genstore owns all filesystem interaction for a single validated
// key directory: the live value, the numbered historical generations, and
// the manifest that tracks them.
//
// Only a fixed, predictable filename set is ever written or removed:
//
//	dir-cache-generation-manifest.txt
//	dir-cache-generation-0   (live value, never compressed)
//	dir-cache-generation-N   (history; 1 = most recently superseded)
//
// Nothing else in a key directory is touched. There is no transactional
// guarantee across the steps of a rotation; an I/O failure mid-rotation
// surfaces immediately and can leave the rotation partially applied.
package genstore

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/unkn0wn-root/dircache/compress"
	"github.com/unkn0wn-root/dircache/fsio"
	"github.com/unkn0wn-root/dircache/internal/manifest"
)

// ManifestFile is the per-key metadata filename.
const ManifestFile = "dir-cache-generation-manifest.txt"

const genPrefix = "dir-cache-generation-"

// GenerationFile returns the filename of generation n. Generation 0 is the
// live value.
func GenerationFile(n int) string {
	return genPrefix + strconv.Itoa(n)
}

// StoreError is an underlying read/write/remove failure, surfaced
// immediately with no retry.
type StoreError struct {
	Op   string
	Path string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("genstore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ManifestError reports manifest contents that block an operation: a
// corrupt manifest under a write that depends on prior state, or an
// unknown encoding id on a historical read. Plain reads treat a corrupt
// manifest as absence instead.
type ManifestError struct {
	Path string
	Err  error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("genstore: manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestError) Unwrap() error { return e.Err }

// Current is the live value of a key directory together with its manifest
// metadata.
type Current struct {
	Data        []byte
	WrittenAt   time.Time
	Generations int
}

// WriteResult describes a completed write.
type WriteResult struct {
	WrittenAt   time.Time
	Generations int
	Pruned      int // generations deleted because they fell past the cap
}

// Store manages generation files through an fsio.FS. Operations are
// synchronous and hold no state between calls; the directory content is
// re-read every time.
type Store struct {
	fs        fsio.FS
	transform compress.Transform // nil or Identity => plain history
	onCorrupt func(dir string, err error)
	now       func() time.Time
}

func New(fsys fsio.FS, transform compress.Transform) *Store {
	return &Store{fs: fsys, transform: transform, now: time.Now}
}

// OnManifestCorrupt registers a callback invoked when a read path drops a
// malformed manifest and reports the entry as absent.
func (s *Store) OnManifestCorrupt(fn func(dir string, err error)) {
	s.onCorrupt = fn
}

// ReadCurrent returns the live value and manifest metadata. A missing
// entry, missing live value, or malformed manifest is reported as absent,
// not as an error.
func (s *Store) ReadCurrent(dir string) (Current, bool, error) {
	m, ok, err := s.readManifest(dir)
	if err != nil || !ok {
		return Current{}, false, err
	}
	p := filepath.Join(dir, GenerationFile(0))
	data, err := s.fs.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		// manifest without a live value; self-heals on next write
		return Current{}, false, nil
	}
	if err != nil {
		return Current{}, false, &StoreError{Op: "read", Path: p, Err: err}
	}
	return Current{Data: data, WrittenAt: m.WrittenAt, Generations: m.Generations}, true, nil
}

// ReadGeneration returns the nth historical value (1 = most recently
// superseded), decompressed per the encoding recorded in the manifest.
func (s *Store) ReadGeneration(dir string, n int) ([]byte, bool, error) {
	if n < 1 {
		return nil, false, nil
	}
	m, ok, err := s.readManifest(dir)
	if err != nil || !ok || n > m.Generations {
		return nil, false, err
	}
	p := filepath.Join(dir, GenerationFile(n))
	raw, err := s.fs.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Op: "read", Path: p, Err: err}
	}
	tr, err := compress.ByID(m.Encodings[n-1])
	if err != nil {
		return nil, false, &ManifestError{Path: filepath.Join(dir, ManifestFile), Err: err}
	}
	data, err := tr.Decode(raw)
	if err != nil {
		return nil, false, &StoreError{Op: "decode", Path: p, Err: err}
	}
	return data, true, nil
}

// Write stores value as the new live value of dir.
//
// With generations disabled, or when no live value exists yet, the value
// and a fresh manifest (count 0) are written directly; any pre-existing
// generation files are left alone. Otherwise the live value is demoted to
// generation 1 (compressed when a transform is configured), existing
// generations shift down by one, and generations past maxGenerations are
// deleted oldest-first before anything shifts, so no two files ever claim
// the same slot.
func (s *Store) Write(dir string, value []byte, generationsEnabled bool, maxGenerations int) (WriteResult, error) {
	if err := s.fs.MkdirAll(dir); err != nil {
		return WriteResult{}, &StoreError{Op: "mkdir", Path: dir, Err: err}
	}
	curPath := filepath.Join(dir, GenerationFile(0))
	manifestPath := filepath.Join(dir, ManifestFile)

	hasCurrent, err := s.hasFile(dir, GenerationFile(0))
	if err != nil {
		return WriteResult{}, err
	}

	var m manifest.Manifest
	raw, err := s.fs.ReadFile(manifestPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return WriteResult{}, &StoreError{Op: "read", Path: manifestPath, Err: err}
	default:
		parsed, perr := manifest.Parse(raw)
		if perr != nil {
			if generationsEnabled && hasCurrent {
				// rotation depends on the recorded generation state
				return WriteResult{}, &ManifestError{Path: manifestPath, Err: perr}
			}
			// fresh write below overwrites the corrupt manifest
		} else {
			m = parsed
		}
	}

	now := s.now()
	if !generationsEnabled || !hasCurrent {
		if err := s.fs.WriteFile(curPath, value); err != nil {
			return WriteResult{}, &StoreError{Op: "write", Path: curPath, Err: err}
		}
		fresh := manifest.Manifest{Generations: 0, WrittenAt: now}
		if err := s.writeManifest(manifestPath, fresh); err != nil {
			return WriteResult{}, err
		}
		return WriteResult{WrittenAt: now, Generations: 0}, nil
	}

	if maxGenerations < 1 {
		maxGenerations = 1
	}
	count := m.Generations

	// 1. delete generations that would fall past the cap, oldest first
	pruned := 0
	for i := count; i >= maxGenerations; i-- {
		if err := s.removeIfPresent(filepath.Join(dir, GenerationFile(i))); err != nil {
			return WriteResult{}, err
		}
		pruned++
	}

	// 2. shift surviving generations down, oldest remaining first
	keep := count
	if keep > maxGenerations-1 {
		keep = maxGenerations - 1
	}
	for i := keep; i >= 1; i-- {
		from := filepath.Join(dir, GenerationFile(i))
		to := filepath.Join(dir, GenerationFile(i+1))
		if err := s.fs.Rename(from, to); err != nil {
			return WriteResult{}, &StoreError{Op: "rename", Path: from, Err: err}
		}
	}

	// 3. demote the live value to generation 1, compressing as it crosses
	// the no-longer-newest boundary
	gen1 := filepath.Join(dir, GenerationFile(1))
	encID := compress.IDPlain
	if s.transform != nil && s.transform.ID() != compress.IDPlain {
		cur, err := s.fs.ReadFile(curPath)
		if err != nil {
			return WriteResult{}, &StoreError{Op: "read", Path: curPath, Err: err}
		}
		enc, err := s.transform.Encode(cur)
		if err != nil {
			return WriteResult{}, &StoreError{Op: "compress", Path: curPath, Err: err}
		}
		if err := s.fs.WriteFile(gen1, enc); err != nil {
			return WriteResult{}, &StoreError{Op: "write", Path: gen1, Err: err}
		}
		encID = s.transform.ID()
		// the old live file is overwritten by the new value below
	} else {
		if err := s.fs.Rename(curPath, gen1); err != nil {
			return WriteResult{}, &StoreError{Op: "rename", Path: curPath, Err: err}
		}
	}

	// 4. the new value becomes the live value
	if err := s.fs.WriteFile(curPath, value); err != nil {
		return WriteResult{}, &StoreError{Op: "write", Path: curPath, Err: err}
	}

	// 5. record the rotated state
	newCount := count + 1
	if newCount > maxGenerations {
		newCount = maxGenerations
	}
	encs := make([]uint8, 0, newCount)
	encs = append(encs, encID)
	encs = append(encs, m.Encodings[:keep]...)
	next := manifest.Manifest{Generations: newCount, WrittenAt: now, Encodings: encs}
	if err := s.writeManifest(manifestPath, next); err != nil {
		return WriteResult{}, err
	}
	return WriteResult{WrittenAt: now, Generations: newCount, Pruned: pruned}, nil
}

// Remove deletes the manifest and every generation file present, then the
// directory itself when nothing else remains. Foreign files are never
// touched, so a directory holding them survives. Removing an absent
// directory is a no-op.
func (s *Store) Remove(dir string) error {
	entries, err := s.fs.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &StoreError{Op: "readdir", Path: dir, Err: err}
	}
	leftover := false
	for _, e := range entries {
		if e.IsDir || !ownsFile(e.Name) {
			leftover = true
			continue
		}
		if err := s.removeIfPresent(filepath.Join(dir, e.Name)); err != nil {
			return err
		}
	}
	if leftover {
		return nil
	}
	if err := s.fs.RemoveDirIfEmpty(dir); err != nil {
		return &StoreError{Op: "rmdir", Path: dir, Err: err}
	}
	return nil
}

// ownsFile reports whether name belongs to the fixed filename set this
// store writes: the manifest and strictly-numbered generation files.
func ownsFile(name string) bool {
	if name == ManifestFile {
		return true
	}
	rest, ok := strings.CutPrefix(name, genPrefix)
	if !ok || rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Store) readManifest(dir string) (manifest.Manifest, bool, error) {
	p := filepath.Join(dir, ManifestFile)
	raw, err := s.fs.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return manifest.Manifest{}, false, nil
	}
	if err != nil {
		return manifest.Manifest{}, false, &StoreError{Op: "read", Path: p, Err: err}
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		// absent, not fatal: the next insert regenerates the manifest
		if s.onCorrupt != nil {
			s.onCorrupt(dir, err)
		}
		return manifest.Manifest{}, false, nil
	}
	return m, true, nil
}

func (s *Store) writeManifest(path string, m manifest.Manifest) error {
	if err := s.fs.WriteFile(path, m.Serialize()); err != nil {
		return &StoreError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func (s *Store) hasFile(dir, name string) (bool, error) {
	entries, err := s.fs.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, &StoreError{Op: "readdir", Path: dir, Err: err}
	}
	for _, e := range entries {
		if !e.IsDir && e.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) removeIfPresent(path string) error {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StoreError{Op: "remove", Path: path, Err: err}
	}
	return nil
}
