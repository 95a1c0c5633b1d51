// Package osfs is the operating-system-backed fsio.FS used by default.
package osfs

import (
	"errors"
	"io/fs"
	"os"

	"github.com/unkn0wn-root/dircache/fsio"
)

type FS struct{}

var _ fsio.FS = FS{}

func New() FS { return FS{} }

func (FS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (FS) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (FS) Remove(path string) error {
	return os.Remove(path)
}

func (FS) Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err == nil {
		return nil
	}
	// Rename can fail across filesystems; fall back to copy + delete.
	data, err := os.ReadFile(oldPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(newPath, data, 0o644); err != nil {
		return err
	}
	return os.Remove(oldPath)
}

func (FS) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (FS) ReadDir(path string) ([]fsio.DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	out := make([]fsio.DirEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, fsio.DirEntry{Name: e.Name(), IsDir: e.IsDir()})
	}
	return out, nil
}

func (FS) RemoveDirIfEmpty(path string) error {
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return nil
	}
	return os.Remove(path)
}
