// Package keypath validates and encodes caller-supplied cache keys into
// filesystem paths that are safe to join onto the cache base directory.
//
// Keys are attacker/caller controlled and become directory names, so
// validation rejects rather than sanitizes: a key that is not already a
// plain relative segment sequence never touches the disk.
package keypath

import (
	"errors"
	"path"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyKey     = errors.New("key has no segments")
	ErrEmptySegment = errors.New("empty segment")
	ErrDotSegment   = errors.New("dot segment")
	ErrParentRef    = errors.New("parent directory segment")
	ErrSeparator    = errors.New("path separator inside segment")
	ErrVolumePrefix = errors.New("volume prefix inside segment")
	ErrAbsolute     = errors.New("absolute key")
	ErrLengthDrift  = errors.New("normalized length differs from key length")
	ErrNotLocal     = errors.New("key is not a local path")
	ErrEscapesBase  = errors.New("key escapes the base directory")
)

// Encode validates key and returns its platform form, guaranteed joinable
// onto base without escaping it. Pure; performs no filesystem access.
func Encode(base string, key []string) (string, error) {
	if len(key) == 0 {
		return "", ErrEmptyKey
	}
	total := 0
	for _, seg := range key {
		switch seg {
		case "":
			return "", ErrEmptySegment
		case ".":
			return "", ErrDotSegment
		case "..":
			return "", ErrParentRef
		}
		if strings.ContainsAny(seg, "/\\") || strings.ContainsRune(seg, 0) {
			return "", ErrSeparator
		}
		// checked on every platform so keys stay portable across them
		if len(seg) >= 2 && seg[1] == ':' && isASCIILetter(seg[0]) {
			return "", ErrVolumePrefix
		}
		total += len(seg)
	}

	joined := strings.Join(key, "/")
	if path.IsAbs(joined) || filepath.IsAbs(filepath.FromSlash(joined)) {
		return "", ErrAbsolute
	}

	// Cleaning must be an identity, and the joined length must equal the
	// segment lengths plus separators. Any drift means a segment smuggled
	// path structure past the per-segment checks.
	if cleaned := path.Clean(joined); cleaned != joined || len(cleaned) != total+len(key)-1 {
		return "", ErrLengthDrift
	}

	rel := filepath.FromSlash(joined)
	if !filepath.IsLocal(rel) {
		return "", ErrNotLocal
	}

	// Defense in depth beyond the per-segment checks: the final joined path
	// must remain a descendant of base.
	back, err := filepath.Rel(base, filepath.Join(base, rel))
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", ErrEscapesBase
	}
	return rel, nil
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Segments splits an encoded relative path back into its key segments.
// Inverse of Encode for paths Encode accepted.
func Segments(rel string) []string {
	return strings.Split(filepath.ToSlash(rel), "/")
}
