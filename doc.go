// Package dircache implements a disk-backed key-value cache whose entries are
// plain files in a browsable directory tree. Keys are ordered path segments;
// each key owns one directory holding the live value, an optional bounded
// history of superseded values ("generations"), and a small text manifest.
//
// Components:
//   - genstore.Store: per-key-directory bookkeeping (rotation, manifest, remove).
//   - fsio.FS: byte-level filesystem primitive (osfs by default, fakes in tests).
//   - compress.Transform: optional compression applied to retired generations.
//   - mirror.Mirror: optional in-memory read accelerator (e.g. Ristretto,
//     BigCache). The disk copy is always authoritative.
//
// Disk layout under BaseDir:
//
//	<seg>/<seg>/.../dir-cache-generation-manifest.txt
//	<seg>/<seg>/.../dir-cache-generation-0   - live value, always plain
//	<seg>/<seg>/.../dir-cache-generation-N   - Nth superseded value
//
// Typical use:
//
//	cache, _ := dircache.New(dircache.Options{BaseDir: dir})
//	_ = cache.Insert(ctx, dircache.Key{"users", "42"}, payload)
//	e, ok, _ := cache.Get(ctx, dircache.Key{"users", "42"})
package dircache
