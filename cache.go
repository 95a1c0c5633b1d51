package dircache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/unkn0wn-root/dircache/fsio"
	"github.com/unkn0wn-root/dircache/fsio/osfs"
	"github.com/unkn0wn-root/dircache/genstore"
	"github.com/unkn0wn-root/dircache/internal/keypath"
	"github.com/unkn0wn-root/dircache/internal/wire"
	"github.com/unkn0wn-root/dircache/mirror"
)

const defaultMirrorTTL = 10 * time.Minute

type cache struct {
	base      string
	fsys      fsio.FS
	store     *genstore.Store
	mir       mirror.Mirror
	mirrorTTL time.Duration

	maxAge      time.Duration
	gensEnabled bool
	maxGens     int

	log     Logger
	hooks   Hooks
	enabled bool

	now func() time.Time
}

func newCache(opts Options) (*cache, error) {
	if opts.BaseDir == "" {
		return nil, fmt.Errorf("dircache: base dir is required")
	}

	c := &cache{
		base:        opts.BaseDir,
		mir:         opts.Mirror,
		maxAge:      opts.MaxAge,
		gensEnabled: opts.GenerationsEnabled,
		enabled:     !opts.Disabled,
		now:         time.Now,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.fsys = opts.FS
	if c.fsys == nil {
		c.fsys = osfs.New()
	}
	c.maxGens = opts.MaxGenerations
	if c.gensEnabled && c.maxGens < 1 {
		c.maxGens = 1
	}
	c.mirrorTTL = opts.MirrorTTL
	if c.mirrorTTL == 0 {
		c.mirrorTTL = coalesce[time.Duration](c.maxAge, defaultMirrorTTL)
	}

	c.store = genstore.New(c.fsys, opts.Compression)
	c.store.OnManifestCorrupt(func(dir string, err error) {
		c.log.Warn("dropped malformed manifest", Fields{"dir": dir, "err": err})
		c.hooks.ManifestCorrupt(dir, err)
	})

	if c.enabled {
		switch opts.OpenMode {
		case OnlyIfExists:
			if _, err := c.fsys.ReadDir(c.base); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("dircache: base dir %q does not exist", c.base)
				}
				return nil, fmt.Errorf("dircache: open base dir %q: %w", c.base, err)
			}
		default:
			if err := c.fsys.MkdirAll(c.base); err != nil {
				return nil, fmt.Errorf("dircache: create base dir %q: %w", c.base, err)
			}
		}
	}

	return c, nil
}

func (c *cache) Enabled() bool { return c.enabled }

func (c *cache) Close(ctx context.Context) error {
	if c.mir != nil {
		return c.mir.Close(ctx)
	}
	return nil
}

func (c *cache) Get(ctx context.Context, key Key) (Entry, bool, error) {
	if !c.enabled {
		return Entry{}, false, nil
	}
	rel, err := c.encode(key)
	if err != nil {
		return Entry{}, false, err
	}

	if e, ok := c.mirrorGet(ctx, rel); ok {
		return e, true, nil
	}

	cur, ok, err := c.store.ReadCurrent(filepath.Join(c.base, rel))
	if err != nil || !ok {
		return Entry{}, false, err
	}
	if c.expired(cur.WrittenAt) {
		// the files stay on disk; only reads are refused
		c.hooks.EntryExpired(key.String(), cur.WrittenAt)
		return Entry{}, false, nil
	}
	c.mirrorSet(ctx, rel, cur.WrittenAt, cur.Generations, cur.Data)
	return Entry{Data: cur.Data, WrittenAt: cur.WrittenAt, Generations: cur.Generations}, true, nil
}

func (c *cache) Insert(ctx context.Context, key Key, value []byte) error {
	if !c.enabled {
		return nil
	}
	rel, err := c.encode(key)
	if err != nil {
		return err
	}
	_, err = c.write(ctx, key, rel, value)
	return err
}

func (c *cache) Remove(ctx context.Context, key Key) error {
	if !c.enabled {
		return nil
	}
	rel, err := c.encode(key)
	if err != nil {
		return err
	}
	if c.mir != nil {
		_ = c.mir.Del(ctx, rel)
	}
	return c.store.Remove(filepath.Join(c.base, rel))
}

func (c *cache) GetOrInsertWith(ctx context.Context, key Key, produce ProduceFunc) (Entry, error) {
	if !c.enabled {
		// pass-through: the caller still gets a value, nothing is stored
		data, err := produce()
		if err != nil {
			return Entry{}, &ProducerError{Err: err}
		}
		return Entry{Data: data, WrittenAt: c.now()}, nil
	}

	if e, ok, err := c.Get(ctx, key); err != nil || ok {
		return e, err
	}

	rel, err := c.encode(key)
	if err != nil {
		return Entry{}, err
	}
	data, err := produce()
	if err != nil {
		return Entry{}, &ProducerError{Err: err}
	}
	res, err := c.write(ctx, key, rel, data)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Data: data, WrittenAt: res.WrittenAt, Generations: res.Generations}, nil
}

func (c *cache) GetGeneration(ctx context.Context, key Key, n int) ([]byte, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}
	rel, err := c.encode(key)
	if err != nil {
		return nil, false, err
	}
	return c.store.ReadGeneration(filepath.Join(c.base, rel), n)
}

// Keys walks the base directory and decodes the key of every directory
// holding a manifest. Order follows the directory walk (lexical with the
// OS filesystem).
func (c *cache) Keys(ctx context.Context) ([]Key, error) {
	if !c.enabled {
		return nil, nil
	}
	var keys []Key
	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := c.fsys.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("dircache: list %q: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir {
				sub := rel
				if sub == "" {
					sub = e.Name
				} else {
					sub = rel + "/" + e.Name
				}
				if err := walk(filepath.Join(dir, e.Name), sub); err != nil {
					return err
				}
				continue
			}
			if e.Name == genstore.ManifestFile && rel != "" {
				keys = append(keys, Key(keypath.Segments(rel)))
			}
		}
		return nil
	}
	if err := walk(c.base, ""); err != nil {
		return nil, err
	}
	return keys, nil
}

// write runs the rotation and seeds the mirror. rel must come from encode.
func (c *cache) write(ctx context.Context, key Key, rel string, value []byte) (genstore.WriteResult, error) {
	res, err := c.store.Write(filepath.Join(c.base, rel), value, c.gensEnabled, c.maxGens)
	if err != nil {
		return genstore.WriteResult{}, err
	}
	if res.Pruned > 0 {
		c.hooks.GenerationsPruned(key.String(), res.Pruned)
	}
	c.log.Debug("inserted entry", Fields{"key": key.String(), "generations": res.Generations})
	c.mirrorSet(ctx, rel, res.WrittenAt, res.Generations, value)
	return res, nil
}

func (c *cache) encode(key Key) (string, error) {
	rel, err := keypath.Encode(c.base, key)
	if err != nil {
		c.hooks.KeyRejected(key.String(), err)
		return "", &KeyError{Key: key.String(), Err: err}
	}
	return rel, nil
}

func (c *cache) expired(writtenAt time.Time) bool {
	return c.maxAge > 0 && c.now().Sub(writtenAt) > c.maxAge
}

// mirrorGet serves a read from the mirror when the framed entry is intact
// and fresh. Corrupt or expired frames are dropped from the mirror only;
// the caller falls through to the disk read.
func (c *cache) mirrorGet(ctx context.Context, rel string) (Entry, bool) {
	if c.mir == nil {
		return Entry{}, false
	}
	raw, ok, err := c.mir.Get(ctx, rel)
	if err != nil || !ok {
		return Entry{}, false
	}
	nanos, gens, payload, err := wire.DecodeEntry(raw)
	if err != nil {
		_ = c.mir.Del(ctx, rel) // self-heal corrupt frame
		return Entry{}, false
	}
	writtenAt := time.Unix(0, nanos)
	if c.expired(writtenAt) {
		_ = c.mir.Del(ctx, rel)
		return Entry{}, false
	}
	return Entry{Data: payload, WrittenAt: writtenAt, Generations: gens}, true
}

func (c *cache) mirrorSet(ctx context.Context, rel string, writtenAt time.Time, generations int, data []byte) {
	if c.mir == nil {
		return
	}
	frame := wire.EncodeEntry(writtenAt.UnixNano(), generations, data)
	ok, err := c.mir.Set(ctx, rel, frame, int64(len(frame)), c.mirrorTTL)
	if err != nil {
		c.log.Warn("mirror set failed", Fields{"key": rel, "err": err})
		return
	}
	if !ok {
		c.hooks.MirrorSetRejected(rel)
	}
}
