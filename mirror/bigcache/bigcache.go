// Package bigcache mirrors disk entries in an allegro/bigcache instance.
// BigCache evicts by a global LifeWindow rather than per-entry TTLs, which
// is a fine fit for a mirror: the disk copy stays authoritative and a
// stale miss just falls through to the file read.
package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"
)

type Mirror struct {
	c *bc.BigCache
}

type Config struct {
	LifeWindow         time.Duration
	CleanWindow        time.Duration
	MaxEntriesInWindow int
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(cfg Config) (*Mirror, error) {
	conf := bc.DefaultConfig(cfg.LifeWindow)
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Mirror{c: c}, nil
}

func (m *Mirror) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := m.c.Get(key)
	if err == bc.ErrEntryNotFound {
		return nil, false, nil
	}
	return b, err == nil, err
}

func (m *Mirror) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	// BigCache does not support per-entry TTL; uses global LifeWindow.
	return true, m.c.Set(key, value)
}

func (m *Mirror) Del(_ context.Context, key string) error {
	return m.c.Delete(key)
}

func (m *Mirror) Close(_ context.Context) error {
	return m.c.Close()
}
