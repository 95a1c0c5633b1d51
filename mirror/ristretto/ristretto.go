// Package ristretto mirrors disk entries in a dgraph-io/ristretto cache.
// Cost-based admission means hot keys survive pressure while cold entries
// are rejected; a rejected Set is reported as ok=false, never an error.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

type Mirror struct {
	c *rc.Cache
}

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
	// Cost in Ristretto is provided by the caller (the cache passes the
	// framed entry size per Set).
}

func New(cfg Config) (*Mirror, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Mirror{c: c}, nil
}

func (m *Mirror) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	if b == nil {
		// self-heal: drop unexpected entry shape
		m.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

func (m *Mirror) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	return m.c.SetWithTTL(key, value, cost, ttl), nil
}

func (m *Mirror) Del(_ context.Context, key string) error {
	m.c.Del(key)
	return nil
}

func (m *Mirror) Close(_ context.Context) error {
	m.c.Wait()
	m.c.Close()
	return nil
}

// Metrics exposes ristretto's counters for applications that want them
// (not part of mirror.Mirror).
func (m *Mirror) Metrics() *rc.Metrics { return m.c.Metrics }
