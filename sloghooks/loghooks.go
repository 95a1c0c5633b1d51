package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/dircache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ExpiredEvery   uint64
	KeyRejectEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	expiredCtr   atomic.Uint64
	keyRejectCtr atomic.Uint64
}

var _ dircache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) KeyRejected(key string, err error) {
	if h.l == nil || !sample(h.opts.KeyRejectEvery, &h.keyRejectCtr) {
		return
	}
	h.l.Warn("dircache.key_rejected",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) ManifestCorrupt(dir string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("dircache.manifest_corrupt",
		"dir", h.redact(dir),
		"err", err)
}

func (h *Hooks) EntryExpired(key string, writtenAt time.Time) {
	if h.l == nil || !sample(h.opts.ExpiredEvery, &h.expiredCtr) {
		return
	}
	h.l.Debug("dircache.entry_expired",
		"key", h.redact(key),
		"written_at", writtenAt)
}

func (h *Hooks) GenerationsPruned(key string, pruned int) {
	if h.l == nil {
		return
	}
	h.l.Debug("dircache.generations_pruned",
		"key", h.redact(key),
		"pruned", pruned)
}

func (h *Hooks) MirrorSetRejected(key string) {
	if h.l == nil {
		return
	}
	h.l.Warn("dircache.mirror_set_rejected",
		"key", h.redact(key))
}
