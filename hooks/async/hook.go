// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/dircache"
//	"github.com/unkn0wn-root/dircache/hooks/async"
//	"github.com/unkn0wn-root/dircache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ExpiredEvery:   10, // sample logs: ~every 10th expiry
//	    KeyRejectEvery: 1,  // log every rejected key
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := dircache.New(dircache.Options{
//	    BaseDir: "/var/cache/app",
//	    Hooks:   hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/dircache"
)

type Hooks struct {
	inner dircache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ dircache.Hooks = (*Hooks)(nil)

func New(inner dircache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) KeyRejected(k string, err error) { h.try(func() { h.inner.KeyRejected(k, err) }) }
func (h *Hooks) MirrorSetRejected(k string)      { h.try(func() { h.inner.MirrorSetRejected(k) }) }
func (h *Hooks) ManifestCorrupt(dir string, err error) {
	h.try(func() { h.inner.ManifestCorrupt(dir, err) })
}
func (h *Hooks) EntryExpired(k string, at time.Time) {
	h.try(func() { h.inner.EntryExpired(k, at) })
}
func (h *Hooks) GenerationsPruned(k string, n int) {
	h.try(func() { h.inner.GenerationsPruned(k, n) })
}
