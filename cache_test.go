package dircache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/dircache/compress"
	"github.com/unkn0wn-root/dircache/genstore"
)

func newTestCache(t *testing.T, opts Options) (*cache, string) {
	t.Helper()
	if opts.BaseDir == "" {
		opts.BaseDir = t.TempDir()
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c.(*cache), opts.BaseDir
}

func TestInsertGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, base := newTestCache(t, Options{})
	key := Key{"users", "42"}

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}

	if err := c.Insert(ctx, key, []byte("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	e, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(e.Data, []byte("v1")) || e.Generations != 0 {
		t.Fatalf("unexpected entry %+v", e)
	}

	// browsable: the value sits at a predictable path
	raw, err := os.ReadFile(filepath.Join(base, "users", "42", genstore.GenerationFile(0)))
	if err != nil || !bytes.Equal(raw, []byte("v1")) {
		t.Fatalf("on-disk value: %q err=%v", raw, err)
	}
	if _, err := os.Stat(filepath.Join(base, "users", "42", genstore.ManifestFile)); err != nil {
		t.Fatalf("manifest missing: %v", err)
	}
}

func TestGenerationRotationScenario(t *testing.T) {
	ctx := context.Background()
	c, base := newTestCache(t, Options{GenerationsEnabled: true, MaxGenerations: 1})
	key := Key{"users", "42"}

	for _, v := range []string{"v1", "v2", "v3"} {
		if err := c.Insert(ctx, key, []byte(v)); err != nil {
			t.Fatalf("Insert %s: %v", v, err)
		}
	}

	e, ok, err := c.Get(ctx, key)
	if err != nil || !ok || !bytes.Equal(e.Data, []byte("v3")) {
		t.Fatalf("live value: %+v ok=%v err=%v", e, ok, err)
	}
	if e.Generations != 1 {
		t.Fatalf("generations = %d, want 1", e.Generations)
	}

	// the single retained generation holds the previously superseded value
	g1, ok, err := c.GetGeneration(ctx, key, 1)
	if err != nil || !ok || !bytes.Equal(g1, []byte("v2")) {
		t.Fatalf("generation 1: %q ok=%v err=%v", g1, ok, err)
	}
	// v1 was pruned entirely
	if _, err := os.Stat(filepath.Join(base, "users", "42", genstore.GenerationFile(2))); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("generation 2 should not exist: %v", err)
	}
}

func TestGetGenerationDecompresses(t *testing.T) {
	ctx := context.Background()
	c, base := newTestCache(t, Options{
		GenerationsEnabled: true,
		MaxGenerations:     2,
		Compression:        compress.LZ4{},
	})
	key := Key{"blob"}

	if err := c.Insert(ctx, key, []byte("old payload")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := c.Insert(ctx, key, []byte("new payload")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// disk holds an lz4 frame for generation 1
	raw, err := os.ReadFile(filepath.Join(base, "blob", genstore.GenerationFile(1)))
	if err != nil {
		t.Fatalf("read raw generation: %v", err)
	}
	if bytes.Equal(raw, []byte("old payload")) {
		t.Fatalf("generation 1 is not compressed")
	}

	g1, ok, err := c.GetGeneration(ctx, key, 1)
	if err != nil || !ok || !bytes.Equal(g1, []byte("old payload")) {
		t.Fatalf("GetGeneration: %q ok=%v err=%v", g1, ok, err)
	}
	if _, ok, _ := c.GetGeneration(ctx, key, 2); ok {
		t.Fatalf("generation 2 should be absent")
	}
}

func TestInvalidKeysAreRejectedBeforeDiskAccess(t *testing.T) {
	ctx := context.Background()
	c, base := newTestCache(t, Options{})

	bad := []Key{
		nil,
		{},
		{""},
		{"a", ""},
		{"."},
		{"..", "etc", "passwd"},
		{"a/b"},
		{`a\b`},
		{"/etc"},
		{"a\x00b"},
	}
	for _, key := range bad {
		err := c.Insert(ctx, key, []byte("x"))
		var ke *KeyError
		if !errors.As(err, &ke) {
			t.Fatalf("Insert(%q): expected KeyError, got %v", key, err)
		}
		if _, _, err := c.Get(ctx, key); !errors.As(err, &ke) {
			t.Fatalf("Get(%q): expected KeyError, got %v", key, err)
		}
		if err := c.Remove(ctx, key); !errors.As(err, &ke) {
			t.Fatalf("Remove(%q): expected KeyError, got %v", key, err)
		}
	}

	// nothing was written inside or outside the base
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("base dir not empty after rejected keys: %v", entries)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(base), "etc")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("write escaped the base dir")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, base := newTestCache(t, Options{GenerationsEnabled: true, MaxGenerations: 2})
	key := Key{"a", "b"}

	if err := c.Remove(ctx, key); err != nil {
		t.Fatalf("Remove of absent key: %v", err)
	}

	_ = c.Insert(ctx, key, []byte("v1"))
	_ = c.Insert(ctx, key, []byte("v2"))
	if err := c.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("entry survived Remove")
	}
	if _, err := os.Stat(filepath.Join(base, "a", "b")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("key directory survived Remove: %v", err)
	}
	if err := c.Remove(ctx, key); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestMaxAgeExpiryLeavesFiles(t *testing.T) {
	ctx := context.Background()
	c, base := newTestCache(t, Options{MaxAge: time.Hour})
	key := Key{"sessions", "s1"}

	if err := c.Insert(ctx, key, []byte("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// fresh: within MaxAge
	if _, ok, err := c.Get(ctx, key); err != nil || !ok {
		t.Fatalf("fresh entry: ok=%v err=%v", ok, err)
	}

	// stale: past MaxAge reads miss but files stay
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("stale entry should miss: ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(base, "sessions", "s1", genstore.GenerationFile(0))); err != nil {
		t.Fatalf("expiry must not delete files: %v", err)
	}

	// an expired entry is replaceable via GetOrInsertWith
	e, err := c.GetOrInsertWith(ctx, key, func() ([]byte, error) { return []byte("v2"), nil })
	if err != nil || !bytes.Equal(e.Data, []byte("v2")) {
		t.Fatalf("refresh after expiry: %+v err=%v", e, err)
	}
	c.now = time.Now
	if _, ok, _ := c.Get(ctx, key); !ok {
		t.Fatalf("refreshed entry should be readable")
	}
}

func TestGetOrInsertWithProducesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Options{})
	key := Key{"k"}

	calls := 0
	produce := func() ([]byte, error) {
		calls++
		return []byte(fmt.Sprintf("call-%d", calls)), nil
	}

	e, err := c.GetOrInsertWith(ctx, key, produce)
	if err != nil || !bytes.Equal(e.Data, []byte("call-1")) {
		t.Fatalf("first call: %+v err=%v", e, err)
	}
	e, err = c.GetOrInsertWith(ctx, key, produce)
	if err != nil || !bytes.Equal(e.Data, []byte("call-1")) {
		t.Fatalf("second call: %+v err=%v", e, err)
	}
	if calls != 1 {
		t.Fatalf("produce ran %d times, want 1", calls)
	}
}

func TestGetOrInsertWithWrapsProducerError(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Options{})
	key := Key{"k"}
	sentinel := errors.New("upstream down")

	_, err := c.GetOrInsertWith(ctx, key, func() ([]byte, error) { return nil, sentinel })
	var pe *ProducerError
	if !errors.As(err, &pe) || !errors.Is(err, sentinel) {
		t.Fatalf("expected ProducerError wrapping sentinel, got %v", err)
	}
	// the failure cached nothing
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("failed produce must not cache")
	}
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	c, base := newTestCache(t, Options{Disabled: true})
	key := Key{"k"}

	if c.Enabled() {
		t.Fatalf("Enabled() = true on a disabled cache")
	}
	if err := c.Insert(ctx, key, []byte("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("disabled Get: ok=%v err=%v", ok, err)
	}
	// pass-through produce without persistence
	e, err := c.GetOrInsertWith(ctx, key, func() ([]byte, error) { return []byte("v"), nil })
	if err != nil || !bytes.Equal(e.Data, []byte("v")) {
		t.Fatalf("disabled GetOrInsertWith: %+v err=%v", e, err)
	}
	entries, _ := os.ReadDir(base)
	if len(entries) != 0 {
		t.Fatalf("disabled cache touched the disk: %v", entries)
	}
}

func TestOnlyIfExistsOpenMode(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	if _, err := New(Options{BaseDir: missing, OpenMode: OnlyIfExists}); err == nil {
		t.Fatalf("expected error for missing base dir")
	}

	present := t.TempDir()
	if _, err := New(Options{BaseDir: present, OpenMode: OnlyIfExists}); err != nil {
		t.Fatalf("existing base dir: %v", err)
	}

	// default mode creates the tree
	created := filepath.Join(t.TempDir(), "a", "b")
	if _, err := New(Options{BaseDir: created}); err != nil {
		t.Fatalf("CreateIfMissing: %v", err)
	}
	if fi, err := os.Stat(created); err != nil || !fi.IsDir() {
		t.Fatalf("base dir not created: %v", err)
	}
}

func TestKeysEnumeratesTree(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t, Options{})

	want := []Key{{"a"}, {"a", "b"}, {"users", "1"}, {"users", "2"}}
	for _, k := range want {
		if err := c.Insert(ctx, k, []byte(k.String())); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}
	_ = c.Remove(ctx, Key{"users", "2"})

	keys, err := c.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	got := make(map[string]bool, len(keys))
	for _, k := range keys {
		got[k.String()] = true
	}
	if len(got) != 3 || !got["a"] || !got["a/b"] || !got["users/1"] {
		t.Fatalf("Keys = %v", keys)
	}
}

// memMirror is an in-memory Mirror for tests.
type memMirror struct {
	mu       sync.Mutex
	m        map[string][]byte
	rejectAt int // reject every write when > 0 and size exceeds it
	sets     int
	dels     int
}

func newMemMirror() *memMirror { return &memMirror{m: make(map[string][]byte)} }

func (p *memMirror) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.m[key]
	return b, ok, nil
}

func (p *memMirror) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sets++
	if p.rejectAt > 0 && len(value) > p.rejectAt {
		return false, nil
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	p.m[key] = cp
	return true, nil
}

func (p *memMirror) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dels++
	delete(p.m, key)
	return nil
}

func (p *memMirror) Close(context.Context) error { return nil }

func TestMirrorServesReadsAndStaysNonAuthoritative(t *testing.T) {
	ctx := context.Background()
	mir := newMemMirror()
	c, base := newTestCache(t, Options{Mirror: mir})
	key := Key{"users", "7"}

	if err := c.Insert(ctx, key, []byte("v1")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// the mirror was seeded on insert: a read works even with the disk
	// copy gone
	if err := os.RemoveAll(filepath.Join(base, "users")); err != nil {
		t.Fatalf("remove disk copy: %v", err)
	}
	e, ok, err := c.Get(ctx, key)
	if err != nil || !ok || !bytes.Equal(e.Data, []byte("v1")) {
		t.Fatalf("mirror hit: %+v ok=%v err=%v", e, ok, err)
	}

	// a corrupt mirror frame is dropped and the read falls through to disk
	mir.mu.Lock()
	mir.m["users/7"] = []byte("garbage")
	mir.mu.Unlock()
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("corrupt frame with no disk copy: ok=%v err=%v", ok, err)
	}
	if _, present := mir.m["users/7"]; present {
		t.Fatalf("corrupt frame not dropped from mirror")
	}

	// Remove clears the mirror entry too
	_ = c.Insert(ctx, key, []byte("v2"))
	if err := c.Remove(ctx, key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := mir.Get(ctx, "users/7"); ok {
		t.Fatalf("mirror entry survived Remove")
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("entry survived Remove")
	}
}

// recordingHooks captures hook invocations for assertions.
type recordingHooks struct {
	mu        sync.Mutex
	rejected  []string
	corrupt   []string
	expired   []string
	pruned    map[string]int
	mirrorRej []string
}

func (h *recordingHooks) KeyRejected(key string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected = append(h.rejected, key)
}

func (h *recordingHooks) ManifestCorrupt(dir string, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.corrupt = append(h.corrupt, dir)
}

func (h *recordingHooks) EntryExpired(key string, _ time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.expired = append(h.expired, key)
}

func (h *recordingHooks) GenerationsPruned(key string, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pruned == nil {
		h.pruned = map[string]int{}
	}
	h.pruned[key] += n
}

func (h *recordingHooks) MirrorSetRejected(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mirrorRej = append(h.mirrorRej, key)
}

func TestHooksFire(t *testing.T) {
	ctx := context.Background()
	hooks := &recordingHooks{}
	mir := newMemMirror()
	mir.rejectAt = 1 // every frame is larger than one byte
	c, base := newTestCache(t, Options{
		GenerationsEnabled: true,
		MaxGenerations:     1,
		MaxAge:             time.Hour,
		Mirror:             mir,
		Hooks:              hooks,
	})

	// key rejection
	_ = c.Insert(ctx, Key{".."}, []byte("x"))
	if len(hooks.rejected) != 1 || hooks.rejected[0] != ".." {
		t.Fatalf("KeyRejected not fired: %v", hooks.rejected)
	}

	// pruning: third insert pushes a generation past the cap
	key := Key{"k"}
	_ = c.Insert(ctx, key, []byte("v1"))
	_ = c.Insert(ctx, key, []byte("v2"))
	_ = c.Insert(ctx, key, []byte("v3"))
	if hooks.pruned["k"] == 0 {
		t.Fatalf("GenerationsPruned not fired")
	}

	// every mirror write was rejected
	if len(hooks.mirrorRej) == 0 {
		t.Fatalf("MirrorSetRejected not fired")
	}

	// expiry
	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Fatalf("expected expired miss")
	}
	if len(hooks.expired) != 1 || hooks.expired[0] != "k" {
		t.Fatalf("EntryExpired not fired: %v", hooks.expired)
	}

	// manifest corruption
	c.now = time.Now
	if err := os.WriteFile(filepath.Join(base, "k", genstore.ManifestFile), []byte("junk\n"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("corrupt manifest should miss: ok=%v err=%v", ok, err)
	}
	if len(hooks.corrupt) != 1 {
		t.Fatalf("ManifestCorrupt not fired: %v", hooks.corrupt)
	}
}
