package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// newTestStore returns a Store backed by a temporary directory whose
// in-process refreshes are waited for before the directory is removed.
func newTestStore(t *testing.T, opts Options) (*Store, *GoroutineSpawner) {
	t.Helper()
	spawner := &GoroutineSpawner{}
	if opts.Spawner == nil {
		opts.Spawner = spawner
	}
	opts.Dir = t.TempDir()
	opts.Logger = log.New(io.Discard)

	store, err := New(opts)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(spawner.Wait)
	return store, spawner
}

func countingFetch(calls *atomic.Int32, payload string) FetchFunc {
	return func(context.Context) (json.RawMessage, error) {
		calls.Add(1)
		return json.RawMessage(payload), nil
	}
}

// seed writes an entry for key that was last refreshed age ago.
func seed(t *testing.T, s *Store, key string, fp Fingerprint, age time.Duration, payload string) {
	t.Helper()
	dir := filepath.Join(s.Dir(), key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	entry := Entry{Fingerprint: fp, LastRefresh: time.Now().Add(-age), Data: json.RawMessage(payload)}
	if err := writeEntry(filepath.Join(dir, entryFileName), entry, false); err != nil {
		t.Fatalf("seed error: %v", err)
	}
}

func TestStore_ColdStart(t *testing.T) {
	store, spawner := newTestStore(t, Options{})
	ctx := context.Background()
	fp := NewFingerprint("query-1")

	var calls atomic.Int32
	got, err := store.Load(ctx, "issues-work", fp, countingFetch(&calls, `["p1"]`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != `["p1"]` {
		t.Errorf("cold start payload mismatch: got %s", got)
	}
	spawner.Wait()

	got, err = store.Load(ctx, "issues-work", fp, countingFetch(&calls, `["p2"]`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	spawner.Wait()
	if string(got) != `["p1"]` {
		t.Errorf("expected cached payload, got %s", got)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
}

func TestStore_ColdStartTimeout(t *testing.T) {
	store, spawner := newTestStore(t, Options{ColdStartTimeout: 50 * time.Millisecond})
	ctx := context.Background()
	fp := NewFingerprint("query-1")

	release := make(chan struct{})
	slow := func(context.Context) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`"late"`), nil
	}

	_, err := store.Load(ctx, "slow", fp, slow)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// The refresh is not cancelled by the timeout.
	close(release)
	spawner.Wait()

	var calls atomic.Int32
	got, err := store.Load(ctx, "slow", fp, countingFetch(&calls, `"again"`))
	if err != nil {
		t.Fatalf("Load after late refresh failed: %v", err)
	}
	if string(got) != `"late"` {
		t.Errorf("expected late payload, got %s", got)
	}
	spawner.Wait()
	if n := calls.Load(); n != 0 {
		t.Errorf("fetch called %d times, want 0", n)
	}
}

func TestStore_ColdStartContextCanceled(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	blocked := func(context.Context) (json.RawMessage, error) {
		<-release
		return json.RawMessage(`1`), nil
	}

	cancel()
	_, err := store.Load(ctx, "canceled", NewFingerprint("q"), blocked)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStore_FreshHit(t *testing.T) {
	store, spawner := newTestStore(t, Options{})
	fp := NewFingerprint("query-1")
	seed(t, store, "fresh", fp, 10*time.Second, `{"v":"old"}`)

	var calls atomic.Int32
	got, err := store.Load(context.Background(), "fresh", fp, countingFetch(&calls, `{"v":"new"}`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	spawner.Wait()

	if string(got) != `{"v":"old"}` {
		t.Errorf("payload mismatch: got %s", got)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("fetch called %d times for a fresh entry", n)
	}
}

func TestStore_StaleByAge(t *testing.T) {
	store, spawner := newTestStore(t, Options{})
	ctx := context.Background()
	fp := NewFingerprint("query-1")
	seed(t, store, "stale", fp, 120*time.Second, `"old"`)

	var calls atomic.Int32
	got, err := store.Load(ctx, "stale", fp, countingFetch(&calls, `"new"`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != `"old"` {
		t.Errorf("stale load should serve the old payload, got %s", got)
	}
	spawner.Wait()

	got, err = store.Load(ctx, "stale", fp, countingFetch(&calls, `"newer"`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	spawner.Wait()
	if string(got) != `"new"` {
		t.Errorf("expected refreshed payload, got %s", got)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
}

func TestStore_StaleByFingerprint(t *testing.T) {
	store, spawner := newTestStore(t, Options{})
	f1 := NewFingerprint("query-1")
	f2 := NewFingerprint("query-2")
	seed(t, store, "changed", f1, time.Second, `"old"`)

	var calls atomic.Int32
	got, err := store.Load(context.Background(), "changed", f2, countingFetch(&calls, `"new"`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != `"old"` {
		t.Errorf("expected old payload on this call, got %s", got)
	}
	spawner.Wait()

	if n := calls.Load(); n != 1 {
		t.Fatalf("fingerprint mismatch should refresh, fetch called %d times", n)
	}
	entry, err := store.Get("changed")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Fingerprint != f2 {
		t.Errorf("stored fingerprint not updated: %s", entry.Fingerprint)
	}
	if string(entry.Data) != `"new"` {
		t.Errorf("stored payload not updated: %s", entry.Data)
	}
}

func TestStore_FutureTimestampRefreshes(t *testing.T) {
	store, spawner := newTestStore(t, Options{})
	fp := NewFingerprint("q")
	seed(t, store, "future", fp, -time.Hour, `"old"`)

	var calls atomic.Int32
	if _, err := store.Load(context.Background(), "future", fp, countingFetch(&calls, `"new"`)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	spawner.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want 1", n)
	}
}

// signalSpawner reports on done once each spawned refresh has returned.
type signalSpawner struct {
	GoroutineSpawner
	done chan string
}

func (s *signalSpawner) Spawn(req RefreshRequest) error {
	run := req.Run
	req.Run = func() {
		run()
		s.done <- req.Key
	}
	return s.GoroutineSpawner.Spawn(req)
}

func TestStore_SingleWriter(t *testing.T) {
	spawner := &signalSpawner{done: make(chan string, 2)}
	store, _ := newTestStore(t, Options{Spawner: spawner})
	t.Cleanup(spawner.Wait)
	fp := NewFingerprint("query-1")

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (json.RawMessage, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return json.RawMessage(`"p1"`), nil
	}

	type result struct {
		data json.RawMessage
		err  error
	}
	results := make(chan result, 2)
	load := func() {
		data, err := store.Load(context.Background(), "race", fp, fetch)
		results <- result{data, err}
	}

	go load()
	<-started
	go load()

	// The first refresh is parked inside fetch, so the one that finishes now
	// is the second attempt, which must have lost the lock.
	select {
	case <-spawner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("second refresh attempt did not return")
	}
	close(release)

	for i := 0; i < 2; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("Load %d failed: %v", i, r.err)
		}
		if string(r.data) != `"p1"` {
			t.Errorf("Load %d payload mismatch: %s", i, r.data)
		}
	}
	<-spawner.done

	if n := calls.Load(); n != 1 {
		t.Errorf("fetch called %d times, want exactly 1", n)
	}
}

func TestStore_CorruptEntry(t *testing.T) {
	store, spawner := newTestStore(t, Options{})
	ctx := context.Background()
	fp := NewFingerprint("q")

	dir := filepath.Join(store.Dir(), "corrupt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, entryFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write error: %v", err)
	}

	var calls atomic.Int32
	_, err := store.Load(ctx, "corrupt", fp, countingFetch(&calls, `"repaired"`))
	if !errors.Is(err, ErrCacheCorrupted) {
		t.Fatalf("expected ErrCacheCorrupted, got %v", err)
	}
	spawner.Wait()

	got, err := store.Load(ctx, "corrupt", fp, countingFetch(&calls, `"unused"`))
	if err != nil {
		t.Fatalf("Load after repair failed: %v", err)
	}
	spawner.Wait()
	if string(got) != `"repaired"` {
		t.Errorf("expected repaired payload, got %s", got)
	}
}

func TestStore_RefreshSkipsWhenLocked(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	dir := filepath.Join(store.Dir(), "locked")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}

	lock, err := TryLock(dir)
	if err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer lock.Release() //nolint:errcheck

	var calls atomic.Int32
	if err := store.Refresh(context.Background(), "locked", NewFingerprint("q"), countingFetch(&calls, `1`)); err != nil {
		t.Fatalf("contended refresh should not fail: %v", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("fetch called %d times under contention", n)
	}
	if _, err := store.Get("locked"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("contended refresh wrote an entry: %v", err)
	}
}

func TestStore_RefreshFetchFailure(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	fp := NewFingerprint("q")
	seed(t, store, "failing", fp, time.Hour, `"old"`)

	boom := errors.New("boom")
	err := store.Refresh(context.Background(), "failing", fp, func(context.Context) (json.RawMessage, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}

	entry, err := store.Get("failing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Data) != `"old"` {
		t.Errorf("failed refresh overwrote entry: %s", entry.Data)
	}

	// The lock must have been released.
	lock, err := TryLock(filepath.Join(store.Dir(), "failing"))
	if err != nil {
		t.Fatalf("lock still held after failed refresh: %v", err)
	}
	_ = lock.Release()
}

func TestStore_BackgroundFailureKeepsStaleData(t *testing.T) {
	store, spawner := newTestStore(t, Options{})
	fp := NewFingerprint("q")
	seed(t, store, "flaky", fp, time.Hour, `"old"`)

	failing := func(context.Context) (json.RawMessage, error) {
		return nil, errors.New("network down")
	}
	for i := 0; i < 2; i++ {
		got, err := store.Load(context.Background(), "flaky", fp, failing)
		if err != nil {
			t.Fatalf("Load %d failed: %v", i, err)
		}
		spawner.Wait()
		if string(got) != `"old"` {
			t.Errorf("Load %d payload mismatch: %s", i, got)
		}
	}
}

func TestStore_Compression(t *testing.T) {
	store, _ := newTestStore(t, Options{Compress: true})
	fp := NewFingerprint("q")

	if err := store.Refresh(context.Background(), "zst", fp, func(context.Context) (json.RawMessage, error) {
		return json.RawMessage(`{"items":[1,2,3]}`), nil
	}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(store.Dir(), "zst", entryFileName))
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if len(raw) < len(zstdMagic) || string(raw[:len(zstdMagic)]) != string(zstdMagic) {
		t.Fatalf("entry is not zstd framed")
	}

	entry, err := store.Get("zst")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(entry.Data) != `{"items":[1,2,3]}` {
		t.Errorf("payload mismatch: %s", entry.Data)
	}

	// Plain entries stay readable when compression is on.
	seed(t, store, "plain", fp, 0, `"plain"`)
	entry, err = store.Get("plain")
	if err != nil {
		t.Fatalf("Get plain failed: %v", err)
	}
	if string(entry.Data) != `"plain"` {
		t.Errorf("plain payload mismatch: %s", entry.Data)
	}
}

func TestStore_InvalidKey(t *testing.T) {
	store, _ := newTestStore(t, Options{})
	for _, key := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := store.Load(context.Background(), key, Fingerprint{}, nil)
		if !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func TestNew_RequiresDir(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatal("expected error for empty directory")
	}
}
