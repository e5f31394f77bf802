package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestKeyDeterministic(t *testing.T) {
	k1, err := Key("model-a", "prompt: hello\n", Params{Temperature: 0.7})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	k2, err := Key("model-a", "prompt: hello\n", Params{Temperature: 0.7})
	if err != nil {
		t.Fatalf("Key: %v", err)
	}

	if k1 != k2 {
		t.Errorf("same request produced different keys: %q vs %q", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(k1))
	}
	for _, c := range k1 {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Errorf("key contains non-hex char %q", c)
			break
		}
	}
}

func TestKeyDistinguishesInputs(t *testing.T) {
	base, _ := Key("model-a", "prompt: hello\n", Params{Temperature: 0.7})

	tests := []struct {
		name   string
		model  string
		prompt string
		params Params
	}{
		{"different model", "model-b", "prompt: hello\n", Params{Temperature: 0.7}},
		{"different prompt", "model-a", "prompt: goodbye\n", Params{Temperature: 0.7}},
		{"different params", "model-a", "prompt: hello\n", Params{Temperature: 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, err := Key(tt.model, tt.prompt, tt.params)
			if err != nil {
				t.Fatalf("Key: %v", err)
			}
			if k == base {
				t.Error("distinct request collided with base key")
			}
		})
	}
}

func TestPutGet(t *testing.T) {
	s := newStore(t)
	key, _ := Key("m", "p", Params{})

	err := s.Put(key, &Entry{Model: "m", Prompt: "p", Response: "the answer"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// One file per key, named by the hex digest.
	if _, err := os.Stat(filepath.Join(s.Dir(), key+".json")); err != nil {
		t.Errorf("entry file missing: %v", err)
	}

	entry, ok := s.Get(key)
	if !ok {
		t.Fatal("Get: miss, want hit")
	}
	if entry.Response != "the answer" {
		t.Errorf("Response = %q, want %q", entry.Response, "the answer")
	}
	if entry.CachedAt.IsZero() {
		t.Error("CachedAt not set by Put")
	}
}

func TestGetMiss(t *testing.T) {
	s := newStore(t)
	if _, ok := s.Get("0000000000000000000000000000000000000000000000000000000000000000"); ok {
		t.Error("Get on empty store: hit, want miss")
	}
}

func TestGetExpiredEntryDeleted(t *testing.T) {
	s := newStore(t, WithMaxAge(24*time.Hour))
	key, _ := Key("m", "p", Params{})

	// Hand-write an entry whose timestamp is past the max age.
	stale := Entry{
		CachedAt: time.Now().Add(-48 * time.Hour),
		Model:    "m",
		Response: "old",
	}
	data, _ := json.Marshal(stale)
	path := filepath.Join(s.Dir(), key+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Get(key); ok {
		t.Error("Get expired entry: hit, want miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expired entry not deleted")
	}
}

func TestGetCorruptEntryDeleted(t *testing.T) {
	s := newStore(t)
	key, _ := Key("m", "p", Params{})
	path := filepath.Join(s.Dir(), key+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, ok := s.Get(key); ok {
		t.Error("Get corrupt entry: hit, want miss")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt entry not deleted")
	}
}

func TestPutIdempotent(t *testing.T) {
	s := newStore(t)
	key, _ := Key("m", "p", Params{})

	if err := s.Put(key, &Entry{Response: "first"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(key, &Entry{Response: "second"}); err != nil {
		t.Fatal(err)
	}

	entry, ok := s.Get(key)
	if !ok {
		t.Fatal("miss after double Put")
	}
	if entry.Response != "second" {
		t.Errorf("Response = %q, want last write %q", entry.Response, "second")
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
}

func TestPruneRemovesOldEntries(t *testing.T) {
	s := newStore(t)
	oldKey, _ := Key("m", "old", Params{})
	newKey, _ := Key("m", "new", Params{})

	if err := s.Put(oldKey, &Entry{Response: "old"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(newKey, &Entry{Response: "new"}); err != nil {
		t.Fatal(err)
	}

	// Age is judged by file mtime; backdate the old entry past 30 days.
	past := time.Now().Add(-40 * 24 * time.Hour)
	if err := os.Chtimes(filepath.Join(s.Dir(), oldKey+".json"), past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, ok := s.Get(oldKey); ok {
		t.Error("old entry survived prune")
	}
	if _, ok := s.Get(newKey); !ok {
		t.Error("fresh entry did not survive prune")
	}
}

func TestPruneEvictsOldestFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	keys := make([]string, 3)
	for i := range keys {
		keys[i], _ = Key("m", fmt.Sprintf("prompt-%d", i), Params{})
		if err := s.Put(keys[i], &Entry{Response: "payload"}); err != nil {
			t.Fatal(err)
		}
	}

	// Stagger mtimes: keys[0] oldest, keys[2] newest.
	now := time.Now()
	var total int64
	for i, key := range keys {
		path := filepath.Join(dir, key+".json")
		ts := now.Add(time.Duration(i-3) * time.Hour)
		if err := os.Chtimes(path, ts, ts); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		total += info.Size()
	}

	// Budget forcing exactly one eviction: the oldest, never the others.
	tight, err := New(dir, WithMaxSize(total-1))
	if err != nil {
		t.Fatal(err)
	}
	removed, err := tight.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, ok := tight.Get(keys[0]); ok {
		t.Error("oldest entry survived size eviction")
	}
	for _, key := range keys[1:] {
		if _, ok := tight.Get(key); !ok {
			t.Errorf("newer entry %s evicted before the oldest", key[:8])
		}
	}
}

func TestClear(t *testing.T) {
	s := newStore(t)
	for i := 0; i < 3; i++ {
		key, _ := Key("m", fmt.Sprintf("p%d", i), Params{})
		if err := s.Put(key, &Entry{Response: "x"}); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 {
		t.Errorf("Entries after Clear = %d, want 0", stats.Entries)
	}
}

func TestGetStats(t *testing.T) {
	s := newStore(t)

	stats, err := s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 0 || stats.TotalSize != 0 {
		t.Errorf("empty store stats = %+v, want zeros", stats)
	}

	key, _ := Key("m", "p", Params{})
	if err := s.Put(key, &Entry{Response: "x"}); err != nil {
		t.Fatal(err)
	}

	stats, err = s.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("Entries = %d, want 1", stats.Entries)
	}
	if stats.TotalSize <= 0 {
		t.Errorf("TotalSize = %d, want > 0", stats.TotalSize)
	}
}

func TestConcurrentGetPut(t *testing.T) {
	s := newStore(t)
	key, _ := Key("m", "shared", Params{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Parallel agents write identical payloads for identical keys.
			_ = s.Put(key, &Entry{Response: "same"})
			if entry, ok := s.Get(key); ok && entry.Response != "same" {
				t.Errorf("Response = %q, want %q", entry.Response, "same")
			}
		}()
	}
	wg.Wait()

	entry, ok := s.Get(key)
	if !ok {
		t.Fatal("miss after concurrent writes")
	}
	if entry.Response != "same" {
		t.Errorf("Response = %q, want %q", entry.Response, "same")
	}
}
