// Package cache memoizes model responses on disk, keyed by a digest of
// the full canonical request. Identical requests across runs and across
// parallel agents resolve to the same key, so a hit skips the network
// entirely. The cache is an optimization, never a correctness
// dependency: any entry that cannot be read is treated as a miss and
// discarded.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/burrowhq/burrow/internal/fsx"
)

const (
	// DefaultMaxAge is how long an entry stays servable.
	DefaultMaxAge = 30 * 24 * time.Hour

	// DefaultMaxSize is the total size budget for the cache directory.
	DefaultMaxSize = 500 << 20 // 500 MB

	// entryExt is the extension of one stored entry per key.
	entryExt = ".json"
)

// Params are the request parameters that participate in the cache key.
// Two requests differing only here must never share an entry.
type Params struct {
	Temperature float64 `json:"temperature"`
}

// Entry is one cached exchange.
type Entry struct {
	CachedAt time.Time `json:"cached_at"`
	Model    string    `json:"model"`
	Params   Params    `json:"params"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response"`
}

// Stats summarizes the cache directory.
type Stats struct {
	Entries   int
	TotalSize int64
	OldestAge time.Duration
}

// Key derives the content address for a request: a SHA-256 digest over
// the model, the encoded prompt, and the RFC 8785 canonical form of the
// parameters, NUL-separated. The encoded prompt is already
// deterministic (sorted keys), so equal requests always collide on the
// same key, across processes and across parallel agents.
func Key(model, encodedPrompt string, params Params) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize params: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(encodedPrompt))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Store is a content-addressable response cache backed by one file per
// key. Safe for concurrent Get/Put from multiple goroutines; concurrent
// Put on the same key is benign because equal keys imply equal
// payloads.
type Store struct {
	dir     string
	maxAge  time.Duration
	maxSize int64

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithMaxAge overrides the entry expiry age.
func WithMaxAge(age time.Duration) Option {
	return func(s *Store) {
		s.maxAge = age
	}
}

// WithMaxSize overrides the total size budget in bytes.
func WithMaxSize(size int64) Option {
	return func(s *Store) {
		s.maxSize = size
	}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:     dir,
		maxAge:  DefaultMaxAge,
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// Get looks up an entry. A miss is not an error: absent, expired,
// unreadable, and corrupt entries all report (nil, false), and the
// latter three are deleted on sight so they stop costing disk.
func (s *Store) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.entryPath(key)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false
	}
	if err != nil {
		s.discard(path)
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.discard(path)
		return nil, false
	}

	if time.Since(entry.CachedAt) > s.maxAge {
		s.discard(path)
		return nil, false
	}

	return &entry, true
}

// Put persists an entry under key with the write time as its timestamp.
// Writing an existing key is idempotent: responses for identical keys
// are assumed identical, so last-write-wins. The write is atomic; an
// aborted call never leaves a partial entry behind.
func (s *Store) Put(key string, entry *Entry) error {
	entry.CachedAt = time.Now()

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fsx.WriteFileAtomic(s.entryPath(key), data, 0o600); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}
	return nil
}

// Prune removes entries older than the max age, then, independently,
// evicts strictly oldest-first while the directory exceeds the size
// budget. Runs opportunistically (startup, explicit command), not on
// every write. Returns how many entries were removed.
func (s *Store) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listEntries()
	if err != nil {
		return 0, err
	}

	removed := 0
	now := time.Now()

	// Age pass.
	kept := files[:0]
	for _, f := range files {
		if now.Sub(f.mtime) > s.maxAge {
			s.discard(f.path)
			removed++
			continue
		}
		kept = append(kept, f)
	}

	// Size pass: oldest first until under budget.
	var total int64
	for _, f := range kept {
		total += f.size
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].mtime.Before(kept[j].mtime) })
	for len(kept) > 0 && total > s.maxSize {
		oldest := kept[0]
		kept = kept[1:]
		s.discard(oldest.path)
		total -= oldest.size
		removed++
	}

	return removed, nil
}

// Clear removes every entry and returns how many were deleted.
func (s *Store) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listEntries()
	if err != nil {
		return 0, err
	}
	for _, f := range files {
		s.discard(f.path)
	}
	return len(files), nil
}

// GetStats reports entry count, total size, and the age of the oldest
// entry.
func (s *Store) GetStats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := s.listEntries()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Entries: len(files)}
	now := time.Now()
	for _, f := range files {
		stats.TotalSize += f.size
		if age := now.Sub(f.mtime); age > stats.OldestAge {
			stats.OldestAge = age
		}
	}
	return stats, nil
}

type entryFile struct {
	path  string
	size  int64
	mtime time.Time
}

// listEntries scans the cache directory. Unstatable files are skipped
// rather than failing the whole scan.
func (s *Store) listEntries() ([]entryFile, error) {
	dirents, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache directory: %w", err)
	}

	var files []entryFile
	for _, d := range dirents {
		if d.IsDir() || filepath.Ext(d.Name()) != entryExt {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		files = append(files, entryFile{
			path:  filepath.Join(s.dir, d.Name()),
			size:  info.Size(),
			mtime: info.ModTime(),
		})
	}
	return files, nil
}

func (s *Store) entryPath(key string) string {
	return filepath.Join(s.dir, key+entryExt)
}

// discard removes a cache file, ignoring errors: losing a removal only
// means the next prune tries again.
func (s *Store) discard(path string) {
	_ = os.Remove(path) //nolint:errcheck // cache files are disposable
}
