package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/burrowhq/burrow/internal/fsx"
	"github.com/burrowhq/burrow/internal/toon"
)

const (
	// SnapshotTimeFormat names snapshot files by their save time.
	SnapshotTimeFormat = "2006-01-02T15:04:05"

	// currentName is the pointer that always resolves to the latest
	// snapshot.
	currentName = "current"
)

// Snapshot is one saved session file.
type Snapshot struct {
	Path    string
	ModTime time.Time
}

// Store persists sessions as timestamp-named TOON snapshots in one
// directory. Later snapshots supersede earlier ones; nothing is
// deleted. A "current" pointer (symlink where supported, plain file
// otherwise) tracks the latest snapshot.
type Store struct {
	dir    string
	mode   Mode
	limits Limits
	ignore []string
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreMode sets the compaction mode applied on save and inherited
// by resumed sessions.
func WithStoreMode(mode Mode) StoreOption {
	return func(st *Store) {
		st.mode = mode
	}
}

// WithStoreLimits sets the compaction size bounds.
func WithStoreLimits(limits Limits) StoreOption {
	return func(st *Store) {
		st.limits = limits
	}
}

// WithIgnorePatterns sets the directory names excluded from the
// workspace fingerprint.
func WithIgnorePatterns(ignore []string) StoreOption {
	return func(st *Store) {
		st.ignore = ignore
	}
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	st := &Store{
		dir:    dir,
		mode:   ModeSmart,
		limits: DefaultLimits(),
		ignore: DefaultIgnore,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Dir returns the snapshot directory.
func (st *Store) Dir() string {
	return st.dir
}

// Save compacts the session per the store's mode and writes a new
// timestamp-named snapshot, updating the current pointer. The live
// session is not mutated; an oversized context surfaces here as
// ErrContextTooLarge.
func (st *Store) Save(s *Session) (string, error) {
	doc, err := Compact(s.Document(), st.mode, st.limits)
	if err != nil {
		return "", err
	}

	name := time.Now().Format(SnapshotTimeFormat) + toon.Ext
	path := filepath.Join(st.dir, name)
	if err := fsx.WriteFileAtomic(path, []byte(toon.Encode(doc)), 0o600); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	if err := st.setCurrent(name); err != nil {
		return "", fmt.Errorf("update current pointer: %w", err)
	}
	return path, nil
}

// Load reads and decodes one snapshot. Decode failures are hard errors
// here; use Resume for the recovering path.
func (st *Store) Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	doc, err := toon.Decode(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	return FromDocument(doc, WithMode(st.mode), WithLimits(st.limits)), nil
}

// LoadCurrent loads the snapshot the current pointer resolves to.
// Returns ErrNoSession when no pointer exists.
func (st *Store) LoadCurrent() (*Session, error) {
	target, err := st.currentTarget()
	if err != nil {
		return nil, err
	}
	return st.Load(target)
}

// Resume restores the current session for a working directory, or
// starts a fresh one when no snapshot exists or the latest one is
// unreadable or undecodable. A damaged snapshot is never fatal: it
// simply does not count as a session. The workspace fingerprint is
// refreshed either way, and drift against the stored listing becomes a
// files delta entry on the session.
func (st *Store) Resume(cwd string) (*Session, bool) {
	s, err := st.LoadCurrent()
	resumed := err == nil
	if err != nil {
		s = New(cwd, WithMode(st.mode), WithLimits(st.limits))
	}
	if s.Cwd == "" {
		s.Cwd = cwd
	}

	st.refreshFiles(s, cwd)
	return s, resumed
}

// refreshFiles recomputes the workspace fingerprint. On drift, the
// session gains a compact "+added,-removed" delta naming what changed
// instead of re-sending the whole tree, and the stored hash and listing
// move forward.
func (st *Store) refreshFiles(s *Session, cwd string) {
	hash, listing, err := ComputeFilesHash(cwd, st.ignore)
	if err != nil {
		// No fingerprint beats a wrong one; drift detection resumes on
		// the next readable walk.
		return
	}

	if s.FilesHash != "" && s.FilesHash != hash && len(s.Files) > 0 {
		s.FilesDelta = DiffListing(s.Files, listing)
	}
	s.FilesHash = hash
	s.Files = listing
	s.refreshEstimate()
}

// List returns all snapshots, newest first by modification time.
func (st *Store) List() ([]Snapshot, error) {
	dirents, err := os.ReadDir(st.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var snaps []Snapshot
	for _, d := range dirents {
		if d.IsDir() || filepath.Ext(d.Name()) != toon.Ext {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		snaps = append(snaps, Snapshot{
			Path:    filepath.Join(st.dir, d.Name()),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ModTime.After(snaps[j].ModTime) })
	return snaps, nil
}

// Clear removes the current pointer so the next resume starts fresh.
// Snapshots themselves stay on disk.
func (st *Store) Clear() error {
	err := os.Remove(filepath.Join(st.dir, currentName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove current pointer: %w", err)
	}
	return nil
}

// setCurrent points the current pointer at a snapshot name. Symlink
// where the platform allows it, plain file holding the name otherwise.
func (st *Store) setCurrent(name string) error {
	currentPath := filepath.Join(st.dir, currentName)
	if err := os.Remove(currentPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Symlink(name, currentPath); err == nil {
		return nil
	}
	return fsx.WriteFileAtomic(currentPath, []byte(name), 0o600)
}

// currentTarget resolves the current pointer to an absolute snapshot
// path. ErrNoSession when the pointer is missing or empty.
func (st *Store) currentTarget() (string, error) {
	currentPath := filepath.Join(st.dir, currentName)

	info, err := os.Lstat(currentPath)
	if os.IsNotExist(err) {
		return "", ErrNoSession
	}
	if err != nil {
		return "", fmt.Errorf("stat current pointer: %w", err)
	}

	var name string
	if info.Mode()&os.ModeSymlink != 0 {
		name, err = os.Readlink(currentPath)
		if err != nil {
			return "", fmt.Errorf("read current pointer: %w", err)
		}
	} else {
		data, err := os.ReadFile(currentPath)
		if err != nil {
			return "", fmt.Errorf("read current pointer: %w", err)
		}
		name = strings.TrimSpace(string(data))
	}

	if name == "" {
		return "", ErrNoSession
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(st.dir, name)
	}
	return name, nil
}
