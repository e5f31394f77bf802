// Package sandbox confines every filesystem operation to a single
// authorized directory tree. A Guard canonicalizes each candidate path
// (resolving "." and ".." segments and symlinks) before comparing it
// component-wise against the root, so neither traversal sequences nor
// symlinks pointing outside the tree can slip a path past the check.
//
// The Guard authorizes paths; it performs no file I/O of its own beyond
// the stat calls needed for canonicalization. Callers must resolve every
// path through the Guard before touching disk.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EscapeConfirmation is the exact token required to lift the sandbox
// boundary. Anything else, including case or whitespace variants, leaves
// the sandbox enabled.
const EscapeConfirmation = "YES"

// ViolationError reports a path that resolves outside the sandbox root.
// It is surfaced to the user as-is and never auto-corrected to a "safe"
// alternative.
type ViolationError struct {
	// Op is the attempted operation (read, write, cd, ...).
	Op string

	// Path is the fully resolved absolute path that was denied.
	Path string

	// Root is the configured sandbox root.
	Root string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf(
		"cannot %s path outside sandbox root: %s\nsandbox root: %s\nfull filesystem access requires --dangerously-allow-entire-fs and typing %s",
		e.Op, e.Path, e.Root, EscapeConfirmation,
	)
}

// Guard authorizes filesystem paths against a fixed root directory.
// Construct one at process start and pass it by reference into every
// path-resolving call; there is no package-level state.
//
// Resolve is safe for concurrent readers. Chdir and AllowEscape mutate
// the Guard and are only meant to be called from the single interactive
// control flow.
type Guard struct {
	// root is the canonical sandbox root, fixed at construction.
	root string

	// cwd is the canonical current directory for resolving relative
	// candidates. Starts at root, moved only by Chdir.
	cwd string

	// escaped reports whether the boundary has been lifted via the
	// exact confirmation token.
	escaped bool
}

// New creates a Guard rooted at the given directory. The root is made
// absolute, symlink-resolved, and must exist as a directory. It is set
// once for the Guard's lifetime; there is no re-initialization path.
func New(root string) (*Guard, error) {
	if root == "" {
		return nil, fmt.Errorf("sandbox root is required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root is not a directory: %s", canonical)
	}

	return &Guard{root: canonical, cwd: canonical}, nil
}

// Root returns the canonical sandbox root.
func (g *Guard) Root() string {
	return g.root
}

// Cwd returns the canonical current directory.
func (g *Guard) Cwd() string {
	return g.cwd
}

// Escaped reports whether the boundary has been lifted.
func (g *Guard) Escaped() bool {
	return g.escaped
}

// AllowEscape lifts the sandbox boundary when confirmation is the exact
// literal "YES". Any other value is a silent no-op that leaves the
// boundary in place; a mismatched confirmation is never an error.
// Lifting the boundary does not relocate the current directory.
// Returns whether escape is now enabled.
func (g *Guard) AllowEscape(confirmation string) bool {
	if confirmation == EscapeConfirmation {
		g.escaped = true
	}
	return g.escaped
}

// Resolve authorizes a candidate path for the named operation. Relative
// candidates are joined onto the current directory, then the result is
// fully canonicalized before the containment check. The candidate does
// not need to exist; the nearest existing ancestor is resolved and the
// remainder re-attached, so write targets are checked the same way as
// read targets.
//
// Returns the canonical absolute path, or a *ViolationError when the
// path lands outside the root and escape has not been confirmed.
func (g *Guard) Resolve(op, candidate string) (string, error) {
	path := candidate
	if !filepath.IsAbs(path) {
		path = filepath.Join(g.cwd, path)
	}
	path = filepath.Clean(path)

	resolved, err := canonicalize(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", candidate, err)
	}

	if !g.escaped && !within(g.root, resolved) {
		return "", &ViolationError{Op: op, Path: resolved, Root: g.root}
	}
	return resolved, nil
}

// Chdir moves the current directory after running the same authorization
// as any other path. An empty candidate resolves to the sandbox root,
// never to the OS home directory. The target must exist and be a
// directory.
func (g *Guard) Chdir(candidate string) error {
	if candidate == "" {
		g.cwd = g.root
		return nil
	}

	resolved, err := g.Resolve("cd", candidate)
	if err != nil {
		return err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("cd %s: %w", candidate, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cd %s: not a directory", candidate)
	}

	g.cwd = resolved
	return nil
}

// canonicalize resolves symlinks in path. When the path does not exist
// yet, the nearest existing ancestor is resolved and the non-existent
// remainder re-attached, so brand-new write targets still canonicalize
// through any symlinked ancestors.
func canonicalize(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Walk up to the nearest existing ancestor. tail collects the
	// missing components innermost-first.
	var tail []string
	cur := path
	for {
		parent := filepath.Dir(cur)
		tail = append(tail, filepath.Base(cur))

		resolved, err := filepath.EvalSymlinks(parent)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
		if parent == cur {
			// Ran out of ancestors without finding one that exists.
			return "", err
		}
		cur = parent
	}
}

// within reports whether path sits at or below root. Both arguments must
// already be canonical; the comparison is component-wise, so a root of
// /proj never matches /projects/x.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
