package session

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultIgnore lists directory names whose contents never count toward
// the workspace fingerprint: version control metadata, dependency
// caches, virtualenvs, and build output.
var DefaultIgnore = []string{
	".git", ".hg", ".svn",
	"__pycache__", ".venv", "venv", "env",
	"node_modules", "vendor",
	".idea", ".vscode",
	"build", "dist", "target",
}

// ComputeFilesHash fingerprints the workspace: a SHA-256 digest over
// the sorted, slash-normalized relative paths of every regular file
// under root, pruning hidden entries and ignored directories whole.
// Content and mtimes do not participate, only the listing, so the hash
// answers "did the set of files change", not "did a file change".
// Returns the hex digest and the sorted listing it covers.
func ComputeFilesHash(root string, ignore []string) (string, []string, error) {
	ignoreSet := make(map[string]bool, len(ignore))
	for _, name := range ignore {
		ignoreSet[name] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees just drop out of the fingerprint.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil //nolint:nilerr // skip unreadable entries
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if ignoreSet[name] || strings.HasPrefix(name, ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil //nolint:nilerr // outside root, ignore
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(paths)
	h := sha256.New()
	for _, p := range paths {
		_, _ = io.WriteString(h, p)   //nolint:errcheck // hash writes cannot fail
		_, _ = io.WriteString(h, "\n") //nolint:errcheck // hash writes cannot fail
	}
	return hex.EncodeToString(h.Sum(nil)), paths, nil
}

// DiffListing compares two sorted listings and returns drift entries:
// "+path" for additions and "-path" for removals, additions first.
func DiffListing(old, cur []string) []string {
	var delta []string
	i, j := 0, 0
	var removed []string
	for i < len(old) && j < len(cur) {
		switch {
		case old[i] == cur[j]:
			i++
			j++
		case old[i] < cur[j]:
			removed = append(removed, "-"+old[i])
			i++
		default:
			delta = append(delta, "+"+cur[j])
			j++
		}
	}
	for ; j < len(cur); j++ {
		delta = append(delta, "+"+cur[j])
	}
	for ; i < len(old); i++ {
		removed = append(removed, "-"+old[i])
	}
	return append(delta, removed...)
}
