package sandbox

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// newGuard returns a Guard rooted at a fresh temp directory. The root is
// taken from the Guard rather than the raw temp path because the temp
// directory itself may sit behind a symlink (macOS /var -> /private/var).
func newGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNewRequiresExistingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("New with missing root: expected error, got nil")
	}

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := New(file); err == nil {
		t.Error("New with file root: expected error, got nil")
	}

	if _, err := New(""); err == nil {
		t.Error("New with empty root: expected error, got nil")
	}
}

func TestResolveRelativeWithinRoot(t *testing.T) {
	g := newGuard(t)

	got, err := g.Resolve("read", "sub/file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(g.Root(), "sub", "file.txt")
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveAbsoluteWithinRoot(t *testing.T) {
	g := newGuard(t)
	target := filepath.Join(g.Root(), "notes.md")

	got, err := g.Resolve("write", target)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != target {
		t.Errorf("Resolve = %q, want %q", got, target)
	}
}

func TestResolveNormalizesDotDotInside(t *testing.T) {
	g := newGuard(t)

	got, err := g.Resolve("read", "sub/../file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(g.Root(), "file.txt")
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	g := newGuard(t)
	if err := os.Mkdir(filepath.Join(g.Root(), "src"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := g.Chdir("src"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	_, err := g.Resolve("read", "../../etc/passwd")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("Resolve = %v, want *ViolationError", err)
	}
	if verr.Root != g.Root() {
		t.Errorf("ViolationError.Root = %q, want %q", verr.Root, g.Root())
	}
	if !filepath.IsAbs(verr.Path) {
		t.Errorf("ViolationError.Path = %q, want absolute", verr.Path)
	}
}

func TestResolvePrefixPrecision(t *testing.T) {
	// A root of <tmp>/proj must not authorize <tmp>/projects/x even
	// though "proj" is a string prefix of "projects".
	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "proj"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(base, "projects", "x"), 0o755); err != nil {
		t.Fatal(err)
	}

	g, err := New(filepath.Join(base, "proj"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sibling := filepath.Join(filepath.Dir(g.Root()), "projects", "x")
	_, err = g.Resolve("read", sibling)
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Errorf("Resolve(%q) = %v, want *ViolationError", sibling, err)
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("s"), 0o600); err != nil {
		t.Fatal(err)
	}

	g := newGuard(t)
	link := filepath.Join(g.Root(), "link")
	if err := os.Symlink(secret, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	// The candidate sits inside the root as a string, but resolves
	// outside it.
	_, err := g.Resolve("read", "link")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("Resolve = %v, want *ViolationError", err)
	}
}

func TestResolveNonExistentTarget(t *testing.T) {
	g := newGuard(t)

	// Several path components that do not exist yet: still authorized,
	// still canonical.
	got, err := g.Resolve("write", "a/b/c/new.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(g.Root(), "a", "b", "c", "new.txt")
	if got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestAllowEscapeRequiresExactToken(t *testing.T) {
	rejected := []string{"", "yes", "Yes", "Y", "YES ", " YES", "yES", "NO"}
	for _, token := range rejected {
		g := newGuard(t)
		if got := g.AllowEscape(token); got {
			t.Errorf("AllowEscape(%q) = true, want false", token)
		}
		if g.Escaped() {
			t.Errorf("Escaped() after AllowEscape(%q) = true, want false", token)
		}
	}

	g := newGuard(t)
	if got := g.AllowEscape("YES"); !got {
		t.Error(`AllowEscape("YES") = false, want true`)
	}
	if !g.Escaped() {
		t.Error(`Escaped() after AllowEscape("YES") = false, want true`)
	}
}

func TestAllowEscapePermitsOutsidePaths(t *testing.T) {
	outside := t.TempDir()
	g := newGuard(t)

	if _, err := g.Resolve("read", outside); err == nil {
		t.Fatal("Resolve outside root before escape: expected error, got nil")
	}

	g.AllowEscape("YES")
	if _, err := g.Resolve("read", outside); err != nil {
		t.Errorf("Resolve outside root after escape: %v", err)
	}

	// Escape does not relocate the current directory.
	if g.Cwd() != g.Root() {
		t.Errorf("Cwd after escape = %q, want %q", g.Cwd(), g.Root())
	}
}

func TestChdir(t *testing.T) {
	g := newGuard(t)
	sub := filepath.Join(g.Root(), "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := g.Chdir("sub"); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	if g.Cwd() != sub {
		t.Errorf("Cwd = %q, want %q", g.Cwd(), sub)
	}

	// Relative candidates now resolve from the new directory.
	got, err := g.Resolve("read", "file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(sub, "file.txt"); got != want {
		t.Errorf("Resolve = %q, want %q", got, want)
	}
}

func TestChdirEmptyReturnsToRoot(t *testing.T) {
	g := newGuard(t)
	if err := os.Mkdir(filepath.Join(g.Root(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := g.Chdir("sub"); err != nil {
		t.Fatal(err)
	}

	if err := g.Chdir(""); err != nil {
		t.Fatalf("Chdir(\"\"): %v", err)
	}
	if g.Cwd() != g.Root() {
		t.Errorf("Cwd = %q, want sandbox root %q, never the OS home", g.Cwd(), g.Root())
	}
}

func TestChdirOutsideRejected(t *testing.T) {
	g := newGuard(t)

	err := g.Chdir("..")
	var verr *ViolationError
	if !errors.As(err, &verr) {
		t.Fatalf("Chdir = %v, want *ViolationError", err)
	}
	if g.Cwd() != g.Root() {
		t.Errorf("Cwd after denied Chdir = %q, want %q", g.Cwd(), g.Root())
	}
}

func TestChdirToFileRejected(t *testing.T) {
	g := newGuard(t)
	file := filepath.Join(g.Root(), "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := g.Chdir("f.txt"); err == nil {
		t.Error("Chdir to file: expected error, got nil")
	}
}

func TestViolationMessage(t *testing.T) {
	g := newGuard(t)
	_, err := g.Resolve("write", "/etc/hosts")
	if err == nil {
		t.Fatal("expected violation")
	}

	msg := err.Error()
	for _, want := range []string{"/etc/hosts", g.Root(), "YES"} {
		if !strings.Contains(msg, want) {
			t.Errorf("violation message %q missing %q", msg, want)
		}
	}
}
