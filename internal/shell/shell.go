// Package shell implements the sandboxed in-process shell built-ins.
// Nothing here spawns a subprocess: every command is implemented
// directly against the filesystem, with every path authorized by the
// guard first. Handlers return their output as plain text and report
// failures as errors rather than printing them.
package shell

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/burrowhq/burrow/internal/sandbox"
)

// treeMaxDepth bounds tree recursion.
const treeMaxDepth = 3

// Shell executes built-in commands against one sandbox guard.
type Shell struct {
	guard *sandbox.Guard
}

// New creates a shell bound to the guard.
func New(guard *sandbox.Guard) *Shell {
	return &Shell{guard: guard}
}

type handler func(*Shell, []string) (string, error)

var builtins = map[string]handler{
	"ls":    (*Shell).ls,
	"ll":    (*Shell).ll,
	"cd":    (*Shell).cd,
	"pwd":   (*Shell).pwd,
	"cat":   (*Shell).cat,
	"head":  (*Shell).head,
	"tail":  (*Shell).tail,
	"mkdir": (*Shell).mkdir,
	"tree":  (*Shell).tree,
	"cp":    (*Shell).cp,
	"mv":    (*Shell).mv,
	"rm":    (*Shell).rm,
}

// IsBuiltin reports whether name is a shell built-in.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// Builtins returns the built-in command names, sorted.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a built-in by name and returns its output.
func (s *Shell) Run(name string, args []string) (string, error) {
	h, ok := builtins[name]
	if !ok {
		return "", fmt.Errorf("unknown shell command: %s", name)
	}
	return h(s, args)
}

func (s *Shell) ls(args []string) (string, error) {
	showAll := false
	long := false
	var paths []string
	for _, arg := range args {
		switch arg {
		case "-a", "--all":
			showAll = true
		case "-l":
			long = true
		default:
			if strings.HasPrefix(arg, "-") {
				return "", fmt.Errorf("ls: unknown flag: %s", arg)
			}
			paths = append(paths, arg)
		}
	}

	target := "."
	if len(paths) > 0 {
		target = paths[0]
	}
	resolved, err := s.guard.Resolve("list", target)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%s does not exist", target)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", target)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", err
	}
	entries = visible(entries, showAll)
	sortEntries(entries)

	var b strings.Builder
	if long {
		for _, entry := range entries {
			fi, err := entry.Info()
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "%10d  %s\n", fi.Size(), decorate(entry))
		}
		return b.String(), nil
	}

	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = decorate(entry)
	}
	if len(names) == 0 {
		return "", nil
	}
	return strings.Join(names, "  ") + "\n", nil
}

func (s *Shell) ll(args []string) (string, error) {
	return s.ls(append([]string{"-l"}, args...))
}

// cd moves the guard's current directory. No arguments returns to the
// sandbox root, never the OS home directory.
func (s *Shell) cd(args []string) (string, error) {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}
	return "", s.guard.Chdir(target)
}

func (s *Shell) pwd([]string) (string, error) {
	return s.guard.Cwd() + "\n", nil
}

func (s *Shell) cat(args []string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("cat requires at least one file argument")
	}

	var b strings.Builder
	for _, arg := range args {
		resolved, err := s.guard.Resolve("read", arg)
		if err != nil {
			return b.String(), err
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return b.String(), fmt.Errorf("%s does not exist", arg)
		}
		if info.IsDir() {
			return b.String(), fmt.Errorf("%s is not a file", arg)
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return b.String(), err
		}
		b.Write(data)
	}
	return b.String(), nil
}

func (s *Shell) head(args []string) (string, error) {
	n, files, err := splitLineCount(args)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("head requires a file argument")
	}

	var b strings.Builder
	for _, file := range files {
		lines, err := s.readLines(file)
		if err != nil {
			return b.String(), err
		}
		if n < len(lines) {
			lines = lines[:n]
		}
		writeLines(&b, lines)
	}
	return b.String(), nil
}

func (s *Shell) tail(args []string) (string, error) {
	n, files, err := splitLineCount(args)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("tail requires a file argument")
	}

	var b strings.Builder
	for _, file := range files {
		lines, err := s.readLines(file)
		if err != nil {
			return b.String(), err
		}
		if n < len(lines) {
			lines = lines[len(lines)-n:]
		}
		writeLines(&b, lines)
	}
	return b.String(), nil
}

func (s *Shell) mkdir(args []string) (string, error) {
	parents := false
	var paths []string
	for _, arg := range args {
		if arg == "-p" {
			parents = true
			continue
		}
		paths = append(paths, arg)
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("mkdir requires a directory path")
	}

	var b strings.Builder
	for _, path := range paths {
		resolved, err := s.guard.Resolve("create", path)
		if err != nil {
			return b.String(), err
		}
		if _, err := os.Stat(resolved); err == nil {
			return b.String(), fmt.Errorf("%s already exists", path)
		}
		if parents {
			err = os.MkdirAll(resolved, 0o755)
		} else {
			err = os.Mkdir(resolved, 0o755)
		}
		if err != nil {
			return b.String(), err
		}
		fmt.Fprintf(&b, "Created: %s\n", path)
	}
	return b.String(), nil
}

func (s *Shell) tree(args []string) (string, error) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	resolved, err := s.guard.Resolve("read", target)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%s does not exist", target)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", target)
	}

	var b strings.Builder
	b.WriteString(filepath.Base(resolved) + "/\n")
	if err := buildTree(&b, resolved, "", 0); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (s *Shell) cp(args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("cp requires source and destination")
	}
	src, err := s.guard.Resolve("read", args[0])
	if err != nil {
		return "", err
	}
	dst, err := s.guard.Resolve("write", args[1])
	if err != nil {
		return "", err
	}

	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("%s does not exist", args[0])
	}

	if info.IsDir() {
		if _, err := os.Stat(dst); err == nil {
			return "", fmt.Errorf("%s already exists", args[1])
		}
		if err := copyTree(src, dst); err != nil {
			return "", err
		}
	} else {
		if di, err := os.Stat(dst); err == nil && di.IsDir() {
			dst = filepath.Join(dst, filepath.Base(src))
		}
		if err := copyFile(src, dst); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("Copied %s to %s\n", args[0], args[1]), nil
}

func (s *Shell) mv(args []string) (string, error) {
	if len(args) < 2 {
		return "", fmt.Errorf("mv requires source and destination")
	}
	src, err := s.guard.Resolve("move", args[0])
	if err != nil {
		return "", err
	}
	dst, err := s.guard.Resolve("write", args[1])
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%s does not exist", args[0])
	}
	if di, err := os.Stat(dst); err == nil && di.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}
	if err := os.Rename(src, dst); err != nil {
		return "", err
	}
	return fmt.Sprintf("Moved %s to %s\n", args[0], args[1]), nil
}

func (s *Shell) rm(args []string) (string, error) {
	recursive := false
	var paths []string
	for _, arg := range args {
		switch arg {
		case "-r", "-rf":
			recursive = true
		default:
			if strings.HasPrefix(arg, "-") {
				return "", fmt.Errorf("rm: unknown flag: %s", arg)
			}
			paths = append(paths, arg)
		}
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("rm requires at least one path")
	}

	var b strings.Builder
	for _, path := range paths {
		resolved, err := s.guard.Resolve("delete", path)
		if err != nil {
			return b.String(), err
		}
		info, err := os.Stat(resolved)
		if err != nil {
			return b.String(), fmt.Errorf("%s does not exist", path)
		}
		if info.IsDir() {
			if !recursive {
				return b.String(), fmt.Errorf("%s is a directory (use -r for recursive)", path)
			}
			err = os.RemoveAll(resolved)
		} else {
			err = os.Remove(resolved)
		}
		if err != nil {
			return b.String(), err
		}
		fmt.Fprintf(&b, "Removed: %s\n", path)
	}
	return b.String(), nil
}

// readLines reads a sandboxed file and splits it into lines without a
// trailing empty element.
func (s *Shell) readLines(file string) ([]string, error) {
	resolved, err := s.guard.Resolve("read", file)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("%s does not exist", file)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is not a file", file)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func writeLines(b *strings.Builder, lines []string) {
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
}

// splitLineCount parses the -n flag for head and tail.
func splitLineCount(args []string) (int, []string, error) {
	n := 10
	var files []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-n" && i+1 < len(args) {
			v, err := strconv.Atoi(args[i+1])
			if err != nil || v < 0 {
				return 0, nil, fmt.Errorf("invalid number: %s", args[i+1])
			}
			n = v
			i++
			continue
		}
		files = append(files, args[i])
	}
	return n, files, nil
}

// visible filters dotfiles unless showAll is set.
func visible(entries []fs.DirEntry, showAll bool) []fs.DirEntry {
	if showAll {
		return entries
	}
	var out []fs.DirEntry
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			out = append(out, entry)
		}
	}
	return out
}

// sortEntries orders directories first, then case-insensitive by name.
func sortEntries(entries []fs.DirEntry) {
	sort.Slice(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})
}

// decorate suffixes directories with / and symlinks with @.
func decorate(entry fs.DirEntry) string {
	name := entry.Name()
	switch {
	case entry.IsDir():
		return name + "/"
	case entry.Type()&fs.ModeSymlink != 0:
		return name + "@"
	}
	return name
}

func buildTree(b *strings.Builder, dir, prefix string, depth int) error {
	if depth >= treeMaxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	entries = visible(entries, false)
	sortEntries(entries)

	for i, entry := range entries {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(entries)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		b.WriteString(prefix + connector + name + "\n")
		if entry.IsDir() {
			if err := buildTree(b, filepath.Join(dir, entry.Name()), childPrefix, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target)
	})
}
