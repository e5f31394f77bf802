package plugins

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/burrowhq/burrow/internal/logging"
)

const webManifest = `name: web
description: Web helpers
commands:
  - name: summarize
    description: Summarize a URL
    usage: /summarize <url>
    prompt: "Summarize the following page: {{args}}"
`

func writePlugin(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverLoadsManifest(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "web.yaml", webManifest)

	r, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(r.Plugins()) != 1 {
		t.Fatalf("loaded %d plugins, want 1", len(r.Plugins()))
	}
	if r.Plugins()[0].Name != "web" {
		t.Errorf("plugin name = %q", r.Plugins()[0].Name)
	}

	cmd, ok := r.Lookup("summarize")
	if !ok {
		t.Fatal("summarize not registered")
	}
	if cmd.Plugin != "web" {
		t.Errorf("command plugin = %q", cmd.Plugin)
	}
	if cmd.Usage != "/summarize <url>" {
		t.Errorf("usage = %q", cmd.Usage)
	}
}

func TestDiscoverSkipsUnderscoreAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "_draft.yaml", webManifest)
	writePlugin(t, dir, "README.md", "not a manifest")
	writePlugin(t, dir, "notes.txt", "also not")

	r, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(r.Plugins()) != 0 {
		t.Errorf("loaded %d plugins, want 0", len(r.Plugins()))
	}
}

func TestDiscoverSkipsInvalidManifest(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "bad.yaml", "name: bad\ncommands:\n  - name: broken\n")
	writePlugin(t, dir, "web.yaml", webManifest)

	var buf bytes.Buffer
	log := logging.NewWithWriter(&buf, "warn", "text")

	r, err := Discover(dir, log)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(r.Plugins()) != 1 || r.Plugins()[0].Name != "web" {
		t.Errorf("plugins = %+v, want only web", r.Plugins())
	}
	if !strings.Contains(buf.String(), "bad.yaml") {
		t.Errorf("no warning logged for bad.yaml: %s", buf.String())
	}
}

func TestDiscoverCreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plugins")

	r, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(r.Plugins()) != 0 {
		t.Errorf("loaded %d plugins from nothing", len(r.Plugins()))
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("plugins dir not created: %v", err)
	}
}

func TestDiscoverFirstPluginKeepsCommand(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "alpha.yaml", "name: alpha\ncommands:\n  - name: fmt\n    prompt: from alpha\n")
	writePlugin(t, dir, "beta.yaml", "name: beta\ncommands:\n  - name: fmt\n    prompt: from beta\n")

	var buf bytes.Buffer
	r, err := Discover(dir, logging.NewWithWriter(&buf, "warn", "text"))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	cmd, ok := r.Lookup("fmt")
	if !ok {
		t.Fatal("fmt not registered")
	}
	if cmd.Plugin != "alpha" {
		t.Errorf("fmt owned by %q, want alpha", cmd.Plugin)
	}
	if !strings.Contains(buf.String(), "duplicate plugin command") {
		t.Errorf("no duplicate warning: %s", buf.String())
	}
}

func TestLoadRejectsMissingPrompt(t *testing.T) {
	_, err := Load([]byte("name: p\ncommands:\n  - name: c\n"))
	if err == nil {
		t.Fatal("Load accepted command without prompt")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load([]byte("name: p\nexec: /bin/sh\ncommands:\n  - name: c\n    prompt: hi\n"))
	if err == nil {
		t.Fatal("Load accepted unknown top-level key")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load([]byte("name: [unclosed"))
	if err == nil {
		t.Fatal("Load accepted malformed YAML")
	}
}

func TestLoadRejectsEmptyCommands(t *testing.T) {
	_, err := Load([]byte("name: p\ncommands: []\n"))
	if err == nil {
		t.Fatal("Load accepted empty command list")
	}
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		args   string
		want   string
	}{
		{"placeholder", "Summarize: {{args}}", "https://example.com", "Summarize: https://example.com"},
		{"placeholder empty args", "Summarize: {{args}}", "", "Summarize: "},
		{"no placeholder", "Review this code", "func main() {}", "Review this code\n\nfunc main() {}"},
		{"no placeholder no args", "Review this code", "", "Review this code"},
		{"placeholder twice", "{{args}} and {{args}}", "x", "x and x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Command{Prompt: tt.prompt}.Expand(tt.args)
			if got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.args, got, tt.want)
			}
		})
	}
}

func TestCommandsSorted(t *testing.T) {
	dir := t.TempDir()
	writePlugin(t, dir, "tools.yaml", `name: tools
commands:
  - name: zeta
    prompt: z
  - name: alpha
    prompt: a
  - name: mid
    prompt: m
`)

	r, err := Discover(dir, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	cmds := r.Commands()
	if len(cmds) != 3 {
		t.Fatalf("got %d commands", len(cmds))
	}
	for i, want := range []string{"alpha", "mid", "zeta"} {
		if cmds[i].Name != want {
			t.Errorf("cmds[%d] = %q, want %q", i, cmds[i].Name, want)
		}
	}
}
