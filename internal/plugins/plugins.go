// Package plugins loads manifest-driven plugin commands. A plugin is
// one YAML manifest declaring commands and their prompt templates; no
// plugin code ever executes. Invoking a command only expands its
// template into a prompt that rides the normal ask flow.
package plugins

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kaptinlin/jsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON []byte

// argsPlaceholder marks where a command's arguments land in its
// prompt template.
const argsPlaceholder = "{{args}}"

// Manifest is one plugin file.
type Manifest struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Commands    []Command `yaml:"commands"`
}

// Command is one invocable plugin command.
type Command struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Usage       string `yaml:"usage"`
	Prompt      string `yaml:"prompt"`
}

// Expand renders the command's prompt for the given argument string.
// Templates without the placeholder get non-empty args appended, so a
// bare template still sees what the user typed.
func (c Command) Expand(args string) string {
	if strings.Contains(c.Prompt, argsPlaceholder) {
		return strings.ReplaceAll(c.Prompt, argsPlaceholder, args)
	}
	if args == "" {
		return c.Prompt
	}
	return c.Prompt + "\n\n" + args
}

// RegisteredCommand is a command bound to the plugin that declared it.
type RegisteredCommand struct {
	Plugin string
	Command
}

// Registry holds the plugins and commands that survived discovery.
type Registry struct {
	plugins  []Manifest
	commands map[string]RegisteredCommand
}

// Plugins returns the loaded manifests in discovery order.
func (r *Registry) Plugins() []Manifest {
	return r.plugins
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []RegisteredCommand {
	out := make([]RegisteredCommand, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Lookup finds a registered command by name.
func (r *Registry) Lookup(name string) (RegisteredCommand, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.NewCompiler().Compile(schemaJSON)
})

// Load parses and validates one manifest.
func Load(data []byte) (*Manifest, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}

	// Validate the JSON rendering of the YAML so the schema sees the
	// same shape regardless of source syntax.
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if result := schema.ValidateJSON(encoded); !result.IsValid() {
		return nil, fmt.Errorf("manifest does not match schema: %v", result.Errors)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, nil
}

// Discover loads every manifest under dir. Underscore-prefixed and
// non-YAML files are ignored; manifests that fail to parse or
// validate are skipped with a warning, never fatal. The first plugin
// to claim a command name keeps it.
func Discover(dir string, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plugins dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read plugins dir: %w", err)
	}

	r := &Registry{commands: map[string]RegisteredCommand{}}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") {
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".yaml", ".yml":
		default:
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Warn("skipping plugin", "file", name, "error", err)
			continue
		}
		m, err := Load(data)
		if err != nil {
			log.Warn("skipping plugin", "file", name, "error", err)
			continue
		}

		r.plugins = append(r.plugins, *m)
		for _, cmd := range m.Commands {
			if prev, ok := r.commands[cmd.Name]; ok {
				log.Warn("duplicate plugin command", "command", cmd.Name,
					"plugin", m.Name, "kept", prev.Plugin)
				continue
			}
			r.commands[cmd.Name] = RegisteredCommand{Plugin: m.Name, Command: cmd}
		}
	}
	return r, nil
}
