// Package tools defines the file tools the model can call.
//
// Every tool resolves its paths through the sandbox guard before
// touching the filesystem, and every mutation goes through a
// confirmation hook so interactive callers can show the user what is
// about to happen. Results are plain strings shaped for feeding back
// to the model, never panics or raw errors.
package tools

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/burrowhq/burrow/internal/fsx"
	"github.com/burrowhq/burrow/internal/sandbox"
	"github.com/burrowhq/burrow/internal/validate"
)

// previewLines caps how much of a pending write is shown before
// asking for confirmation.
const previewLines = 100

// ConfirmFunc approves or rejects a pending mutation. action is
// "create", "overwrite", or "edit"; preview shows what would change.
type ConfirmFunc func(action, path, preview string) bool

// AutoConfirm approves every mutation. Used by --yes and by serving
// contexts where no terminal exists to ask on.
func AutoConfirm(_, _, _ string) bool { return true }

// Result is one tool execution outcome, shaped for the model.
type Result struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func fail(format string, args ...interface{}) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Definition describes one tool for the completion API.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

var definitions = []Definition{
	{
		Name:        "edit_file",
		Description: "Edit an existing file by replacing specific text. Use this for modifications to existing files.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "The path to the file to edit"},
				"old_text": {"type": "string", "description": "The exact text to find and replace"},
				"new_text": {"type": "string", "description": "The text to replace it with"}
			},
			"required": ["path", "old_text", "new_text"]
		}`),
	},
	{
		Name:        "list_files",
		Description: "List files and directories in a given path.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "The directory path to list (defaults to current directory)", "default": "."}
			},
			"required": []
		}`),
	},
	{
		Name:        "read_file",
		Description: "Read the contents of a file. Use this to examine existing code or text files.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "The path to the file to read (relative to current directory)"}
			},
			"required": ["path"]
		}`),
	},
	{
		Name:        "write_file",
		Description: "Write content to a file. Creates the file if it doesn't exist, or overwrites if it does. Always use this when the user asks you to create a file or save code.",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"path": {"type": "string", "description": "The path to the file to write (relative to current directory)"},
				"content": {"type": "string", "description": "The content to write to the file"}
			},
			"required": ["path", "content"]
		}`),
	},
}

// Definitions returns every tool definition, sorted by name so prompts
// stay deterministic.
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Registry executes tools against one sandbox guard.
type Registry struct {
	guard   *sandbox.Guard
	confirm ConfirmFunc
}

// NewRegistry creates a tool registry. A nil confirm auto-approves.
func NewRegistry(guard *sandbox.Guard, confirm ConfirmFunc) *Registry {
	if confirm == nil {
		confirm = AutoConfirm
	}
	return &Registry{guard: guard, confirm: confirm}
}

// Guard returns the sandbox guard the registry authorizes against.
func (r *Registry) Guard() *sandbox.Guard {
	return r.guard
}

// Execute runs a named tool with raw JSON arguments.
func (r *Registry) Execute(name string, args json.RawMessage) *Result {
	switch name {
	case "read_file":
		var a struct {
			Path string `json:"path"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return fail("invalid arguments for %s: %v", name, err)
		}
		return r.ReadFile(a.Path)
	case "write_file":
		var a struct {
			Path    string `json:"path"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return fail("invalid arguments for %s: %v", name, err)
		}
		return r.WriteFile(a.Path, a.Content)
	case "edit_file":
		var a struct {
			Path    string `json:"path"`
			OldText string `json:"old_text"`
			NewText string `json:"new_text"`
		}
		if err := json.Unmarshal(args, &a); err != nil {
			return fail("invalid arguments for %s: %v", name, err)
		}
		return r.EditFile(a.Path, a.OldText, a.NewText)
	case "list_files":
		var a struct {
			Path string `json:"path"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &a); err != nil {
				return fail("invalid arguments for %s: %v", name, err)
			}
		}
		return r.ListFiles(a.Path)
	default:
		return fail("unknown tool: %s", name)
	}
}

// ReadFile returns a file's contents.
func (r *Registry) ReadFile(path string) *Result {
	abs, err := r.guard.Resolve("read", path)
	if err != nil {
		return fail("%v", err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return fail("file not found: %s", path)
	}
	if err != nil {
		return fail("%v", err)
	}
	if info.IsDir() {
		return fail("not a file: %s", path)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return fail("read %s: %v", path, err)
	}
	return &Result{Success: true, Result: string(data)}
}

// WriteFile creates or overwrites a file after confirmation.
func (r *Registry) WriteFile(path, content string) *Result {
	abs, err := r.guard.Resolve("write", path)
	if err != nil {
		return fail("%v", err)
	}

	action := "create"
	if _, err := os.Stat(abs); err == nil {
		action = "overwrite"
	}

	if !r.confirm(action, path, previewOf(content)) {
		return fail("user cancelled")
	}

	if err := fsx.WriteFileAtomic(abs, []byte(content), 0o644); err != nil {
		return fail("write %s: %v", path, err)
	}

	result := fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), path)
	return withValidation(result, content, path)
}

// EditFile replaces every occurrence of oldText in a file after
// confirmation.
func (r *Registry) EditFile(path, oldText, newText string) *Result {
	if oldText == "" {
		return fail("old_text is empty")
	}

	abs, err := r.guard.Resolve("edit", path)
	if err != nil {
		return fail("%v", err)
	}

	data, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		return fail("file not found: %s", path)
	}
	if err != nil {
		return fail("read %s: %v", path, err)
	}

	content := string(data)
	occurrences := strings.Count(content, oldText)
	if occurrences == 0 {
		return fail("text not found in %s", path)
	}

	preview := "- " + strings.ReplaceAll(oldText, "\n", "\n- ") +
		"\n+ " + strings.ReplaceAll(newText, "\n", "\n+ ")
	if !r.confirm("edit", path, preview) {
		return fail("user cancelled")
	}

	updated := strings.ReplaceAll(content, oldText, newText)
	if err := fsx.WriteFileAtomic(abs, []byte(updated), 0o644); err != nil {
		return fail("write %s: %v", path, err)
	}

	result := fmt.Sprintf("Successfully edited %s (%d replacement(s))", path, occurrences)
	return withValidation(result, updated, path)
}

// ListFiles lists a directory, directories first.
func (r *Registry) ListFiles(path string) *Result {
	if path == "" {
		path = "."
	}

	abs, err := r.guard.Resolve("list", path)
	if err != nil {
		return fail("%v", err)
	}

	info, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return fail("directory not found: %s", path)
	}
	if err != nil {
		return fail("%v", err)
	}
	if !info.IsDir() {
		return fail("not a directory: %s", path)
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return fail("list %s: %v", path, err)
	}

	var items []string
	for _, d := range dirents {
		if strings.HasPrefix(d.Name(), ".") {
			continue
		}
		name := d.Name()
		if d.IsDir() {
			name += "/"
		}
		items = append(items, name)
	}
	sort.Slice(items, func(i, j int) bool {
		di, dj := strings.HasSuffix(items[i], "/"), strings.HasSuffix(items[j], "/")
		if di != dj {
			return di
		}
		return strings.ToLower(items[i]) < strings.ToLower(items[j])
	})

	if len(items) == 0 {
		return &Result{Success: true, Result: "(empty directory)"}
	}
	return &Result{Success: true, Result: strings.Join(items, "\n")}
}

// withValidation appends a syntax report to a successful mutation so
// the model can fix what it just wrote. Validation never undoes a
// confirmed write.
func withValidation(result, content, path string) *Result {
	if vr := validate.File(content, path); vr != nil {
		if report := vr.Report(); report != "" {
			result += "\n" + report
		}
	}
	return &Result{Success: true, Result: result}
}

// previewOf truncates long content for confirmation prompts.
func previewOf(content string) string {
	lines := strings.Split(content, "\n")
	if len(lines) <= previewLines {
		return content
	}
	head := strings.Join(lines[:previewLines], "\n")
	return fmt.Sprintf("%s\n... (%d more lines)", head, len(lines)-previewLines)
}
