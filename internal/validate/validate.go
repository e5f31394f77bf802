// Package validate checks generated file content before it is written.
//
// Validation catches syntax errors in model output so the agent can
// feed the report back and retry instead of saving a broken file. All
// validators parse in-process; nothing shells out.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Result holds the outcome of validating one file's content.
type Result struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Report formats errors and warnings as a block suitable for feeding
// back to the model.
func (r *Result) Report() string {
	var lines []string
	if len(r.Errors) > 0 {
		lines = append(lines, "ERRORS:")
		for _, e := range r.Errors {
			lines = append(lines, "  - "+e)
		}
	}
	if len(r.Warnings) > 0 {
		lines = append(lines, "WARNINGS:")
		for _, w := range r.Warnings {
			lines = append(lines, "  - "+w)
		}
	}
	return strings.Join(lines, "\n")
}

// Func validates content destined for filename.
type Func func(content, filename string) *Result

var validators = map[string]Func{
	".json": JSON,
	".yaml": YAML,
	".yml":  YAML,
	".toml": TOML,
	".go":   Go,
}

// For returns the validator for a filename's extension.
func For(filename string) (Func, bool) {
	fn, ok := validators[strings.ToLower(filepath.Ext(filename))]
	return fn, ok
}

// File validates content when a validator exists for the filename's
// extension, nil otherwise.
func File(content, filename string) *Result {
	fn, ok := For(filename)
	if !ok {
		return nil
	}
	return fn(content, filename)
}

// SupportedExtensions returns the extensions with validators, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(validators))
	for ext := range validators {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// JSON validates JSON syntax.
func JSON(content, _ string) *Result {
	var v interface{}
	err := json.Unmarshal([]byte(content), &v)
	if err == nil {
		return &Result{Valid: true}
	}

	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		line, col := lineCol(content, syntax.Offset)
		return &Result{Errors: []string{fmt.Sprintf("Line %d, column %d: %s", line, col, syntax.Error())}}
	}
	return &Result{Errors: []string{err.Error()}}
}

// lineCol converts a byte offset (bytes read up to and including the
// offending byte) into a 1-based line and column.
func lineCol(content string, offset int64) (int, int) {
	idx := int(offset) - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(content) {
		idx = len(content)
	}
	prefix := content[:idx]
	line := 1 + strings.Count(prefix, "\n")
	col := idx + 1
	if nl := strings.LastIndex(prefix, "\n"); nl >= 0 {
		col = idx - nl
	}
	return line, col
}

// YAML validates YAML syntax.
func YAML(content, _ string) *Result {
	var v interface{}
	if err := yaml.Unmarshal([]byte(content), &v); err != nil {
		// yaml.v3 errors already carry "line N:" positions.
		return &Result{Errors: []string{strings.TrimPrefix(err.Error(), "yaml: ")}}
	}
	return &Result{Valid: true}
}

// TOML validates TOML syntax.
func TOML(content, _ string) *Result {
	var v map[string]interface{}
	if _, err := toml.Decode(content, &v); err != nil {
		return &Result{Errors: []string{err.Error()}}
	}
	return &Result{Valid: true}
}

// Go validates Go syntax with the standard parser.
func Go(content, filename string) *Result {
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, filename, content, parser.AllErrors)
	if err == nil {
		return &Result{Valid: true}
	}

	var list scanner.ErrorList
	if errors.As(err, &list) {
		errs := make([]string, 0, len(list))
		for _, e := range list {
			errs = append(errs, fmt.Sprintf("Line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Msg))
		}
		return &Result{Errors: errs}
	}
	return &Result{Errors: []string{err.Error()}}
}
