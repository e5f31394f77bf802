// Package toon implements TOON (Token-Optimized Object Notation), the
// flat-text format used for every structured payload sent to the model
// and every snapshot persisted to disk. Compared to JSON it spends no
// tokens on quotes, braces, or indentation, which matters when the
// document rides along in every prompt.
//
// Format rules:
//   - one "key: value" pair per line; keys are bare identifiers
//     (alphanumeric, underscore, dot) containing no colon or comma
//   - values are never quoted; surrounding whitespace is insignificant
//   - a value containing commas is a list; elements are comma-joined
//     with no spaces
//   - values spanning multiple lines continue on lines indented with
//     two spaces (or a tab)
//   - lines starting with # in column one are comments; blank lines are
//     ignored
//   - Encode always emits keys in sorted order, so equal documents
//     serialize byte-identically
//
// The format deliberately has no escaping: a scalar containing a comma
// is indistinguishable from a list and will decode as one. Values are
// normalized at construction (see String and Strings) so that
// Decode(Encode(d)) always equals d.
package toon

import (
	"fmt"
	"sort"
	"strings"
)

// Ext is the file extension for persisted TOON documents.
const Ext = ".toon"

// MalformedError reports an undecodable document. Snapshot loaders
// recover from it by treating the snapshot as absent; explicit decode
// callers surface it.
type MalformedError struct {
	// Line is the 1-based line number of the offending input line.
	Line int

	// Reason describes what made the line undecodable.
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed document: line %d: %s", e.Line, e.Reason)
}

// Value is a scalar string or a list of scalar strings. The zero Value
// is the empty scalar.
type Value struct {
	scalar string
	list   []string
}

// String returns a Value for the given content, normalized to what the
// format can represent: trailing whitespace and blank lines are
// dropped, and leading whitespace on the first line is trimmed. A
// single-line value containing commas becomes a list, because that is
// what the wire format says it is.
func String(s string) Value {
	return valueFromWire(normalizeScalar(s))
}

// Strings returns a list Value. Elements are normalized the way Decode
// would produce them: commas inside elements split them, whitespace is
// trimmed, newlines flatten to spaces, and empty elements are dropped.
// Fewer than two surviving elements collapse to a scalar, because the
// wire format marks lists by comma presence alone.
func Strings(elems ...string) Value {
	var flat []string
	for _, e := range elems {
		e = strings.ReplaceAll(e, "\n", " ")
		for _, part := range strings.Split(e, ",") {
			if part = strings.TrimSpace(part); part != "" {
				flat = append(flat, part)
			}
		}
	}
	switch len(flat) {
	case 0:
		return Value{}
	case 1:
		return Value{scalar: flat[0]}
	}
	return Value{list: flat}
}

// IsList reports whether the value is a list.
func (v Value) IsList() bool {
	return v.list != nil
}

// List returns the list elements, or nil for a scalar.
func (v Value) List() []string {
	return v.list
}

// String returns the wire form of the value: the scalar itself, or the
// comma-joined list with no spaces.
func (v Value) String() string {
	if v.list != nil {
		return strings.Join(v.list, ",")
	}
	return v.scalar
}

// Text returns the value as prose: the scalar itself, or the list
// joined with ", ". Use this when rebuilding message content that may
// have been split on commas by the grammar.
func (v Value) Text() string {
	if v.list != nil {
		return strings.Join(v.list, ", ")
	}
	return v.scalar
}

// Equal reports whether two values hold the same content.
func (v Value) Equal(other Value) bool {
	if v.IsList() != other.IsList() {
		return false
	}
	if !v.IsList() {
		return v.scalar == other.scalar
	}
	if len(v.list) != len(other.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != other.list[i] {
			return false
		}
	}
	return true
}

// Document is a mapping from key to Value. Construction order is
// irrelevant: Encode always emits sorted keys.
type Document map[string]Value

// Keys returns the document's keys in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether two documents hold the same content.
func (d Document) Equal(other Document) bool {
	if len(d) != len(other) {
		return false
	}
	for k, v := range d {
		ov, ok := other[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// Encode serializes the document. Keys are emitted in sorted order, so
// two documents with identical content always produce byte-identical
// output regardless of how they were built. Values containing newlines
// are emitted as two-space-indented continuation lines. Every line ends
// with a newline.
func Encode(d Document) string {
	var b strings.Builder
	for _, key := range d.Keys() {
		wire := d[key].String()
		if !strings.Contains(wire, "\n") {
			b.WriteString(key)
			b.WriteString(": ")
			b.WriteString(wire)
			b.WriteByte('\n')
			continue
		}
		for i, part := range strings.Split(wire, "\n") {
			if i == 0 {
				b.WriteString(key)
				b.WriteString(": ")
			} else {
				b.WriteString("  ")
			}
			b.WriteString(part)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Decode parses TOON text. A non-continuation line without a colon is a
// hard error, as is a duplicate key; duplicates are never resolved by
// last-write-wins, because a snapshot that disagrees with itself cannot
// be trusted. A value holding a comma (and no newline) decodes as a
// list.
func Decode(text string) (Document, error) {
	doc := Document{}
	lines := strings.Split(text, "\n")

	i := 0
	for i < len(lines) {
		line := strings.TrimRight(lines[i], " \t")
		if skippable(line) {
			i++
			continue
		}
		if isContinuation(line) {
			return nil, &MalformedError{Line: i + 1, Reason: fmt.Sprintf("continuation line %q without a key", line)}
		}

		colon := strings.Index(line, ":")
		if colon < 0 {
			return nil, &MalformedError{Line: i + 1, Reason: fmt.Sprintf("missing colon in %q", line)}
		}
		key := strings.TrimSpace(line[:colon])
		if key == "" {
			return nil, &MalformedError{Line: i + 1, Reason: fmt.Sprintf("empty key in %q", line)}
		}
		if _, dup := doc[key]; dup {
			return nil, &MalformedError{Line: i + 1, Reason: fmt.Sprintf("duplicate key %q", key)}
		}
		value := strings.TrimSpace(line[colon+1:])

		// Consume continuation lines. Blank and comment lines inside a
		// continuation run are skipped, not terminators.
		i++
		for i < len(lines) {
			next := strings.TrimRight(lines[i], " \t")
			if skippable(next) {
				i++
				continue
			}
			if !isContinuation(next) {
				break
			}
			value += "\n" + continuationContent(next)
			i++
		}

		doc[key] = valueFromWire(value)
	}

	return doc, nil
}

// skippable reports whether a line carries no data: blank, or a comment
// starting with # in column one. Indented # lines are continuation
// content, not comments.
func skippable(line string) bool {
	return line == "" || strings.HasPrefix(line, "#")
}

func isContinuation(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

// continuationContent strips the two-space or tab indentation marker,
// preserving any deeper indentation that belongs to the value.
func continuationContent(line string) string {
	if strings.HasPrefix(line, "  ") {
		return line[2:]
	}
	return line[1:]
}

// valueFromWire turns a raw value string into a Value, applying the
// comma-marks-a-list rule. Multi-line values are always scalars.
func valueFromWire(raw string) Value {
	if !strings.Contains(raw, ",") || strings.Contains(raw, "\n") {
		return Value{scalar: raw}
	}
	var elems []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			elems = append(elems, part)
		}
	}
	switch len(elems) {
	case 0:
		return Value{}
	case 1:
		return Value{scalar: elems[0]}
	}
	return Value{list: elems}
}

// normalizeScalar reduces content to what the wire format can carry:
// each line loses trailing whitespace, blank lines vanish, and the
// first line loses leading whitespace (the parser trims it after the
// colon). Deeper indentation on later lines survives, offset by the
// continuation marker.
func normalizeScalar(s string) string {
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == 0 {
		return ""
	}
	kept[0] = strings.TrimLeft(kept[0], " \t")
	return strings.Join(kept, "\n")
}

// EstimateTokens approximates the model token count of TOON text with
// a local heuristic: one token per whitespace-separated field plus one
// per four bytes. Deliberately not a real tokenizer; sizing must never
// cost a network round-trip, and the error only affects when compaction
// fires, never correctness.
func EstimateTokens(text string) int {
	return len(strings.Fields(text)) + len(text)/4
}
