// Package session tracks one conversation per working directory: its
// turns, its size, and a fingerprint of the files around it. Sessions
// persist as TOON snapshots and are bounded by a compaction pass that
// trades old history for a timeline summary while keeping the recent
// exchanges verbatim.
package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/burrowhq/burrow/internal/toon"
)

// State is the lifecycle of a session's context tracking.
type State int

const (
	// StateFresh means no turn has been recorded yet.
	StateFresh State = iota

	// StateTracking means turns are accumulating under the threshold.
	StateTracking

	// StateCompressing means a compaction pass is running. Transient:
	// RecordTurn enters it synchronously and returns in StateTracking.
	StateCompressing
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateTracking:
		return "tracking"
	case StateCompressing:
		return "compressing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode selects when compaction runs.
type Mode string

const (
	// ModeAlways compacts on every pass regardless of size.
	ModeAlways Mode = "always"

	// ModeSmart compacts only once the estimate crosses the threshold.
	ModeSmart Mode = "smart"

	// ModeNever leaves history untouched.
	ModeNever Mode = "never"
)

// ParseMode validates a compaction mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAlways, ModeSmart, ModeNever:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid compaction mode %q (want always, smart, or never)", s)
}

// Limits are the tunable size bounds for compaction. The token numbers
// are heuristic estimates, never a real tokenizer count; getting them
// wrong costs efficiency, not correctness.
type Limits struct {
	// Threshold is the estimate at which smart compaction fires.
	Threshold int

	// HardLimit is the estimate above which a compacted session is an
	// error.
	HardLimit int
}

// DefaultLimits returns the stock threshold and hard limit.
func DefaultLimits() Limits {
	return Limits{Threshold: 12000, HardLimit: 20000}
}

// Turn is one message in the conversation.
type Turn struct {
	// Role is user, assistant, or tool.
	Role string

	// Content is the message text.
	Content string
}

// Session is the conversation state for one working directory.
type Session struct {
	// ID identifies the session across snapshots.
	ID string

	// Cwd is the working directory the session belongs to.
	Cwd string

	// Goal, Decisions, and Open are the durable context keys that
	// survive every compaction pass.
	Goal      string
	Decisions []string
	Open      string

	// History is the compacted timeline of collapsed older turns.
	History []string

	// Turns is the live conversation, oldest first.
	Turns []Turn

	// FilesHash fingerprints the workspace file listing.
	FilesHash string

	// Files is the sorted relative listing behind FilesHash, kept so a
	// later resume can name what changed instead of re-sending the
	// tree.
	Files []string

	// FilesDelta holds pending "+added"/"-removed" drift entries.
	FilesDelta []string

	// Extra carries snapshot keys this package does not interpret, so
	// decoding and re-encoding a snapshot loses nothing.
	Extra toon.Document

	state    State
	estimate int
	mode     Mode
	limits   Limits
}

// SessionOption configures a new session.
type SessionOption func(*Session)

// WithMode sets the compaction mode.
func WithMode(mode Mode) SessionOption {
	return func(s *Session) {
		s.mode = mode
	}
}

// WithLimits sets the compaction size bounds.
func WithLimits(limits Limits) SessionOption {
	return func(s *Session) {
		s.limits = limits
	}
}

// New creates a fresh session for a working directory.
func New(cwd string, opts ...SessionOption) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		Cwd:    cwd,
		Extra:  toon.Document{},
		state:  StateFresh,
		mode:   ModeSmart,
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Mode returns the compaction mode.
func (s *Session) Mode() Mode {
	return s.mode
}

// Estimate returns the cumulative token estimate for the encoded
// session.
func (s *Session) Estimate() int {
	return s.estimate
}

// RecordTurn appends a turn and refreshes the size estimate. A turn
// that pushes the estimate over the threshold triggers exactly one
// synchronous compaction pass before returning; the session is back in
// StateTracking when RecordTurn returns.
func (s *Session) RecordTurn(role, content string) {
	s.Turns = append(s.Turns, Turn{Role: role, Content: content})
	if s.state == StateFresh {
		s.state = StateTracking
	}
	s.refreshEstimate()

	if s.estimate > s.limits.Threshold && s.mode != ModeNever {
		s.state = StateCompressing
		// An oversized pass result is reported at save time; the
		// session keeps tracking either way.
		_ = s.Compact() //nolint:errcheck // surfaced on Save
		s.state = StateTracking
	}
}

// Compact runs one compaction pass over the live session according to
// its mode. The pass rewrites Turns, History, and Extra in place.
func (s *Session) Compact() error {
	doc, err := Compact(s.Document(), s.mode, s.limits)
	if err != nil {
		return err
	}
	s.applyDocument(doc)
	s.refreshEstimate()
	return nil
}

func (s *Session) refreshEstimate() {
	s.estimate = toon.EstimateTokens(toon.Encode(s.Document()))
}

// Document flattens the session into its snapshot form. Turn keys are
// turn_NNN_<role>, numbered by current position; all other fields map
// to their fixed keys. Extra keys pass through untouched.
func (s *Session) Document() toon.Document {
	doc := toon.Document{}
	for k, v := range s.Extra {
		doc[k] = v
	}

	setIfPresent(doc, "id", s.ID)
	setIfPresent(doc, "cwd", s.Cwd)
	setIfPresent(doc, "goal", s.Goal)
	setIfPresent(doc, "open", s.Open)
	setIfPresent(doc, "files_hash", s.FilesHash)
	if len(s.Decisions) > 0 {
		doc["decisions"] = toon.Strings(s.Decisions...)
	}
	if len(s.History) > 0 {
		doc["history"] = toon.Strings(s.History...)
	}
	if len(s.Files) > 0 {
		doc["files"] = toon.Strings(s.Files...)
	}
	if len(s.FilesDelta) > 0 {
		doc["files_delta"] = toon.Strings(s.FilesDelta...)
	}

	for i, turn := range s.Turns {
		doc[fmt.Sprintf("turn_%03d_%s", i, turn.Role)] = toon.String(turn.Content)
	}
	return doc
}

// ContextDocument is the snapshot form without the live turns: the
// durable keys a new conversation carries as background context.
func (s *Session) ContextDocument() toon.Document {
	doc := s.Document()
	for key := range doc {
		if isTurnKey(key) {
			delete(doc, key)
		}
	}
	return doc
}

// FromDocument rebuilds a session from its snapshot form. Turn keys are
// replayed in sorted order; unknown keys land in Extra.
func FromDocument(doc toon.Document, opts ...SessionOption) *Session {
	s := New("", opts...)
	s.applyDocument(doc)
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if len(s.Turns) > 0 || len(s.History) > 0 {
		s.state = StateTracking
	}
	s.refreshEstimate()
	return s
}

// applyDocument resets the session's content fields from a snapshot
// document, leaving mode, limits, and state alone.
func (s *Session) applyDocument(doc toon.Document) {
	s.Goal = ""
	s.Decisions = nil
	s.Open = ""
	s.History = nil
	s.Turns = nil
	s.FilesHash = ""
	s.Files = nil
	s.FilesDelta = nil
	s.Extra = toon.Document{}

	var turnKeys []string
	for key, value := range doc {
		switch key {
		case "id":
			s.ID = value.Text()
		case "cwd":
			s.Cwd = value.Text()
		case "goal":
			s.Goal = value.Text()
		case "open":
			s.Open = value.Text()
		case "files_hash":
			s.FilesHash = value.Text()
		case "decisions":
			s.Decisions = listOf(value)
		case "history":
			s.History = listOf(value)
		case "files":
			s.Files = listOf(value)
		case "files_delta":
			s.FilesDelta = listOf(value)
		default:
			if isTurnKey(key) {
				turnKeys = append(turnKeys, key)
				continue
			}
			s.Extra[key] = value
		}
	}

	sort.Strings(turnKeys)
	for _, key := range turnKeys {
		parts := strings.SplitN(key, "_", 3)
		// Comma-split content re-joins as prose; the grammar cannot
		// tell a comma-bearing sentence from a list.
		s.Turns = append(s.Turns, Turn{Role: parts[2], Content: doc[key].Text()})
	}
}

// isTurnKey matches turn_NNN_<role> snapshot keys.
func isTurnKey(key string) bool {
	if !strings.HasPrefix(key, "turn_") {
		return false
	}
	return len(strings.SplitN(key, "_", 3)) == 3
}

func setIfPresent(doc toon.Document, key, value string) {
	if value != "" {
		doc[key] = toon.String(value)
	}
}

// listOf returns the value as a slice, treating a lone scalar as a
// one-element list.
func listOf(v toon.Value) []string {
	if v.IsList() {
		return v.List()
	}
	if v.String() == "" {
		return nil
	}
	return []string{v.String()}
}
