package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/burrowhq/burrow/internal/toon"
)

const (
	// keepTurnKeys is how many trailing turn keys stay verbatim through
	// a compaction pass: the last three user/assistant exchanges.
	keepTurnKeys = 6

	// timelineMax bounds the synthesized history timeline.
	timelineMax = 15

	// timelineStep is the truncation width of one collapsed turn.
	timelineStep = 50
)

// preserveKeys are carried through every compaction pass unchanged.
var preserveKeys = []string{"id", "goal", "decisions", "cwd", "files_hash", "open"}

// Compact runs one compaction pass over a snapshot document.
//
// ModeNever returns the document untouched. ModeSmart returns it
// untouched while the estimate sits below the threshold. Otherwise the
// pass rebuilds the document: durable keys, files*/diff* keys, and
// credential-looking keys survive as-is; the last three user/assistant
// exchanges stay verbatim (which always includes the most recent user
// turn); every older turn collapses into a bounded history timeline.
//
// The pass is a pure in-process transform. It cannot hit the network
// and fails only when even the compacted form exceeds the hard limit.
func Compact(doc toon.Document, mode Mode, limits Limits) (toon.Document, error) {
	if mode == ModeNever {
		return doc, nil
	}
	if mode == ModeSmart && toon.EstimateTokens(toon.Encode(doc)) < limits.Threshold {
		return doc, nil
	}

	out := toon.Document{}

	for _, key := range preserveKeys {
		if v, ok := doc[key]; ok {
			out[key] = v
		}
	}

	// Workspace drift context is cheap and causally important: files
	// listings, pending deltas, and diffs all ride through.
	for key, value := range doc {
		if strings.HasPrefix(key, "files") || strings.HasPrefix(key, "diff") {
			out[key] = value
		}
	}

	// Never compact away anything credential-shaped.
	for key, value := range doc {
		if value.IsList() {
			continue
		}
		lower := strings.ToLower(key)
		if strings.Contains(lower, "api") || strings.Contains(lower, "secret") || strings.Contains(lower, "key") {
			out[key] = value
		}
	}

	turnKeys := conversationTurnKeys(doc)
	recent := turnKeys
	if len(turnKeys) > keepTurnKeys {
		recent = turnKeys[len(turnKeys)-keepTurnKeys:]
	}
	recentSet := make(map[string]bool, len(recent))
	for _, key := range recent {
		recentSet[key] = true
		out[key] = doc[key]
	}

	// Steps collapsed by earlier passes stay on the timeline; a pass
	// only ever appends and trims, never restarts.
	timeline := listOf(doc["history"])
	for _, key := range turnKeys {
		if recentSet[key] {
			continue
		}
		value := doc[key]
		if value.IsList() {
			continue
		}
		timeline = append(timeline, collapseTurn(value.String()))
	}
	if len(timeline) > timelineMax {
		timeline = timeline[len(timeline)-timelineMax:]
	}
	if len(timeline) > 0 {
		out["history"] = toon.Strings(timeline...)
	}

	if v, ok := doc["last_user"]; ok {
		out["last_user"] = v
	}
	if v, ok := doc["last_assistant"]; ok {
		out["last_assistant"] = v
	}

	if tokens := toon.EstimateTokens(toon.Encode(out)); tokens > limits.HardLimit {
		return nil, fmt.Errorf(
			"%w: %d estimated tokens over the %d limit; start a new session with 'burrow session clear'",
			ErrContextTooLarge, tokens, limits.HardLimit,
		)
	}
	return out, nil
}

// conversationTurnKeys returns the sorted user/assistant turn keys.
// System and tool turns never survive a pass; the system prompt is
// rebuilt per request and tool output is only useful next to the turns
// that caused it.
func conversationTurnKeys(doc toon.Document) []string {
	var keys []string
	for key := range doc {
		if !isTurnKey(key) {
			continue
		}
		if strings.Contains(key, "_user") || strings.Contains(key, "_assistant") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// collapseTurn reduces a turn to one timeline step.
func collapseTurn(content string) string {
	runes := []rune(content)
	if len(runes) > timelineStep {
		content = string(runes[:timelineStep]) + "..."
	}
	return strings.ReplaceAll(content, "\n", " ")
}
