// Package reconcile extracts structured signals from raw session log records
// and attributes tool calls to individual conversation turns.
//
// A log record is one loosely structured text blob describing the server's
// processing of a single turn. The platform's logger renders Python-style
// dicts, so values are single-quoted; extraction is regex-based and the
// dialog-state list is quote-normalized before decoding.
package reconcile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/life4/genesis/slices"
)

var (
	dialogStatePattern = regexp.MustCompile(`'dialog_state': (\[[^\]]*\])`)
	toolNamePattern    = regexp.MustCompile(`'name':\s*'([^']+)'`)
)

const (
	// noCallSentinel is what the platform logs when an LLM step produced no
	// tool call at all.
	noCallSentinel = "0"
	// assistantMarker tags internal assistant hand-offs that are not real
	// external tools.
	assistantMarker = "Assistant"
)

// ParseLogRecord extracts the declared dialog states and the distinct tool
// calls from one raw log record.
//
// Dialog states: the single 'dialog_state' field, defaulting to an empty
// list when absent. A field that is present but cannot be decoded after
// quote normalization is a hard error.
//
// Tool calls: every 'name' field in order of first appearance, excluding
// duplicates within this record, the "0" sentinel, and internal assistant
// self-references. Ordering is only meaningful within a single record.
func ParseLogRecord(record string) (dialogStates []string, toolCalls []string, err error) {
	rawStates := "[]"
	if m := dialogStatePattern.FindStringSubmatch(record); m != nil {
		rawStates = m[1]
	}

	normalized := strings.ReplaceAll(rawStates, "'", `"`)
	dialogStates = make([]string, 0)
	if err := sonic.UnmarshalString(normalized, &dialogStates); err != nil {
		return nil, nil, fmt.Errorf("failed to decode dialog state %s: %w", rawStates, err)
	}

	toolCalls = make([]string, 0)
	for _, m := range toolNamePattern.FindAllStringSubmatch(record, -1) {
		name := m[1]
		if name == noCallSentinel || strings.Contains(name, assistantMarker) {
			continue
		}
		if slices.Contains(toolCalls, name) {
			continue
		}
		toolCalls = append(toolCalls, name)
	}

	return dialogStates, toolCalls, nil
}

// History is a session-scoped, insertion-ordered record of every tool call
// attributed so far. It only ever grows. Owned by exactly one session, so it
// needs no locking.
type History struct {
	calls []string
}

func NewHistory() *History {
	return &History{calls: make([]string, 0)}
}

// DiffAndRecord returns the suffix of observed that is genuinely new since
// the last call, and appends that suffix to the history.
//
// The server logs tool calls cumulatively, so the history is expected to be a
// positional prefix of observed: both are walked in lock-step while elements
// match, and everything past the point where they stop matching is new.
// Duplicates in the new suffix are kept verbatim.
//
// If the server reordered calls across turns, the walk stops at the first
// mismatch and already-seen calls can be reintroduced. Server-side ordering
// is assumed stable, so this is accepted rather than detected.
func (h *History) DiffAndRecord(observed []string) []string {
	i := 0
	for i < len(h.calls) && i < len(observed) && h.calls[i] == observed[i] {
		i++
	}

	fresh := make([]string, len(observed)-i)
	copy(fresh, observed[i:])

	h.calls = append(h.calls, fresh...)
	return fresh
}

// Calls returns a copy of the full history in insertion order.
func (h *History) Calls() []string {
	out := make([]string, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *History) Len() int {
	return len(h.calls)
}
