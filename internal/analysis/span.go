// Package analysis defines the value types this engine consumes from the
// external grammar/style engine. No analysis happens here; spans arrive
// fully formed over a text snapshot and live for one analysis cycle.
package analysis

import (
	"github.com/google/uuid"

	"textwarden/internal/textindex"
)

// Severity mirrors the engine's three-level error severity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Span is one grammar or style finding. Range is in grapheme-cluster offsets
// into the snapshot text; conversion to the host's code-unit space happens at
// query time, never here.
type Span struct {
	Range        textindex.Range
	Category     string
	Severity     Severity
	LintID       string
	Message      string
	Suggestions  []string
	OriginalText string
}

// Primary returns the first suggestion, the one offered on accept.
func (s Span) Primary() (string, bool) {
	if len(s.Suggestions) == 0 {
		return "", false
	}
	return s.Suggestions[0], true
}

// Snapshot is one extracted-text state with its findings. ID correlates
// resolution and replacement requests against snapshot staleness: a pending
// replacement whose snapshot ID no longer matches the current one is dropped.
type Snapshot struct {
	ID    string
	Text  string
	Spans []Span
}

// NewSnapshot creates a snapshot with a fresh correlation ID.
func NewSnapshot(text string, spans []Span) Snapshot {
	return Snapshot{ID: uuid.NewString(), Text: text, Spans: spans}
}
