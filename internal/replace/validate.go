// Package replace mutates a host surface's text: a pure pre-flight validator
// followed by a linear, abort-on-first-failure pipeline that selects the
// range, writes a corrected payload through the clipboard, injects a paste,
// and restores the user's clipboard on every exit path. The host text may
// have changed at any moment since analysis, so nothing here trusts a stored
// range without re-checking it against the live surface first.
package replace

import (
	"context"
	"errors"
	"fmt"

	"textwarden/internal/host"
	"textwarden/internal/textindex"
)

// Typed replacement failures, surfaced to the caller unchanged. No partial
// mutation accompanies any of them; the executor never writes before
// validation passes.
var (
	// ErrElementInvalid means the liveness probe failed: the user left
	// the element and the stored handle is dead.
	ErrElementInvalid = errors.New("replace: element invalid")

	// ErrIndexOutOfBounds means the stored range exceeds the element's
	// current text length, in code-unit space.
	ErrIndexOutOfBounds = errors.New("replace: index out of bounds")

	// ErrTextMismatch means the text at the stored range no longer equals
	// what analysis saw.
	ErrTextMismatch = errors.New("replace: text mismatch")

	// ErrContentNotReachable means the selection landed on different
	// content than expected, typically because the target scrolled out of
	// view. Callers can prompt the user to scroll rather than retry.
	ErrContentNotReachable = errors.New("replace: content not reachable")

	// ErrInFlight rejects a second replacement against a surface that
	// already has one running. Interleaved selection and paste sequences
	// on one element corrupt each other.
	ErrInFlight = errors.New("replace: replacement already in flight")
)

// Context is the snapshot needed to validate and execute one replacement.
// Created when the user accepts a suggestion, consumed by exactly one attempt,
// then discarded; it is never reused or refreshed.
type Context struct {
	Surface host.Surface

	// Range is in grapheme clusters of CurrentText.
	Range textindex.Range

	// ErrorText is what analysis saw at Range; Suggestion replaces it.
	ErrorText  string
	Suggestion string

	// CurrentText is the text snapshot the range was computed against.
	CurrentText string

	// SnapshotID correlates this context with its analysis pass.
	SnapshotID string
}

// UTF16Range converts the stored grapheme range into code units of the
// snapshot text.
func (c Context) UTF16Range() (textindex.Range, error) {
	return textindex.GraphemesToUTF16(c.CurrentText, c.Range)
}

// Validate is the pre-flight gate, run immediately before every mutation:
// element alive, range in bounds of the element's current length, and the
// live text at the range still equal to ErrorText. Any elapsed time between
// analysis and acceptance is an opportunity for the host text to have changed
// underneath the stored range, and this is the last line of defense.
func Validate(ctx context.Context, rc Context) error {
	if err := rc.Surface.ProbeLiveness(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrElementInvalid, err)
	}

	units, err := rc.UTF16Range()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexOutOfBounds, err)
	}

	length, err := rc.Surface.TextLength(ctx)
	if err != nil {
		return err
	}
	if units.End > length {
		return fmt.Errorf("%w: range %s, text length %d", ErrIndexOutOfBounds, units, length)
	}

	live, err := rc.Surface.QueryText(ctx, units)
	if err != nil {
		return err
	}
	if live != rc.ErrorText {
		return fmt.Errorf("%w: expected %q, host has %q", ErrTextMismatch, rc.ErrorText, live)
	}
	return nil
}
