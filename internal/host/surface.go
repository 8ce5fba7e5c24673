// Package host defines the capability surface this engine requires from a
// foreign application's UI tree, plus the call discipline around it: every
// query is a synchronous foreign call that may block or fail at any time, so
// call sites go through an explicit timeout guard, and side-effecting calls
// are serialized through a single executor per process.
//
// The engine never owns a surface. The host application may invalidate an
// element whenever the user navigates, which is why nothing here is cached
// across user-visible time gaps.
package host

import (
	"context"

	"textwarden/internal/geometry"
	"textwarden/internal/textindex"
)

// Surface is one editable element inside a host application. All ranges are
// in UTF-16 code units, the space host text APIs index by.
type Surface interface {
	// ID identifies the element for logging and per-surface serialization.
	ID() string

	// QueryBounds resolves a character range to a screen rectangle in
	// top-left-origin device coordinates. Hosts frequently answer with a
	// degenerate zero-size rect instead of failing; callers must treat
	// that as unavailable.
	QueryBounds(ctx context.Context, r textindex.Range) (geometry.Rect, error)

	// QueryChildren lists the element's child elements with their frames.
	QueryChildren(ctx context.Context) ([]Child, error)

	// QueryText reads the text at a range.
	QueryText(ctx context.Context, r textindex.Range) (string, error)

	// QueryRichPayload reads the host's rich-text representation of a
	// range as array-of-ops JSON. Most hosts answer ErrUnavailable; the
	// replacement executor then takes the plain-text path.
	QueryRichPayload(ctx context.Context, r textindex.Range) ([]byte, error)

	// QueryAttribute reads a styling attribute (background color, font)
	// over a range. Known to fail for large ranges near text end on some
	// hosts; callers shrink and retry.
	QueryAttribute(ctx context.Context, name string, r textindex.Range) (string, error)

	// TextLength returns the current document length in UTF-16 code units.
	TextLength(ctx context.Context) (int, error)

	// LineForIndex returns the zero-based line number containing the
	// given character index.
	LineForIndex(ctx context.Context, index int) (int, error)

	// BoundsForLine returns the frame of an entire line.
	BoundsForLine(ctx context.Context, line int) (geometry.Rect, error)

	// SetSelection moves the element's selection to the range.
	SetSelection(ctx context.Context, r textindex.Range) error

	// ReadSelection returns the text currently selected in the element.
	ReadSelection(ctx context.Context) (string, error)

	// InjectPaste triggers the host's paste action on the element.
	InjectPaste(ctx context.Context) error

	// ProbeLiveness returns nil while the element still exists and is the
	// focused editable surface, and an error describing why it is gone
	// after the user navigates away or the host recycles it.
	ProbeLiveness(ctx context.Context) error
}

// Child pairs a child element with its visual frame, as discovered in one
// pass over the host tree.
type Child struct {
	Surface Surface
	Frame   geometry.Rect

	// Role is the host's element role (static text, link), used by the
	// exclusion detector to spot zone kinds that only exist as children.
	Role string
}
