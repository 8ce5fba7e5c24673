package position

import (
	"context"
	"fmt"

	"textwarden/internal/geometry"
	"textwarden/internal/host"
	"textwarden/internal/textindex"
)

// TextPart maps a sub-range of the full extracted text onto the child element
// that renders it. Chromium-derived hosts answer range queries from children
// even when the root element answers with a zero rect, so parts are the
// backbone of the child-traversal strategy.
type TextPart struct {
	LocalRange textindex.Range
	Frame      geometry.Rect
	Surface    host.Surface
}

// BuildTextParts walks the element's children once, assigning each text-
// bearing child its slice of the concatenated document. Children are assumed
// to appear in document order, which holds for every tree this engine reads.
func BuildTextParts(ctx context.Context, surface host.Surface) ([]TextPart, error) {
	children, err := surface.QueryChildren(ctx)
	if err != nil {
		return nil, fmt.Errorf("build text parts: %w", err)
	}

	parts := make([]TextPart, 0, len(children))
	offset := 0
	for _, child := range children {
		length, err := child.Surface.TextLength(ctx)
		if err != nil {
			return nil, fmt.Errorf("build text parts: %w", err)
		}
		if length == 0 {
			continue
		}
		parts = append(parts, TextPart{
			LocalRange: textindex.NewRange(offset, offset+length),
			Frame:      child.Frame,
			Surface:    child.Surface,
		})
		offset += length
	}
	return parts, nil
}

// overlapping returns the parts intersecting r.
func overlapping(parts []TextPart, r textindex.Range) []TextPart {
	var out []TextPart
	for _, p := range parts {
		if p.LocalRange.Overlaps(r) {
			out = append(out, p)
		}
	}
	return out
}
