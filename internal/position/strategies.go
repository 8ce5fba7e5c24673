package position

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"textwarden/internal/geometry"
	"textwarden/internal/host"
	"textwarden/internal/textindex"
)

// Strategy names, also the vocabulary of config strategy_order lists.
const (
	StrategyDirectQuery    = "direct_query"
	StrategyChildTraversal = "child_traversal"
	StrategyMarkerAnchor   = "marker_anchor"
	StrategyLineCursor     = "line_cursor"
	StrategyFontEstimate   = "font_estimate"
)

// DirectQuery asks the root element for the range's bounds. The straight
// path, and the one most host frameworks break: many answer with a zero-size
// rect, which counts as a decline here.
type DirectQuery struct{}

func (*DirectQuery) Name() string { return StrategyDirectQuery }

func (*DirectQuery) Resolve(ctx context.Context, req Request) (Bounds, error) {
	rect, err := req.Surface.QueryBounds(ctx, req.Range)
	if err != nil {
		return Bounds{}, err
	}
	if rect.IsZero() {
		return Bounds{}, fmt.Errorf("direct query: degenerate rect: %w", host.ErrUnavailable)
	}
	return Bounds{Rect: rect, Confidence: 1.0}, nil
}

// ChildTraversal builds the text-part map and re-issues the bounds query
// against the owning children. A range spanning several parts (a paragraph
// break, for instance) resolves to the union rect of every overlapping
// part's answer.
type ChildTraversal struct{}

func (*ChildTraversal) Name() string { return StrategyChildTraversal }

func (*ChildTraversal) Resolve(ctx context.Context, req Request) (Bounds, error) {
	parts, err := BuildTextParts(ctx, req.Surface)
	if err != nil {
		return Bounds{}, err
	}
	owners := overlapping(parts, req.Range)
	if len(owners) == 0 {
		return Bounds{}, fmt.Errorf("child traversal: no part owns %s: %w", req.Range, host.ErrUnavailable)
	}

	var union geometry.Rect
	for _, part := range owners {
		local := textindex.NewRange(
			max(req.Range.Start, part.LocalRange.Start),
			min(req.Range.End, part.LocalRange.End),
		).Shift(-part.LocalRange.Start)

		rect, err := part.Surface.QueryBounds(ctx, local)
		if err != nil {
			return Bounds{}, err
		}
		if rect.IsZero() {
			return Bounds{}, fmt.Errorf("child traversal: degenerate rect from part: %w", host.ErrUnavailable)
		}
		union = union.Union(rect)
	}
	return Bounds{Rect: union, Confidence: 0.9}, nil
}

// MarkerAnchor resolves the range endpoints individually and spans them.
// Some hosts only answer position-marker style queries for single characters
// relative to an anchor, never for arbitrary ranges.
type MarkerAnchor struct{}

func (*MarkerAnchor) Name() string { return StrategyMarkerAnchor }

func (*MarkerAnchor) Resolve(ctx context.Context, req Request) (Bounds, error) {
	if req.Range.Len() == 0 {
		return Bounds{}, fmt.Errorf("marker anchor: empty range: %w", host.ErrUnavailable)
	}
	first, err := req.Surface.QueryBounds(ctx, textindex.NewRange(req.Range.Start, req.Range.Start+1))
	if err != nil {
		return Bounds{}, err
	}
	last, err := req.Surface.QueryBounds(ctx, textindex.NewRange(req.Range.End-1, req.Range.End))
	if err != nil {
		return Bounds{}, err
	}
	if first.IsZero() || last.IsZero() {
		return Bounds{}, fmt.Errorf("marker anchor: degenerate endpoint rect: %w", host.ErrUnavailable)
	}
	return Bounds{Rect: first.Union(last), Confidence: 0.7}, nil
}

// LineCursor asks the host only for line geometry and estimates the
// horizontal extent from font metrics. Hosts that cannot resolve character
// ranges usually still report line frames.
type LineCursor struct{}

func (*LineCursor) Name() string { return StrategyLineCursor }

func (*LineCursor) Resolve(ctx context.Context, req Request) (Bounds, error) {
	line, err := req.Surface.LineForIndex(ctx, req.Range.Start)
	if err != nil {
		return Bounds{}, err
	}
	lineRect, err := req.Surface.BoundsForLine(ctx, line)
	if err != nil {
		return Bounds{}, err
	}
	if lineRect.IsZero() {
		return Bounds{}, fmt.Errorf("line cursor: degenerate line rect: %w", host.ErrUnavailable)
	}

	col := columnOf(req.Text, req.Range.Start)
	charW := req.Profile.DefaultFontSize * req.Profile.CharWidthRatio
	return Bounds{
		Rect: geometry.NewRect(
			lineRect.Origin.X+float64(col)*charW,
			lineRect.Origin.Y,
			float64(req.Range.Len())*charW,
			lineRect.Size.Height,
		),
		Confidence: 0.5,
	}, nil
}

// FontEstimate is the last resort: no tree query at all, just the element
// frame plus the per-host font table. Wrong for proportional fonts and
// wrapped lines, but a misplaced underline still beats none.
type FontEstimate struct{}

func (*FontEstimate) Name() string { return StrategyFontEstimate }

func (*FontEstimate) Resolve(_ context.Context, req Request) (Bounds, error) {
	if req.Frame.IsZero() {
		return Bounds{}, fmt.Errorf("font estimate: no element frame: %w", host.ErrUnavailable)
	}
	line := lineOf(req.Text, req.Range.Start)
	col := columnOf(req.Text, req.Range.Start)

	size := req.Profile.DefaultFontSize
	charW := size * req.Profile.CharWidthRatio
	lineH := size * req.Profile.LineHeightRatio
	return Bounds{
		Rect: geometry.NewRect(
			req.Frame.Origin.X+float64(col)*charW,
			req.Frame.Origin.Y+float64(line)*lineH,
			float64(req.Range.Len())*charW,
			lineH,
		),
		Confidence: 0.2,
	}, nil
}

// lineOf counts newlines before a UTF-16 offset.
func lineOf(text string, unit int) int {
	return strings.Count(prefixByUnits(text, unit), "\n")
}

// columnOf returns the UTF-16 column of an offset within its line.
func columnOf(text string, unit int) int {
	prefix := prefixByUnits(text, unit)
	if i := strings.LastIndexByte(prefix, '\n'); i >= 0 {
		return textindex.UTF16Length(prefix[i+1:])
	}
	return textindex.UTF16Length(prefix)
}

func prefixByUnits(text string, unit int) string {
	units := utf16.Encode([]rune(text))
	if unit > len(units) {
		unit = len(units)
	}
	return string(utf16.Decode(units[:unit]))
}
