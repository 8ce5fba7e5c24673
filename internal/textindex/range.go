// Package textindex converts between the grapheme-cluster offsets reported by
// the analysis engine and the UTF-16 code-unit offsets expected by host text
// APIs. A mismatch of even one unit silently selects the wrong character, so
// all conversions fail closed on anything they cannot map exactly.
package textindex

import "fmt"

// Range is a half-open [Start, End) interval. The unit (grapheme clusters or
// UTF-16 code units) depends on which conversion produced it; the two are
// never mixed in one range.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewRange creates a range from start and end offsets.
func NewRange(start, end int) Range {
	return Range{Start: start, End: end}
}

// Len returns the number of units covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// IsValid reports whether the range is well-formed (non-negative, ordered).
func (r Range) IsValid() bool {
	return r.Start >= 0 && r.End >= r.Start
}

// Contains reports whether the offset falls inside the range.
func (r Range) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

// Overlaps reports whether the two ranges share at least one unit.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Adjacent reports whether other begins exactly where r ends or vice versa.
func (r Range) Adjacent(other Range) bool {
	return r.End == other.Start || other.End == r.Start
}

// Union returns the smallest range covering both r and other.
func (r Range) Union(other Range) Range {
	return Range{Start: min(r.Start, other.Start), End: max(r.End, other.End)}
}

// Shift returns the range translated by delta units.
func (r Range) Shift(delta int) Range {
	return Range{Start: r.Start + delta, End: r.End + delta}
}

// String formats the range for logs.
func (r Range) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}
