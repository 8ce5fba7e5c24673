// Package geometry provides the rectangle and point types shared by position
// resolution and the overlay renderer, plus conversion between the host's
// coordinate spaces.
package geometry

import "fmt"

// Point is a position in a 2D coordinate space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is the width and height of a rectangle.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Rect is an axis-aligned rectangle. Origin is the top-left corner unless the
// rect has been converted to a bottom-left-origin space with FlipVertical.
type Rect struct {
	Origin Point `json:"origin"`
	Size   Size  `json:"size"`
}

// NewRect creates a rectangle from origin and size components.
func NewRect(x, y, width, height float64) Rect {
	return Rect{Origin: Point{X: x, Y: y}, Size: Size{Width: width, Height: height}}
}

// IsZero reports whether the rectangle has no area. Several host frameworks
// answer range queries with a degenerate zero-size rect instead of an error,
// so callers treat a zero rect the same as an unavailable result.
func (r Rect) IsZero() bool {
	return r.Size.Width <= 0 || r.Size.Height <= 0
}

// MaxX returns the right edge of the rectangle.
func (r Rect) MaxX() float64 { return r.Origin.X + r.Size.Width }

// MaxY returns the bottom edge of the rectangle.
func (r Rect) MaxY() float64 { return r.Origin.Y + r.Size.Height }

// Union returns the smallest rectangle containing both r and other. A zero
// rect is treated as the identity so unions can be folded over query results.
func (r Rect) Union(other Rect) Rect {
	if r.IsZero() {
		return other
	}
	if other.IsZero() {
		return r
	}
	minX := min(r.Origin.X, other.Origin.X)
	minY := min(r.Origin.Y, other.Origin.Y)
	maxX := max(r.MaxX(), other.MaxX())
	maxY := max(r.MaxY(), other.MaxY())
	return NewRect(minX, minY, maxX-minX, maxY-minY)
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Origin.X && p.X < r.MaxX() && p.Y >= r.Origin.Y && p.Y < r.MaxY()
}

// Offset returns the rectangle translated by dx, dy.
func (r Rect) Offset(dx, dy float64) Rect {
	return NewRect(r.Origin.X+dx, r.Origin.Y+dy, r.Size.Width, r.Size.Height)
}

// String formats the rectangle for logs.
func (r Rect) String() string {
	return fmt.Sprintf("(%.1f,%.1f %.1fx%.1f)", r.Origin.X, r.Origin.Y, r.Size.Width, r.Size.Height)
}

// FlipVertical converts a rectangle between a top-left-origin device space and
// a bottom-left-origin presentation space. The transform is its own inverse
// for a given display height.
func FlipVertical(r Rect, displayHeight float64) Rect {
	return Rect{
		Origin: Point{X: r.Origin.X, Y: displayHeight - r.Origin.Y - r.Size.Height},
		Size:   r.Size,
	}
}
