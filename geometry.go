package studio

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Size is a width/height pair.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.W <= 0 || s.H <= 0
}

// Scale returns the size multiplied by f.
func (s Size) Scale(f float64) Size {
	return Size{W: s.W * f, H: s.H * f}
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X, Y float64
	W, H float64
}

// RectAt returns a rectangle with origin p and size s.
func RectAt(p Point, s Size) Rect {
	return Rect{X: p.X, Y: p.Y, W: s.W, H: s.H}
}

func (r Rect) Left() float64   { return r.X }
func (r Rect) Top() float64    { return r.Y }
func (r Rect) Right() float64  { return r.X + r.W }
func (r Rect) Bottom() float64 { return r.Y + r.H }
func (r Rect) Origin() Point   { return Point{X: r.X, Y: r.Y} }
func (r Rect) Size() Size      { return Size{W: r.W, H: r.H} }

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// CenteredOn returns the rectangle moved so its center is p.
func (r Rect) CenteredOn(p Point) Rect {
	return Rect{X: p.X - r.W/2, Y: p.Y - r.H/2, W: r.W, H: r.H}
}

// Translate returns the rectangle moved by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left() && p.X <= r.Right() && p.Y >= r.Top() && p.Y <= r.Bottom()
}

// Intersects reports whether r and o overlap on both axes.
// Rectangles that only share an edge do not intersect.
func (r Rect) Intersects(o Rect) bool {
	return r.Left() < o.Right() && r.Right() > o.Left() &&
		r.Top() < o.Bottom() && r.Bottom() > o.Top()
}

// Intersection returns the overlapping area of r and o, and false when they
// do not overlap.
func (r Rect) Intersection(o Rect) (Rect, bool) {
	left := math.Max(r.Left(), o.Left())
	top := math.Max(r.Top(), o.Top())
	right := math.Min(r.Right(), o.Right())
	bottom := math.Min(r.Bottom(), o.Bottom())
	if left >= right || top >= bottom {
		return Rect{}, false
	}
	return Rect{X: left, Y: top, W: right - left, H: bottom - top}, true
}

// Within reports whether r lies completely inside bounds.
func (r Rect) Within(bounds Rect) bool {
	return r.Left() >= bounds.Left() && r.Top() >= bounds.Top() &&
		r.Right() <= bounds.Right() && r.Bottom() <= bounds.Bottom()
}

// TouchesBoundary reports whether any edge of r is at or beyond the matching
// edge of bounds.
func (r Rect) TouchesBoundary(bounds Rect) bool {
	return r.Left() <= bounds.Left() || r.Right() >= bounds.Right() ||
		r.Top() <= bounds.Top() || r.Bottom() >= bounds.Bottom()
}

// FitScale returns the uniform scale that fits intrinsic into box while
// preserving the aspect ratio: min(box.W/intrinsic.W, box.H/intrinsic.H).
func FitScale(intrinsic, box Size) (float64, error) {
	if intrinsic.Empty() {
		return 0, NewError(ErrCodeGeometryFault, "drawable has no intrinsic size (%gx%g)", intrinsic.W, intrinsic.H)
	}
	if box.W < 0 || box.H < 0 {
		return 0, NewError(ErrCodeGeometryFault, "negative target box (%gx%g)", box.W, box.H)
	}
	return math.Min(box.W/intrinsic.W, box.H/intrinsic.H), nil
}
