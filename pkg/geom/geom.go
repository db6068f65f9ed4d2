// Package geom provides bounding-box and point math for frame-space
// tracking. Boxes use the detector convention [x1, y1, x2, y2].
package geom

import "math"

// Point is a position in frame coordinates.
type Point struct {
	X float64
	Y float64
}

// NewPoint creates a point from coordinates.
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Add returns the point translated by a displacement vector.
func (p Point) Add(v Point) Point {
	return Point{X: p.X + v.X, Y: p.Y + v.Y}
}

// Sub returns the displacement vector from other to p.
func (p Point) Sub(other Point) Point {
	return Point{X: p.X - other.X, Y: p.Y - other.Y}
}

// Box is an axis-aligned bounding box with top-left (X1, Y1) and
// bottom-right (X2, Y2) corners.
type Box struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// NewBox creates a box from corner coordinates.
func NewBox(x1, y1, x2, y2 float64) Box {
	return Box{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box.
func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

// Center returns the midpoint of the box.
func (b Box) Center() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns the area of the box. Degenerate boxes have zero area.
func (b Box) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box has no extent.
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Intersection returns the overlapping region of two boxes.
// If the boxes do not overlap the result is Empty.
func (b Box) Intersection(other Box) Box {
	return Box{
		X1: math.Max(b.X1, other.X1),
		Y1: math.Max(b.Y1, other.Y1),
		X2: math.Min(b.X2, other.X2),
		Y2: math.Min(b.Y2, other.Y2),
	}
}

// ContainmentRatio returns the fraction of other's area covered by b,
// in [0, 1]. A degenerate other yields 0.
func (b Box) ContainmentRatio(other Box) float64 {
	otherArea := other.Area()
	if otherArea == 0 {
		return 0
	}
	inter := b.Intersection(other)
	if inter.Empty() {
		return 0
	}
	return inter.Area() / otherArea
}

// Contains reports whether the point lies strictly inside the box.
func (b Box) Contains(p Point) bool {
	return p.X > b.X1 && p.X < b.X2 && p.Y > b.Y1 && p.Y < b.Y2
}
