// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package geometry computes where a source page lands on an output page.
// All coordinates are PDF user space: points, origin at the lower left,
// y growing upwards.
package geometry

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle given by its lower-left and upper-right
// corners.
type Rect struct {
	LLX, LLY, URX, URY float64
}

// RectWH returns the rectangle with lower-left corner (x, y) and the given size.
func RectWH(x, y, w, h float64) Rect {
	return Rect{LLX: x, LLY: y, URX: x + w, URY: y + h}
}

func (r Rect) Width() float64  { return r.URX - r.LLX }
func (r Rect) Height() float64 { return r.URY - r.LLY }

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return !(r.Width() > 0) || !(r.Height() > 0)
}

// Inset shrinks r by m on every side.
func (r Rect) Inset(m float64) Rect {
	return Rect{LLX: r.LLX + m, LLY: r.LLY + m, URX: r.URX - m, URY: r.URY - m}
}

// Intersect returns the overlap of r and o. The result is Empty when they
// do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		LLX: math.Max(r.LLX, o.LLX),
		LLY: math.Max(r.LLY, o.LLY),
		URX: math.Min(r.URX, o.URX),
		URY: math.Min(r.URY, o.URY),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

// Contains reports whether o lies within r, allowing eps of slack.
func (r Rect) Contains(o Rect, eps float64) bool {
	return o.LLX >= r.LLX-eps && o.LLY >= r.LLY-eps && o.URX <= r.URX+eps && o.URY <= r.URY+eps
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", r.LLX, r.LLY, r.URX, r.URY)
}

// Matrix is a PDF transformation matrix [a b c d e f]. A point (x, y) maps
// to (a*x + c*y + e, b*x + d*y + f).
type Matrix struct {
	A, B, C, D, E, F float64
}

// Identity is the matrix that leaves every point in place.
var Identity = Matrix{A: 1, D: 1}

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix {
	return Matrix{A: 1, D: 1, E: tx, F: ty}
}

// Scale returns a scaling by (sx, sy) about the origin.
func Scale(sx, sy float64) Matrix {
	return Matrix{A: sx, D: sy}
}

// Rotation returns the clockwise rotation by deg (a multiple of 90) that
// maps the box [0,w]x[0,h] onto [0,w']x[0,h'] where (w', h') is (h, w) for
// quarter turns and (w, h) otherwise.
func Rotation(deg int, w, h float64) Matrix {
	switch normalize(deg) {
	case 90:
		return Matrix{A: 0, B: -1, C: 1, D: 0, E: 0, F: w}
	case 180:
		return Matrix{A: -1, B: 0, C: 0, D: -1, E: w, F: h}
	case 270:
		return Matrix{A: 0, B: 1, C: -1, D: 0, E: h, F: 0}
	}
	return Identity
}

// Then returns the matrix that applies m first and n second.
func (m Matrix) Then(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.C,
		B: m.A*n.B + m.B*n.D,
		C: m.C*n.A + m.D*n.C,
		D: m.C*n.B + m.D*n.D,
		E: m.E*n.A + m.F*n.C + n.E,
		F: m.E*n.B + m.F*n.D + n.F,
	}
}

// Apply maps the point (x, y).
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m.A*x + m.C*y + m.E, m.B*x + m.D*y + m.F
}

// TransformRect returns the bounding box of r after transformation.
func (m Matrix) TransformRect(r Rect) Rect {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.Apply(r.LLX, r.LLY)
	xs[1], ys[1] = m.Apply(r.URX, r.LLY)
	xs[2], ys[2] = m.Apply(r.LLX, r.URY)
	xs[3], ys[3] = m.Apply(r.URX, r.URY)
	out := Rect{LLX: xs[0], LLY: ys[0], URX: xs[0], URY: ys[0]}
	for i := 1; i < 4; i++ {
		out.LLX = math.Min(out.LLX, xs[i])
		out.LLY = math.Min(out.LLY, ys[i])
		out.URX = math.Max(out.URX, xs[i])
		out.URY = math.Max(out.URY, ys[i])
	}
	return out
}

func normalize(deg int) int {
	r := deg % 360
	if r < 0 {
		r += 360
	}
	return r
}

func quarterTurn(deg int) bool {
	r := normalize(deg)
	return r == 90 || r == 270
}
