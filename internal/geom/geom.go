// Package geom provides the 3D primitives used by the drawing engine:
// - float32 vectors and axis-aligned bounding boxes
// - 4x4 affine transforms (row-major)
// - rays with box, triangle, segment and point intersection tests
//
// Everything is float32 to match the packed vertex buffers; scalar math
// goes through chewxy/math32 rather than float64 round-trips.
package geom

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Vec3 represents a 3D point or vector.
type Vec3 struct {
	X float32
	Y float32
	Z float32
}

func V3(x, y, z float32) Vec3 { return Vec3{X: x, Y: y, Z: z} }

func (v Vec3) Add(u Vec3) Vec3       { return Vec3{v.X + u.X, v.Y + u.Y, v.Z + u.Z} }
func (v Vec3) Sub(u Vec3) Vec3       { return Vec3{v.X - u.X, v.Y - u.Y, v.Z - u.Z} }
func (v Vec3) Scale(s float32) Vec3  { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(u Vec3) float32    { return v.X*u.X + v.Y*u.Y + v.Z*u.Z }
func (v Vec3) Length() float32       { return math32.Sqrt(v.Dot(v)) }
func (v Vec3) DistTo(u Vec3) float32 { return v.Sub(u).Length() }

func (v Vec3) Cross(u Vec3) Vec3 {
	return Vec3{
		X: v.Y*u.Z - v.Z*u.Y,
		Y: v.Z*u.X - v.X*u.Z,
		Z: v.X*u.Y - v.Y*u.X,
	}
}

// Normalized returns the unit vector pointing in v's direction. The zero
// vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Box3 represents an axis-aligned bounding box. The canonical empty box
// has Min components at +Inf and Max components at -Inf, so expanding an
// empty box by any point yields that point.
type Box3 struct {
	Min Vec3
	Max Vec3
}

// EmptyBox3 returns the canonical empty box.
func EmptyBox3() Box3 {
	inf := math32.Inf(1)
	return Box3{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

func (b Box3) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

func (b Box3) ExpandByPoint(p Vec3) Box3 {
	b.Min.X = math32.Min(b.Min.X, p.X)
	b.Min.Y = math32.Min(b.Min.Y, p.Y)
	b.Min.Z = math32.Min(b.Min.Z, p.Z)
	b.Max.X = math32.Max(b.Max.X, p.X)
	b.Max.Y = math32.Max(b.Max.Y, p.Y)
	b.Max.Z = math32.Max(b.Max.Z, p.Z)
	return b
}

func (b Box3) Union(o Box3) Box3 {
	if o.IsEmpty() {
		return b
	}
	if b.IsEmpty() {
		return o
	}
	return b.ExpandByPoint(o.Min).ExpandByPoint(o.Max)
}

func (b Box3) Center() Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

func (b Box3) Size() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}

func (b Box3) ContainsPoint(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Mat4 is a row-major 4x4 affine transform. Only the top three rows are
// meaningful; the bottom row is assumed to be (0, 0, 0, 1).
type Mat4 [16]float32

// Identity returns the identity transform.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func Translation(x, y, z float32) Mat4 {
	m := Identity()
	m[3], m[7], m[11] = x, y, z
	return m
}

func Scaling(s float32) Mat4 {
	m := Identity()
	m[0], m[5], m[10] = s, s, s
	return m
}

// RotationZ returns a rotation about the Z axis by the given angle in
// radians. Drawings are planar, so Z is the only rotation the builders
// ever need.
func RotationZ(angle float32) Mat4 {
	sin, cos := math32.Sincos(angle)
	m := Identity()
	m[0], m[1] = cos, -sin
	m[4], m[5] = sin, cos
	return m
}

// IsIdentity reports whether m is exactly the identity transform.
func (m Mat4) IsIdentity() bool {
	return m == Identity()
}

// Mul composes two transforms: the result applies u first, then m.
func (m Mat4) Mul(u Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * u[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// MulPoint applies the transform to a point (w = 1).
func (m Mat4) MulPoint(p Vec3) Vec3 {
	return Vec3{
		X: m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3],
		Y: m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7],
		Z: m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11],
	}
}

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

func MakeRay(origin, dir Vec3) Ray {
	return Ray{Origin: origin, Dir: dir.Normalized()}
}

func (r Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Scale(t))
}

// IntersectBox returns the distance along the ray at which it enters the
// box, using the slab method. A ray starting inside the box reports
// distance 0.
func (r Ray) IntersectBox(b Box3) (float32, bool) {
	if b.IsEmpty() {
		return 0, false
	}

	tmin := math32.Inf(-1)
	tmax := math32.Inf(1)

	mins := [3]float32{b.Min.X, b.Min.Y, b.Min.Z}
	maxs := [3]float32{b.Max.X, b.Max.Y, b.Max.Z}
	orig := [3]float32{r.Origin.X, r.Origin.Y, r.Origin.Z}
	dir := [3]float32{r.Dir.X, r.Dir.Y, r.Dir.Z}

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			if orig[axis] < mins[axis] || orig[axis] > maxs[axis] {
				return 0, false
			}
			continue
		}
		t0 := (mins[axis] - orig[axis]) / dir[axis]
		t1 := (maxs[axis] - orig[axis]) / dir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = math32.Max(tmin, t0)
		tmax = math32.Min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}

	if tmax < 0 {
		return 0, false // box is entirely behind the ray
	}
	return math32.Max(tmin, 0), true
}

// IntersectTriangle returns the distance along the ray to the triangle
// (a, b, c) using the Möller–Trumbore algorithm. Both faces of the
// triangle are hit-testable.
func (r Ray) IntersectTriangle(a, b, c Vec3) (float32, bool) {
	const epsilon = 1e-7

	e1 := b.Sub(a)
	e2 := c.Sub(a)
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if math32.Abs(det) < epsilon {
		return 0, false // ray parallel to triangle plane
	}

	invDet := 1 / det
	s := r.Origin.Sub(a)
	u := s.Dot(p) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(e1)
	v := r.Dir.Dot(q) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := e2.Dot(q) * invDet
	if t < 0 {
		return 0, false
	}
	return t, true
}

// DistToSegment returns the minimum distance between the ray and the
// segment (a, b), the distance along the ray to the closest approach,
// and the point on the segment closest to the ray.
func (r Ray) DistToSegment(a, b Vec3) (dist, rayT float32, onSegment Vec3) {
	// Closest approach of two lines, with the segment parameter clamped
	// to [0, 1] and the ray parameter clamped to [0, +inf).
	seg := b.Sub(a)
	w := r.Origin.Sub(a)

	aa := r.Dir.Dot(r.Dir) // 1 for unit directions, kept for robustness
	bb := r.Dir.Dot(seg)
	cc := seg.Dot(seg)
	dd := r.Dir.Dot(w)
	ee := seg.Dot(w)

	denom := aa*cc - bb*bb
	var s float32 // parameter on the segment
	if denom > 1e-12 {
		s = (aa*ee - bb*dd) / denom
	}
	s = math32.Max(0, math32.Min(1, s))

	t := (bb*s - dd) / aa
	t = math32.Max(0, t)

	onSegment = a.Add(seg.Scale(s))
	dist = r.At(t).DistTo(onSegment)
	return dist, t, onSegment
}

// DistToPoint returns the distance from the ray to p and the distance
// along the ray to the closest approach.
func (r Ray) DistToPoint(p Vec3) (dist, rayT float32) {
	t := p.Sub(r.Origin).Dot(r.Dir)
	t = math32.Max(0, t)
	return r.At(t).DistTo(p), t
}
