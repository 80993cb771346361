package geom

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-5

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol)
	assert.InDelta(t, want.Y, got.Y, tol)
	assert.InDelta(t, want.Z, got.Z, tol)
}

func TestVec3Basics(t *testing.T) {
	a, b := V3(1, 2, 3), V3(4, 5, 6)

	assert.Equal(t, V3(5, 7, 9), a.Add(b))
	assert.Equal(t, V3(-3, -3, -3), a.Sub(b))
	assert.Equal(t, V3(2, 4, 6), a.Scale(2))
	assert.Equal(t, float32(32), a.Dot(b))
	assert.Equal(t, V3(-3, 6, -3), a.Cross(b))
	assert.InDelta(t, 5, V3(3, 4, 0).Length(), tol)
	assert.InDelta(t, 1, V3(7, -2, 4).Normalized().Length(), tol)
	assert.Equal(t, V3(0, 0, 0), V3(0, 0, 0).Normalized())
}

func TestBox3(t *testing.T) {
	empty := EmptyBox3()
	assert.True(t, empty.IsEmpty())
	assert.Equal(t, Vec3{}, empty.Size())

	// Expanding an empty box by one point yields that point.
	b := empty.ExpandByPoint(V3(1, 2, 3))
	assert.False(t, b.IsEmpty())
	assert.Equal(t, V3(1, 2, 3), b.Min)
	assert.Equal(t, V3(1, 2, 3), b.Max)

	b = b.ExpandByPoint(V3(-1, 0, 5))
	assert.Equal(t, V3(-1, 0, 3), b.Min)
	assert.Equal(t, V3(1, 2, 5), b.Max)
	assert.Equal(t, V3(0, 1, 4), b.Center())
	assert.Equal(t, V3(2, 2, 2), b.Size())

	assert.True(t, b.ContainsPoint(V3(0, 1, 4)))
	assert.False(t, b.ContainsPoint(V3(2, 1, 4)))

	other := EmptyBox3().ExpandByPoint(V3(10, 10, 10))
	u := b.Union(other)
	assert.Equal(t, V3(-1, 0, 3), u.Min)
	assert.Equal(t, V3(10, 10, 10), u.Max)
	assert.Equal(t, b, b.Union(EmptyBox3()))
	assert.Equal(t, b, EmptyBox3().Union(b))
}

func TestMat4Compose(t *testing.T) {
	assert.True(t, Identity().IsIdentity())
	assert.False(t, Translation(1, 0, 0).IsIdentity())

	p := V3(1, 0, 0)
	assertVec(t, V3(1, 0, 0), Identity().MulPoint(p))
	assertVec(t, V3(11, 20, 0), Translation(10, 20, 0).MulPoint(p))
	assertVec(t, V3(3, 0, 0), Scaling(3).MulPoint(p))
	assertVec(t, V3(0, 1, 0), RotationZ(math32.Pi/2).MulPoint(p))

	// Mul applies the right operand first: rotate then translate.
	m := Translation(10, 0, 0).Mul(RotationZ(math32.Pi / 2))
	assertVec(t, V3(10, 1, 0), m.MulPoint(p))

	// Reverse order: translate then rotate.
	m = RotationZ(math32.Pi / 2).Mul(Translation(10, 0, 0))
	assertVec(t, V3(0, 11, 0), m.MulPoint(p))
}

func TestRayIntersectBox(t *testing.T) {
	box := EmptyBox3().ExpandByPoint(V3(-1, -1, -1)).ExpandByPoint(V3(1, 1, 1))

	// Entry distance from outside.
	d, ok := MakeRay(V3(0, 0, 5), V3(0, 0, -1)).IntersectBox(box)
	require.True(t, ok)
	assert.InDelta(t, 4, d, tol)

	// Inside the box reports 0.
	d, ok = MakeRay(V3(0, 0, 0), V3(0, 0, -1)).IntersectBox(box)
	require.True(t, ok)
	assert.Zero(t, d)

	// Behind the ray.
	_, ok = MakeRay(V3(0, 0, 5), V3(0, 0, 1)).IntersectBox(box)
	assert.False(t, ok)

	// Parallel to an axis, outside the slab.
	_, ok = MakeRay(V3(3, 0, 5), V3(0, 0, -1)).IntersectBox(box)
	assert.False(t, ok)

	// A flat (zero-thickness) box is still hittable, picking degenerate
	// drawing extents like a single horizontal line.
	flat := EmptyBox3().ExpandByPoint(V3(0, 0, 0)).ExpandByPoint(V3(10, 10, 0))
	d, ok = MakeRay(V3(5, 5, 10), V3(0, 0, -1)).IntersectBox(flat)
	require.True(t, ok)
	assert.InDelta(t, 10, d, tol)

	// Empty boxes never hit.
	_, ok = MakeRay(V3(0, 0, 5), V3(0, 0, -1)).IntersectBox(EmptyBox3())
	assert.False(t, ok)
}

func TestRayIntersectTriangle(t *testing.T) {
	a, b, c := V3(0, 0, 0), V3(2, 0, 0), V3(0, 2, 0)

	d, ok := MakeRay(V3(0.5, 0.5, 3), V3(0, 0, -1)).IntersectTriangle(a, b, c)
	require.True(t, ok)
	assert.InDelta(t, 3, d, tol)

	// Back face hits too.
	d, ok = MakeRay(V3(0.5, 0.5, -3), V3(0, 0, 1)).IntersectTriangle(a, b, c)
	require.True(t, ok)
	assert.InDelta(t, 3, d, tol)

	// Outside the triangle.
	_, ok = MakeRay(V3(1.5, 1.5, 3), V3(0, 0, -1)).IntersectTriangle(a, b, c)
	assert.False(t, ok)

	// Parallel to the plane.
	_, ok = MakeRay(V3(0, 0, 3), V3(1, 0, 0)).IntersectTriangle(a, b, c)
	assert.False(t, ok)

	// Behind the origin.
	_, ok = MakeRay(V3(0.5, 0.5, -3), V3(0, 0, -1)).IntersectTriangle(a, b, c)
	assert.False(t, ok)
}

func TestRayDistToSegment(t *testing.T) {
	a, b := V3(0, 0, 0), V3(10, 0, 0)

	// Ray passing directly over the middle.
	dist, rayT, on := MakeRay(V3(5, 0, 4), V3(0, 0, -1)).DistToSegment(a, b)
	assert.InDelta(t, 0, dist, tol)
	assert.InDelta(t, 4, rayT, tol)
	assertVec(t, V3(5, 0, 0), on)

	// Closest approach clamps to the segment end.
	dist, _, on = MakeRay(V3(13, 0, 4), V3(0, 0, -1)).DistToSegment(a, b)
	assert.InDelta(t, 3, dist, tol)
	assertVec(t, V3(10, 0, 0), on)

	// Offset ray keeps its lateral distance.
	dist, _, _ = MakeRay(V3(5, 2, 4), V3(0, 0, -1)).DistToSegment(a, b)
	assert.InDelta(t, 2, dist, tol)
}

func TestRayDistToPoint(t *testing.T) {
	p := V3(3, 1, 0)

	dist, rayT := MakeRay(V3(3, 0, 5), V3(0, 0, -1)).DistToPoint(p)
	assert.InDelta(t, 1, dist, tol)
	assert.InDelta(t, 5, rayT, tol)

	// Points behind the origin clamp to t = 0.
	dist, rayT = MakeRay(V3(0, 0, -5), V3(0, 0, -1)).DistToPoint(V3(0, 0, 0))
	assert.InDelta(t, 5, dist, tol)
	assert.Zero(t, rayT)
}
