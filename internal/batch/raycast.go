package batch

import (
	"fmt"

	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/scene"
)

// Intersection is one ray hit, tagged with the slot and owning entity
// so callers can resolve picks back to drawing entities.
type Intersection struct {
	Distance  float32
	Point     geom.Vec3
	Container int
	Slot      int
	Entity    string
}

// RayParams carries the pick tolerances: lines and points are hit when
// the ray passes within the threshold distance, in world units.
type RayParams struct {
	LineThreshold  float32
	PointThreshold float32
}

// DefaultRayParams returns the viewer's standard pick tolerances.
func DefaultRayParams() RayParams {
	return RayParams{LineThreshold: 0.1, PointThreshold: 0.25}
}

// Intersect hit-tests one slot. Slots flagged bbox-only are tested
// against their cached bounding box and report a synthetic hit at the
// box entry distance; exact geometry is never touched for them. All
// other slots run the kind-appropriate routine directly over the slot's
// packed sub-range, so no per-query render object is allocated.
func (c *Container) Intersect(id int, ray geom.Ray, p RayParams) ([]Intersection, error) {
	s, err := c.table.get(id)
	if err != nil {
		return nil, fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}

	if s.BBoxOnly {
		box, err := c.BoundsAt(id)
		if err != nil {
			return nil, err
		}
		t, ok := ray.IntersectBox(box)
		if !ok {
			return nil, nil
		}
		return []Intersection{c.tagged(s, id, t, ray.At(t))}, nil
	}

	var hits []Intersection
	c.intersectSlot(s, id, ray, p, &hits)
	return hits, nil
}

// IntersectAll hit-tests every visible active slot and returns all
// hits, unsorted.
func (c *Container) IntersectAll(ray geom.Ray, p RayParams) []Intersection {
	var hits []Intersection
	for id := range c.table.slots {
		s := &c.table.slots[id]
		if !s.Active || !s.Visible {
			continue
		}
		if s.BBoxOnly {
			if box, err := c.BoundsAt(id); err == nil {
				if t, ok := ray.IntersectBox(box); ok {
					hits = append(hits, c.tagged(s, id, t, ray.At(t)))
				}
			}
			continue
		}
		c.intersectSlot(s, id, ray, p, &hits)
	}
	return hits
}

func (c *Container) tagged(s *Slot, id int, t float32, at geom.Vec3) Intersection {
	return Intersection{Distance: t, Point: at, Container: c.id, Slot: id, Entity: s.Owner}
}

// intersectSlot runs the kind-appropriate intersection over the slot's
// packed range, appending tagged hits.
func (c *Container) intersectSlot(s *Slot, id int, ray geom.Ray, p RayParams, hits *[]Intersection) {
	pos := c.attrs[0]
	is := c.layout[0].ItemSize
	at := func(v int) geom.Vec3 {
		return geom.V3(pos[v*is], pos[v*is+1], pos[v*is+2])
	}
	var vertexAt func(int) geom.Vec3
	count := s.VertexCount
	if c.indexed {
		vertexAt = func(j int) geom.Vec3 {
			return at(int(c.index.At(s.IndexStart + j)))
		}
		count = s.IndexCount
	} else {
		vertexAt = func(j int) geom.Vec3 { return at(s.VertexStart + j) }
	}

	switch c.kind {
	case scene.KindLines:
		for j := 0; j+1 < count; j += 2 {
			a, b := vertexAt(j), vertexAt(j+1)
			if dist, t, on := ray.DistToSegment(a, b); dist <= p.LineThreshold {
				*hits = append(*hits, c.tagged(s, id, t, on))
			}
		}
	case scene.KindMesh:
		for j := 0; j+2 < count; j += 3 {
			if t, ok := ray.IntersectTriangle(vertexAt(j), vertexAt(j+1), vertexAt(j+2)); ok {
				*hits = append(*hits, c.tagged(s, id, t, ray.At(t)))
			}
		}
	case scene.KindPoints:
		for j := 0; j < count; j++ {
			pt := vertexAt(j)
			if dist, t := ray.DistToPoint(pt); dist <= p.PointThreshold {
				*hits = append(*hits, c.tagged(s, id, t, pt))
			}
		}
	case scene.KindWideLines:
		// Wide-line slots store flat segment records; the zero-copy
		// view over the contiguous packed array replaces materializing
		// a probe object per query.
		seg := pos[s.VertexStart*segmentFloats : (s.VertexStart+s.VertexCount)*segmentFloats]
		intersectSegments(seg, ray, p, func(t float32, on geom.Vec3) {
			*hits = append(*hits, c.tagged(s, id, t, on))
		})
	}
}

func intersectSegments(seg []float32, ray geom.Ray, p RayParams, hit func(t float32, on geom.Vec3)) {
	for i := 0; i+5 < len(seg); i += segmentFloats {
		a := geom.V3(seg[i], seg[i+1], seg[i+2])
		b := geom.V3(seg[i+3], seg[i+4], seg[i+5])
		if dist, t, on := ray.DistToSegment(a, b); dist <= p.LineThreshold {
			hit(t, on)
		}
	}
}

// intersectGeometry hit-tests a standalone (unbatched) geometry the
// same way packed slots are tested.
func intersectGeometry(kind scene.Kind, g *scene.Geometry, bboxOnly bool, ray geom.Ray, p RayParams) bool {
	if g == nil || len(g.Attrs) == 0 {
		return false
	}
	if bboxOnly {
		_, ok := ray.IntersectBox(g.Bounds())
		return ok
	}

	pos := &g.Attrs[0]
	at := func(v int) geom.Vec3 {
		return geom.V3(pos.Data[v*pos.ItemSize], pos.Data[v*pos.ItemSize+1], pos.Data[v*pos.ItemSize+2])
	}
	vertexAt := at
	count := g.VertexCount()
	if g.Indexed() {
		vertexAt = func(j int) geom.Vec3 { return at(int(g.Index[j])) }
		count = len(g.Index)
	}

	switch kind {
	case scene.KindLines:
		for j := 0; j+1 < count; j += 2 {
			if dist, _, _ := ray.DistToSegment(vertexAt(j), vertexAt(j+1)); dist <= p.LineThreshold {
				return true
			}
		}
	case scene.KindMesh:
		for j := 0; j+2 < count; j += 3 {
			if _, ok := ray.IntersectTriangle(vertexAt(j), vertexAt(j+1), vertexAt(j+2)); ok {
				return true
			}
		}
	case scene.KindPoints:
		for j := 0; j < count; j++ {
			if dist, _ := ray.DistToPoint(vertexAt(j)); dist <= p.PointThreshold {
				return true
			}
		}
	case scene.KindWideLines:
		found := false
		intersectSegments(pos.Data, ray, p, func(float32, geom.Vec3) { found = true })
		return found
	}
	return false
}
