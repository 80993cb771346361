package scene

import (
	"fmt"

	"github.com/rclancey/earcut"

	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/style"
)

const positionAttr = "position"

func positionAttribute(data []float32) Attribute {
	return Attribute{
		AttrLayout: AttrLayout{Name: positionAttr, ItemSize: 3},
		Data:       data,
	}
}

// LineSegments builds non-indexed line geometry from an even number of
// world points (each consecutive pair is one segment).
func LineSegments(points []geom.Vec3, m *style.Material) (*Object, error) {
	if len(points)%2 != 0 {
		return nil, fmt.Errorf("line segments need an even point count, got %d", len(points))
	}
	data := make([]float32, 0, len(points)*3)
	for _, p := range points {
		data = append(data, p.X, p.Y, p.Z)
	}
	return NewPrimitive(&Primitive{
		Kind:     KindLines,
		Geom:     &Geometry{Attrs: []Attribute{positionAttribute(data)}},
		Material: m,
	}), nil
}

// LineStrip builds indexed line geometry connecting consecutive points.
// Each interior vertex is shared by two segments through the index, so a
// strip of n points stores n vertices and 2(n-1) indices.
func LineStrip(points []geom.Vec3, m *style.Material) (*Object, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("line strip needs at least 2 points, got %d", len(points))
	}
	data := make([]float32, 0, len(points)*3)
	for _, p := range points {
		data = append(data, p.X, p.Y, p.Z)
	}
	index := make([]uint32, 0, (len(points)-1)*2)
	for i := 0; i < len(points)-1; i++ {
		index = append(index, uint32(i), uint32(i+1))
	}
	return NewPrimitive(&Primitive{
		Kind:     KindLines,
		Geom:     &Geometry{Attrs: []Attribute{positionAttribute(data)}, Index: index},
		Material: m,
	}), nil
}

// HatchFill triangulates a planar boundary loop (optionally with holes)
// into indexed mesh geometry. The loop is projected onto the XY plane
// for triangulation; Z is carried through from the input points.
func HatchFill(loop []geom.Vec3, holes [][]geom.Vec3, m *style.Material) (*Object, error) {
	if len(loop) < 3 {
		return nil, fmt.Errorf("hatch boundary needs at least 3 points, got %d", len(loop))
	}

	all := make([]geom.Vec3, 0, len(loop))
	all = append(all, loop...)
	var holeStarts []int
	for _, h := range holes {
		if len(h) < 3 {
			return nil, fmt.Errorf("hatch hole needs at least 3 points, got %d", len(h))
		}
		holeStarts = append(holeStarts, len(all))
		all = append(all, h...)
	}

	coords := make([]float64, 0, len(all)*2)
	for _, p := range all {
		coords = append(coords, float64(p.X), float64(p.Y))
	}
	tris, err := earcut.Earcut(coords, holeStarts, 2)
	if err != nil {
		return nil, fmt.Errorf("hatch triangulation failed: %w", err)
	}
	if len(tris) == 0 {
		return nil, fmt.Errorf("hatch triangulation produced no triangles for %d-point boundary", len(loop))
	}

	data := make([]float32, 0, len(all)*3)
	for _, p := range all {
		data = append(data, p.X, p.Y, p.Z)
	}
	index := make([]uint32, len(tris))
	for i, t := range tris {
		index[i] = uint32(t)
	}
	return NewPrimitive(&Primitive{
		Kind:     KindMesh,
		Geom:     &Geometry{Attrs: []Attribute{positionAttribute(data)}, Index: index},
		Material: m,
	}), nil
}

// PointCloud builds point geometry hit-tested through its bounding box
// (exact per-point picking is pointless at marker scale).
func PointCloud(points []geom.Vec3, m *style.Material) *Object {
	data := make([]float32, 0, len(points)*3)
	for _, p := range points {
		data = append(data, p.X, p.Y, p.Z)
	}
	return NewPrimitive(&Primitive{
		Kind:     KindPoints,
		Geom:     &Geometry{Attrs: []Attribute{positionAttribute(data)}},
		Material: m,
		BBoxOnly: true,
	})
}

// WideLineStrip builds wide-line segment geometry from consecutive
// points. Each segment is a flat 6-float record (start xyz, end xyz)
// expanded to a quad by the wide-line shader.
func WideLineStrip(points []geom.Vec3, m *style.Material) (*Object, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("wide line needs at least 2 points, got %d", len(points))
	}
	data := make([]float32, 0, (len(points)-1)*6)
	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		data = append(data, a.X, a.Y, a.Z, b.X, b.Y, b.Z)
	}
	return NewPrimitive(&Primitive{
		Kind: KindWideLines,
		Geom: &Geometry{Attrs: []Attribute{{
			AttrLayout: AttrLayout{Name: "segment", ItemSize: 6},
			Data:       data,
		}}},
		Material: m,
	}), nil
}

// PointDisplayMode selects the marker shape drawn for point entities.
type PointDisplayMode int

const (
	PointDot PointDisplayMode = iota
	PointCross
	PointSquare
	PointCrossSquare
)

// MaxSymbolVertices is the largest vertex count any point display mode
// produces. Point-symbol slots reserve this much so a display-mode
// change can always regenerate in place.
const MaxSymbolVertices = 12 // cross-square: 6 segments, 2 vertices each

// PointSymbolGeometry generates the marker line geometry for an anchor
// in the given display mode. Used both when building point entities and
// when regenerating containers in place after a mode change.
func PointSymbolGeometry(anchor geom.Vec3, mode PointDisplayMode, size float32) *Geometry {
	h := size / 2
	var segs []geom.Vec3
	cross := []geom.Vec3{
		anchor.Add(geom.V3(-h, 0, 0)), anchor.Add(geom.V3(h, 0, 0)),
		anchor.Add(geom.V3(0, -h, 0)), anchor.Add(geom.V3(0, h, 0)),
	}
	square := []geom.Vec3{
		anchor.Add(geom.V3(-h, -h, 0)), anchor.Add(geom.V3(h, -h, 0)),
		anchor.Add(geom.V3(h, -h, 0)), anchor.Add(geom.V3(h, h, 0)),
		anchor.Add(geom.V3(h, h, 0)), anchor.Add(geom.V3(-h, h, 0)),
		anchor.Add(geom.V3(-h, h, 0)), anchor.Add(geom.V3(-h, -h, 0)),
	}
	switch mode {
	case PointCross:
		segs = cross
	case PointSquare:
		segs = square
	case PointCrossSquare:
		segs = append(append([]geom.Vec3{}, cross...), square...)
	default:
		// Dot: a degenerate short segment keeps the layout uniform
		// across modes.
		eps := size / 100
		segs = []geom.Vec3{anchor.Add(geom.V3(-eps, 0, 0)), anchor.Add(geom.V3(eps, 0, 0))}
	}

	data := make([]float32, 0, len(segs)*3)
	for _, p := range segs {
		data = append(data, p.X, p.Y, p.Z)
	}
	return &Geometry{Attrs: []Attribute{positionAttribute(data)}}
}

// PointSymbol builds a point-marker entity: regenerable line geometry
// anchored at a drawing position, hit-tested through its bounding box.
func PointSymbol(anchor geom.Vec3, mode PointDisplayMode, size float32, m *style.Material) *Object {
	a := anchor
	return NewPrimitive(&Primitive{
		Kind:             KindLines,
		Geom:             PointSymbolGeometry(anchor, mode, size),
		Material:         m,
		BBoxOnly:         true,
		PointSymbol:      true,
		Anchor:           &a,
		ReservedVertices: MaxSymbolVertices,
	})
}
