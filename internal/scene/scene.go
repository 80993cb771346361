// Package scene models the composite render objects the batching engine
// consumes. The scene builder constructs one Object tree per drawing
// entity; each leaf primitive carries a geometry source, a material
// reference, a primitive kind tag, and the flags the batch coordinator
// dispatches on. The package deliberately knows nothing about packed
// buffers: it produces world-space geometry, the batch package owns
// where it lands.
package scene

import (
	"fmt"

	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/style"
)

// Kind tags a primitive with its render topology.
type Kind int

const (
	KindLines Kind = iota // independent segments, 2 vertices each
	KindMesh              // triangles
	KindPoints            // point cloud
	KindWideLines         // shader-expanded thick segments, 6 floats per segment
)

func (k Kind) String() string {
	switch k {
	case KindLines:
		return "lines"
	case KindMesh:
		return "mesh"
	case KindPoints:
		return "points"
	case KindWideLines:
		return "wide-lines"
	default:
		return "unknown"
	}
}

// AttrLayout describes one vertex attribute's shape. Containers require
// an exact layout match (name, item size, normalization) for every
// geometry routed to them.
type AttrLayout struct {
	Name       string
	ItemSize   int
	Normalized bool
}

// Attribute is a flat float32 array holding ItemSize components per
// vertex.
type Attribute struct {
	AttrLayout
	Data []float32
}

// Count returns the number of vertices the attribute holds.
func (a *Attribute) Count() int {
	if a.ItemSize == 0 {
		return 0
	}
	return len(a.Data) / a.ItemSize
}

// Geometry is a source geometry handed to the batching engine: one or
// more named attributes, plus an optional index. The first attribute is
// positional by convention ("position" for vertex kinds, "segment" for
// wide lines).
type Geometry struct {
	Attrs []Attribute
	Index []uint32 // nil for non-indexed geometry
}

// Indexed reports whether the geometry carries an index.
func (g *Geometry) Indexed() bool { return g.Index != nil }

// VertexCount returns the vertex count of the positional attribute.
func (g *Geometry) VertexCount() int {
	if len(g.Attrs) == 0 {
		return 0
	}
	return g.Attrs[0].Count()
}

// Layout returns the attribute layouts in declaration order.
func (g *Geometry) Layout() []AttrLayout {
	out := make([]AttrLayout, len(g.Attrs))
	for i := range g.Attrs {
		out[i] = g.Attrs[i].AttrLayout
	}
	return out
}

// Validate checks internal consistency: at least one attribute, equal
// vertex counts across attributes, and index values in range.
func (g *Geometry) Validate() error {
	if len(g.Attrs) == 0 {
		return fmt.Errorf("geometry has no attributes")
	}
	n := g.Attrs[0].Count()
	for i := range g.Attrs {
		a := &g.Attrs[i]
		if a.ItemSize <= 0 {
			return fmt.Errorf("attribute %q has item size %d", a.Name, a.ItemSize)
		}
		if len(a.Data)%a.ItemSize != 0 {
			return fmt.Errorf("attribute %q length %d is not a multiple of item size %d", a.Name, len(a.Data), a.ItemSize)
		}
		if a.Count() != n {
			return fmt.Errorf("attribute %q has %d vertices, %q has %d", a.Name, a.Count(), g.Attrs[0].Name, n)
		}
	}
	for i, idx := range g.Index {
		if int(idx) >= n {
			return fmt.Errorf("index %d at position %d out of range (%d vertices)", idx, i, n)
		}
	}
	return nil
}

// Clone returns a deep copy of the geometry.
func (g *Geometry) Clone() *Geometry {
	out := &Geometry{Attrs: make([]Attribute, len(g.Attrs))}
	for i := range g.Attrs {
		out.Attrs[i] = Attribute{
			AttrLayout: g.Attrs[i].AttrLayout,
			Data:       append([]float32(nil), g.Attrs[i].Data...),
		}
	}
	if g.Index != nil {
		out.Index = append([]uint32(nil), g.Index...)
	}
	return out
}

// Bounds computes the axis-aligned bounding box of the positional
// attribute, applying index indirection when present.
func (g *Geometry) Bounds() geom.Box3 {
	box := geom.EmptyBox3()
	if len(g.Attrs) == 0 {
		return box
	}
	pos := &g.Attrs[0]
	if pos.ItemSize == 6 {
		// Wide-line segments: two points per record.
		for i := 0; i+5 < len(pos.Data); i += 6 {
			box = box.ExpandByPoint(geom.V3(pos.Data[i], pos.Data[i+1], pos.Data[i+2]))
			box = box.ExpandByPoint(geom.V3(pos.Data[i+3], pos.Data[i+4], pos.Data[i+5]))
		}
		return box
	}
	at := func(v int) geom.Vec3 {
		return geom.V3(pos.Data[v*pos.ItemSize], pos.Data[v*pos.ItemSize+1], pos.Data[v*pos.ItemSize+2])
	}
	if g.Index != nil {
		for _, idx := range g.Index {
			box = box.ExpandByPoint(at(int(idx)))
		}
		return box
	}
	for v := 0; v < pos.Count(); v++ {
		box = box.ExpandByPoint(at(v))
	}
	return box
}

// Bake folds a world transform into the positional attribute in place.
// Packed containers store world-space vertices only, so every primitive
// is baked exactly once before it is added.
func (g *Geometry) Bake(m geom.Mat4) {
	if m.IsIdentity() || len(g.Attrs) == 0 {
		return
	}
	pos := &g.Attrs[0]
	switch pos.ItemSize {
	case 6:
		for i := 0; i+5 < len(pos.Data); i += 6 {
			a := m.MulPoint(geom.V3(pos.Data[i], pos.Data[i+1], pos.Data[i+2]))
			b := m.MulPoint(geom.V3(pos.Data[i+3], pos.Data[i+4], pos.Data[i+5]))
			pos.Data[i], pos.Data[i+1], pos.Data[i+2] = a.X, a.Y, a.Z
			pos.Data[i+3], pos.Data[i+4], pos.Data[i+5] = b.X, b.Y, b.Z
		}
	default:
		for i := 0; i+2 < len(pos.Data); i += pos.ItemSize {
			p := m.MulPoint(geom.V3(pos.Data[i], pos.Data[i+1], pos.Data[i+2]))
			pos.Data[i], pos.Data[i+1], pos.Data[i+2] = p.X, p.Y, p.Z
		}
	}
}

// Primitive is a leaf renderable inside a composite object.
type Primitive struct {
	Kind     Kind
	Geom     *Geometry
	Material *style.Material

	// NoBatch routes the primitive to the unbatched escape path: it is
	// kept as an independent object instead of being packed.
	NoBatch bool

	// BBoxOnly switches hit-testing to the axis-aligned bounding box
	// instead of exact geometry (point markers, glyph runs).
	BBoxOnly bool

	// PointSymbol marks point-marker line geometry that must be
	// regenerable in place from Anchor when the global point display
	// mode changes.
	PointSymbol bool
	Anchor      *geom.Vec3

	// ReservedVertices/ReservedIndices let the builder over-reserve
	// packed capacity for later in-place growth. Zero means "exactly
	// what the geometry needs".
	ReservedVertices int
	ReservedIndices  int
}

// Object is a node in a composite render object: either a group with
// children or a primitive leaf (or both). Transform is local and
// composes down the tree.
type Object struct {
	Children  []*Object
	Prim      *Primitive
	Transform geom.Mat4
}

// NewObject returns an empty group node with an identity transform.
func NewObject() *Object {
	return &Object{Transform: geom.Identity()}
}

// NewPrimitive wraps a primitive leaf in an object node.
func NewPrimitive(p *Primitive) *Object {
	return &Object{Prim: p, Transform: geom.Identity()}
}

// Add appends children and returns the receiver for chaining.
func (o *Object) Add(children ...*Object) *Object {
	o.Children = append(o.Children, children...)
	return o
}

// Walk visits every primitive depth-first with its accumulated world
// transform. Traversal stops at the first error.
func (o *Object) Walk(fn func(p *Primitive, world geom.Mat4) error) error {
	return o.walk(geom.Identity(), fn)
}

func (o *Object) walk(parent geom.Mat4, fn func(p *Primitive, world geom.Mat4) error) error {
	world := parent
	if !o.Transform.IsIdentity() {
		world = parent.Mul(o.Transform)
	}
	if o.Prim != nil {
		if err := fn(o.Prim, world); err != nil {
			return err
		}
	}
	for _, c := range o.Children {
		if err := c.walk(world, fn); err != nil {
			return err
		}
	}
	return nil
}

// Clone deep-copies the object tree. Geometry is copied; materials are
// shared (they are identity-keyed and owned by the style cache).
func (o *Object) Clone() *Object {
	out := &Object{Transform: o.Transform}
	if o.Prim != nil {
		p := *o.Prim
		if p.Geom != nil {
			p.Geom = p.Geom.Clone()
		}
		if p.Anchor != nil {
			a := *p.Anchor
			p.Anchor = &a
		}
		out.Prim = &p
	}
	for _, c := range o.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}
