package batch

import (
	"fmt"
	"math"

	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/scene"
	"github.com/draftview/draftview/internal/style"
)

// Container owns one shared set of packed attribute arrays (plus an
// optional index array) for one (primitive kind, material) pair. Slots
// carve disjoint reserved ranges out of the arrays; deleted slots leave
// holes that Optimize repacks. The attribute layout is established by
// the first geometry added and enforced exactly from then on.
type Container struct {
	id       int
	kind     scene.Kind
	material *style.Material
	indexed  bool
	up       Uploader
	counters *Counters

	layout []scene.AttrLayout
	attrs  [][]float32 // parallel to layout, len capacity*ItemSize each
	index  *IndexArray // nil for non-indexed containers

	capacity      int // vertex capacity
	indexCapacity int

	// Append cursors: always at or past the end of the last reserved
	// range.
	nextVertexStart int
	nextIndexStart  int

	table slotTable
}

// NewContainer creates an empty container. The attribute layout is taken
// from the first geometry added; until then the container holds no
// backing arrays.
func NewContainer(id int, kind scene.Kind, material *style.Material, indexed bool, up Uploader) *Container {
	if up == nil {
		up = NopUploader{}
	}
	return &Container{id: id, kind: kind, material: material, indexed: indexed, up: up}
}

func (c *Container) ID() int                { return c.id }
func (c *Container) Kind() scene.Kind       { return c.kind }
func (c *Container) Indexed() bool          { return c.indexed }
func (c *Container) Material() *style.Material { return c.material }
func (c *Container) MaterialID() string     { return c.material.ID() }

// SetMaterial swaps the material reference in place. Packed data is
// untouched; only the draw-time material changes.
func (c *Container) SetMaterial(m *style.Material) { c.material = m }

// Capacity returns the vertex capacity; IndexCapacity the index entry
// capacity (0 when non-indexed).
func (c *Container) Capacity() int      { return c.capacity }
func (c *Container) IndexCapacity() int { return c.indexCapacity }

// GeometryCount returns the number of active slots.
func (c *Container) GeometryCount() int { return c.table.activeCount() }

// SlotCount returns the total slot-record count, active or not.
func (c *Container) SlotCount() int { return len(c.table.slots) }

// SlotAt returns a copy of the bookkeeping record for an active slot.
func (c *Container) SlotAt(id int) (Slot, error) {
	s, err := c.table.get(id)
	if err != nil {
		return Slot{}, fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}
	return *s, nil
}

// setCounters attaches shared event counters (used by the Group).
func (c *Container) setCounters(ct *Counters) { c.counters = ct }

// checkLayout establishes the container's attribute layout from the
// first geometry and verifies every later geometry against it exactly:
// attribute names, item sizes, normalization flags and index presence
// must all match. Mismatches are configuration errors; coercing would
// corrupt every other slot sharing the arrays.
func (c *Container) checkLayout(g *scene.Geometry) error {
	if g.Indexed() != c.indexed {
		return fmt.Errorf("container %d (%s): %w: container indexed=%v, geometry indexed=%v",
			c.id, c.kind, ErrIndexMismatch, c.indexed, g.Indexed())
	}

	if c.layout == nil {
		c.layout = g.Layout()
		c.attrs = make([][]float32, len(c.layout))
		for i, l := range c.layout {
			c.attrs[i] = make([]float32, c.capacity*l.ItemSize)
		}
		if c.indexed {
			c.index = newIndexArray(c.indexCapacity, c.capacity)
		}
		c.up.Register(c.id, ContainerInfo{Kind: c.kind, Layout: c.layout, Indexed: c.indexed})
		for i, l := range c.layout {
			c.up.AllocVertex(c.id, i, c.capacity*l.ItemSize)
		}
		if c.indexed {
			c.up.AllocIndex(c.id, c.indexCapacity, c.index.Wide())
		}
		return nil
	}

	got := g.Layout()
	if len(got) != len(c.layout) {
		return fmt.Errorf("container %d (%s): %w: container has %d attributes, geometry has %d",
			c.id, c.kind, ErrLayoutMismatch, len(c.layout), len(got))
	}
	for i := range got {
		if got[i] != c.layout[i] {
			return fmt.Errorf("container %d (%s): %w: attribute %d is %+v, want %+v",
				c.id, c.kind, ErrLayoutMismatch, i, got[i], c.layout[i])
		}
	}
	return nil
}

// grownCapacity applies the amortized growth policy to a required
// element count.
func grownCapacity(required int) int {
	return int(math.Ceil(float64(required) * GrowthFactor))
}

// SetGeometrySize resizes the backing arrays to the given capacities,
// preserving all packed data. Used internally by growth and exposed for
// pre-sizing. Shrinking below the current append cursors is refused.
func (c *Container) SetGeometrySize(newVertexCapacity, newIndexCapacity int) error {
	if newVertexCapacity < c.nextVertexStart || (c.indexed && newIndexCapacity < c.nextIndexStart) {
		return fmt.Errorf("container %d: cannot shrink below used ranges (%d/%d vertices, %d/%d indices)",
			c.id, c.nextVertexStart, newVertexCapacity, c.nextIndexStart, newIndexCapacity)
	}

	c.capacity = newVertexCapacity
	if c.indexed {
		c.indexCapacity = newIndexCapacity
	}
	if c.layout == nil {
		return nil // pre-sizing before the first geometry; applied at layout time
	}

	for i, l := range c.layout {
		grown := make([]float32, c.capacity*l.ItemSize)
		copy(grown, c.attrs[i])
		c.attrs[i] = grown // old array dropped here
		c.up.AllocVertex(c.id, i, len(grown))
		c.up.WriteVertex(c.id, i, 0, grown[:c.nextVertexStart*l.ItemSize])
	}
	if c.indexed {
		c.index.Resize(c.indexCapacity, c.capacity)
		c.up.AllocIndex(c.id, c.indexCapacity, c.index.Wide())
		c.flushIndex(0, c.nextIndexStart)
	}
	c.syncDrawRange()
	return nil
}

// ensureCapacity grows the arrays so an append of the given reserved
// sizes cannot overflow. Capacity exhaustion is never surfaced to the
// caller; it is always resolved here first.
func (c *Container) ensureCapacity(reservedV, reservedI int) error {
	needV := c.nextVertexStart + reservedV
	needI := c.nextIndexStart + reservedI

	growV := needV > c.capacity
	growI := c.indexed && needI > c.indexCapacity
	if !growV && !growI {
		return nil
	}

	newV, newI := c.capacity, c.indexCapacity
	if growV {
		newV = grownCapacity(needV)
	}
	if growI {
		newI = grownCapacity(needI)
	}
	if c.counters != nil {
		c.counters.GrowthEvents++
	}
	batchLogger.Printf("container#%d grow: vertices %d -> %d, indices %d -> %d",
		c.id, c.capacity, newV, c.indexCapacity, newI)
	return c.SetGeometrySize(newV, newI)
}

// AddGeometry validates the source geometry against the container's
// layout, reserves a slot (growing the arrays if needed), copies the
// attribute data into the slot's vertex range, rewrites indices rebased
// by the slot's vertex start, and returns the slot id. Reserved counts
// of -1 mean "exactly what the geometry needs"; larger reservations
// allow later in-place growth via SetGeometryAt.
func (c *Container) AddGeometry(g *scene.Geometry, reservedVertexCount, reservedIndexCount int, meta SlotMeta) (int, error) {
	if err := g.Validate(); err != nil {
		return 0, fmt.Errorf("container %d: %w", c.id, err)
	}
	if err := c.checkLayout(g); err != nil {
		return 0, err
	}

	nv := g.VertexCount()
	ni := len(g.Index)
	if reservedVertexCount < 0 {
		reservedVertexCount = nv
	}
	if reservedIndexCount < 0 {
		reservedIndexCount = ni
	}
	if reservedVertexCount < nv || (c.indexed && reservedIndexCount < ni) {
		return 0, fmt.Errorf("container %d: %w: %d/%d vertices, %d/%d indices reserved",
			c.id, ErrReservedOverflow, reservedVertexCount, nv, reservedIndexCount, ni)
	}
	if !c.indexed {
		reservedIndexCount = 0
	}

	if err := c.ensureCapacity(reservedVertexCount, reservedIndexCount); err != nil {
		return 0, err
	}

	id := c.table.reserve()
	s := &c.table.slots[id]
	s.VertexStart = c.nextVertexStart
	s.ReservedVertexCount = reservedVertexCount
	s.IndexStart = -1
	if c.indexed {
		s.IndexStart = c.nextIndexStart
		s.ReservedIndexCount = reservedIndexCount
	}
	s.Active = true
	s.Visible = true
	s.Owner = meta.Owner
	s.BBoxOnly = meta.BBoxOnly
	s.Anchor = meta.Anchor

	c.nextVertexStart += reservedVertexCount
	if c.indexed {
		c.nextIndexStart += reservedIndexCount
	}

	c.writeSlot(s, g)
	c.syncDrawRange()
	return id, nil
}

// SetGeometryAt overwrites a slot's geometry in place. The new geometry
// must match the container layout and fit within the slot's reserved
// capacity; exceeding the reservation requires delete + re-add.
func (c *Container) SetGeometryAt(id int, g *scene.Geometry) error {
	s, err := c.table.get(id)
	if err != nil {
		return fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}
	if err := c.checkLayout(g); err != nil {
		return err
	}
	if g.VertexCount() > s.ReservedVertexCount || len(g.Index) > s.ReservedIndexCount {
		return fmt.Errorf("container %d slot %d: %w: %d/%d vertices, %d/%d indices",
			c.id, id, ErrReservedOverflow, g.VertexCount(), s.ReservedVertexCount, len(g.Index), s.ReservedIndexCount)
	}
	c.writeSlot(s, g)
	return nil
}

// writeSlot copies geometry into a slot's reserved ranges, zero-filling
// the unused tail of each reservation, and pushes the ranges to the
// uploader. Indices are rebased by the slot's vertex start. The cached
// bounding box is invalidated.
func (c *Container) writeSlot(s *Slot, g *scene.Geometry) {
	for i, l := range c.layout {
		dst := c.attrs[i][s.VertexStart*l.ItemSize : (s.VertexStart+s.ReservedVertexCount)*l.ItemSize]
		n := copy(dst, g.Attrs[i].Data)
		for j := n; j < len(dst); j++ {
			dst[j] = 0
		}
		c.up.WriteVertex(c.id, i, s.VertexStart*l.ItemSize, dst)
	}
	s.VertexCount = g.VertexCount()

	if c.indexed {
		for j, idx := range g.Index {
			c.index.Set(s.IndexStart+j, idx+uint32(s.VertexStart))
		}
		for j := len(g.Index); j < s.ReservedIndexCount; j++ {
			c.index.Set(s.IndexStart+j, 0)
		}
		s.IndexCount = len(g.Index)
		c.flushIndex(s.IndexStart, s.ReservedIndexCount)
	}

	s.bounds = nil
}

// DeleteGeometry marks the slot deleted and makes its id reusable. The
// buffer hole is reclaimed by the next Optimize. O(1).
func (c *Container) DeleteGeometry(id int) error {
	if _, err := c.table.get(id); err != nil {
		return fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}
	c.table.release(id)
	return nil
}

// Optimize repacks all active slots contiguously from offset 0, in
// ascending order of their current vertex start, closing the holes left
// by deletions. Index values are rebased by each slot's vertex-start
// delta, so post-compaction every index still resolves inside its
// owning slot's vertex range. Slot ids stay valid; only byte ranges
// move. The free id list is cleared. Idempotent.
func (c *Container) Optimize() {
	if c.layout == nil {
		// No geometry was ever added, so there are no arrays to repack.
		return
	}

	// Snapshot before moving: relocation mutates the very starts the
	// order is defined by.
	order := c.table.activeByVertexStart()

	vcur, icur := 0, 0
	moved := 0
	for _, id := range order {
		s := &c.table.slots[id]
		deltaV := s.VertexStart - vcur

		if deltaV > 0 {
			for i, l := range c.layout {
				src := c.attrs[i][s.VertexStart*l.ItemSize : (s.VertexStart+s.ReservedVertexCount)*l.ItemSize]
				copy(c.attrs[i][vcur*l.ItemSize:], src)
			}
			moved++
		}

		if c.indexed {
			if deltaV > 0 || s.IndexStart != icur {
				// Left-shift with rebase: the destination never passes
				// the source, so entries are read before they are
				// overwritten. Only used entries carry meaning; the
				// reserved tail is re-zeroed at the new location.
				for j := 0; j < s.IndexCount; j++ {
					c.index.Set(icur+j, c.index.At(s.IndexStart+j)-uint32(deltaV))
				}
				for j := s.IndexCount; j < s.ReservedIndexCount; j++ {
					c.index.Set(icur+j, 0)
				}
			}
			s.IndexStart = icur
			icur += s.ReservedIndexCount
		}

		s.VertexStart = vcur
		vcur += s.ReservedVertexCount
	}

	reclaimedV := c.nextVertexStart - vcur
	c.nextVertexStart = vcur
	c.nextIndexStart = icur
	c.table.freeIDs = nil

	for i, l := range c.layout {
		c.up.WriteVertex(c.id, i, 0, c.attrs[i][:vcur*l.ItemSize])
	}
	if c.indexed {
		c.flushIndex(0, icur)
	}
	c.syncDrawRange()

	if c.counters != nil {
		c.counters.CompactionEvents++
		c.counters.SlotsRepacked += moved
	}
	compactionLogger.Printf("container#%d optimize: %d active slots, %d moved, %d vertices reclaimed",
		c.id, len(order), moved, reclaimedV)
}

// BoundsAt returns the slot's axis-aligned bounding box, computed
// lazily by scanning the slot's used vertex range (through the index
// when present) and cached until the slot's geometry is rewritten.
func (c *Container) BoundsAt(id int) (geom.Box3, error) {
	s, err := c.table.get(id)
	if err != nil {
		return geom.Box3{}, fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}
	if s.bounds != nil {
		return *s.bounds, nil
	}

	box := geom.EmptyBox3()
	pos := c.attrs[0]
	is := c.layout[0].ItemSize
	at := func(v int) geom.Vec3 {
		return geom.V3(pos[v*is], pos[v*is+1], pos[v*is+2])
	}
	if is == 6 {
		// Wide-line segments: each record holds both endpoints.
		for v := s.VertexStart; v < s.VertexStart+s.VertexCount; v++ {
			box = box.ExpandByPoint(geom.V3(pos[v*6], pos[v*6+1], pos[v*6+2]))
			box = box.ExpandByPoint(geom.V3(pos[v*6+3], pos[v*6+4], pos[v*6+5]))
		}
		s.bounds = &box
		return box, nil
	}
	if c.indexed {
		for j := 0; j < s.IndexCount; j++ {
			box = box.ExpandByPoint(at(int(c.index.At(s.IndexStart + j))))
		}
	} else {
		for v := s.VertexStart; v < s.VertexStart+s.VertexCount; v++ {
			box = box.ExpandByPoint(at(v))
		}
	}
	s.bounds = &box
	return box, nil
}

// ObjectAt materializes a standalone render object for one slot: a copy
// of the slot's used attribute ranges with indices rebased to zero,
// carrying the container's kind and material. Used by the highlight
// overlay; the packed buffers are not disturbed.
func (c *Container) ObjectAt(id int) (*scene.Object, error) {
	s, err := c.table.get(id)
	if err != nil {
		return nil, fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}

	g := &scene.Geometry{Attrs: make([]scene.Attribute, len(c.layout))}
	for i, l := range c.layout {
		src := c.attrs[i][s.VertexStart*l.ItemSize : (s.VertexStart+s.VertexCount)*l.ItemSize]
		g.Attrs[i] = scene.Attribute{
			AttrLayout: l,
			Data:       append([]float32(nil), src...),
		}
	}
	if c.indexed {
		g.Index = make([]uint32, s.IndexCount)
		for j := 0; j < s.IndexCount; j++ {
			g.Index[j] = c.index.At(s.IndexStart+j) - uint32(s.VertexStart)
		}
	}

	return scene.NewPrimitive(&scene.Primitive{
		Kind:     c.kind,
		Geom:     g,
		Material: c.material,
		BBoxOnly: s.BBoxOnly,
	}), nil
}

// SetVisibleAt toggles a slot's visibility without touching its data.
func (c *Container) SetVisibleAt(id int, visible bool) error {
	s, err := c.table.get(id)
	if err != nil {
		return fmt.Errorf("container %d slot %d: %w", c.id, id, err)
	}
	s.Visible = visible
	return nil
}

// VisibleRanges returns the draw sub-ranges for visible active slots as
// parallel first/count arrays, in index entries for indexed containers
// and vertices otherwise. The renderer multi-draws these so deleted and
// hidden slots never reach the screen.
func (c *Container) VisibleRanges() (firsts, counts []int32) {
	for i := range c.table.slots {
		s := &c.table.slots[i]
		if !s.Active || !s.Visible {
			continue
		}
		if c.indexed {
			firsts = append(firsts, int32(s.IndexStart))
			counts = append(counts, int32(s.IndexCount))
		} else {
			firsts = append(firsts, int32(s.VertexStart))
			counts = append(counts, int32(s.VertexCount))
		}
	}
	return firsts, counts
}

// RegenerateSlots rewrites every active slot that carries an anchor,
// using gen to produce the replacement geometry. This is how point
// symbols are re-shaped in place on a global display-mode change
// without the caller re-submitting entities.
func (c *Container) RegenerateSlots(gen func(anchor geom.Vec3) *scene.Geometry) error {
	for id := range c.table.slots {
		s := &c.table.slots[id]
		if !s.Active || s.Anchor == nil {
			continue
		}
		if err := c.SetGeometryAt(id, gen(*s.Anchor)); err != nil {
			return err
		}
	}
	return nil
}

// ByteSize returns the allocated backing-array size in bytes (host side
// and, mirrored through the uploader, device side).
func (c *Container) ByteSize() int64 {
	var n int64
	for _, a := range c.attrs {
		n += int64(len(a)) * 4
	}
	if c.index != nil {
		n += c.index.ByteSize()
	}
	return n
}

// SlotOverhead estimates slot-bookkeeping memory in bytes.
func (c *Container) SlotOverhead() int64 {
	return int64(len(c.table.slots)) * slotRecordBytes
}

// Dispose releases the container's device buffers and drops the host
// arrays. The container must not be used afterwards.
func (c *Container) Dispose() {
	c.up.Release(c.id)
	c.attrs = nil
	c.index = nil
	c.layout = nil
	c.table = slotTable{}
	c.capacity = 0
	c.indexCapacity = 0
	c.nextVertexStart = 0
	c.nextIndexStart = 0
}

func (c *Container) flushIndex(offset, count int) {
	if c.index.Wide() {
		c.up.WriteIndex32(c.id, offset, c.index.U32()[offset:offset+count])
	} else {
		c.up.WriteIndex16(c.id, offset, c.index.U16()[offset:offset+count])
	}
}

func (c *Container) syncDrawRange() {
	if c.indexed {
		c.up.SetDrawRange(c.id, 0, c.nextIndexStart)
	} else {
		c.up.SetDrawRange(c.id, 0, c.nextVertexStart)
	}
}

// Attr exposes one packed attribute array for the renderer and tests.
func (c *Container) Attr(i int) []float32 { return c.attrs[i] }

// Index exposes the packed index array (nil when non-indexed).
func (c *Container) Index() *IndexArray { return c.index }

// UsedVertexRange returns the packed vertex span [0, nextVertexStart).
func (c *Container) UsedVertexRange() int { return c.nextVertexStart }

// UsedIndexRange returns the packed index span [0, nextIndexStart).
func (c *Container) UsedIndexRange() int { return c.nextIndexStart }
