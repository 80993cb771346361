package batch

import (
	"fmt"

	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/scene"
	"github.com/draftview/draftview/internal/style"
)

// PackedContainer is the contract shared by Container and
// WideLineContainer; the Group owns and drives its containers purely
// through it.
type PackedContainer interface {
	ID() int
	Kind() scene.Kind
	Indexed() bool
	Material() *style.Material
	MaterialID() string
	SetMaterial(*style.Material)

	AddGeometry(g *scene.Geometry, reservedVertexCount, reservedIndexCount int, meta SlotMeta) (int, error)
	SetGeometryAt(id int, g *scene.Geometry) error
	DeleteGeometry(id int) error
	Optimize()
	SetGeometrySize(newVertexCapacity, newIndexCapacity int) error

	BoundsAt(id int) (geom.Box3, error)
	ObjectAt(id int) (*scene.Object, error)
	Intersect(id int, ray geom.Ray, p RayParams) ([]Intersection, error)
	IntersectAll(ray geom.Ray, p RayParams) []Intersection
	SetVisibleAt(id int, visible bool) error
	VisibleRanges() (firsts, counts []int32)
	RegenerateSlots(gen func(anchor geom.Vec3) *scene.Geometry) error

	GeometryCount() int
	SlotCount() int
	ByteSize() int64
	SlotOverhead() int64
	Dispose()
}

var (
	_ PackedContainer = (*Container)(nil)
	_ PackedContainer = (*WideLineContainer)(nil)
)

// containerKey buckets containers: one per primitive kind, index mode
// and material identity. Point-symbol lines get their own bucket so
// display-mode regeneration can find them.
type containerKey struct {
	kind        scene.Kind
	indexed     bool
	pointSymbol bool
	material    string
}

// SlotRef names one packed slot by (container id, slot id). The entity
// index stores only these integer keys, never container or slot
// pointers, which keeps ownership acyclic across compaction and
// disposal.
type SlotRef struct {
	Container int
	Slot      int
}

// Group coordinates the packed containers for one logical layer or
// scene scope. It is the sole caller of container mutation methods:
// entities go in as composite scene objects and come out wholesale by
// id; partial entity updates are modeled as remove-then-add.
type Group struct {
	up       Uploader
	overlay  *Overlay
	counters Counters

	nextContainerID int
	containers      map[containerKey]PackedContainer
	byID            map[int]PackedContainer

	entitySlots map[string][]SlotRef
	unbatched   map[string][]*scene.Object
	hidden      map[string]bool
}

// NewGroup creates an empty group. A nil uploader means headless
// operation (the packed host arrays are the only storage).
func NewGroup(up Uploader) *Group {
	if up == nil {
		up = NopUploader{}
	}
	return &Group{
		up:          up,
		overlay:     NewOverlay(),
		containers:  make(map[containerKey]PackedContainer),
		byID:        make(map[int]PackedContainer),
		entitySlots: make(map[string][]SlotRef),
		unbatched:   make(map[string][]*scene.Object),
		hidden:      make(map[string]bool),
	}
}

func keyFor(p *scene.Primitive) containerKey {
	return containerKey{
		kind:        p.Kind,
		indexed:     p.Geom.Indexed(),
		pointSymbol: p.PointSymbol,
		material:    p.Material.ID(),
	}
}

// containerFor returns the container for a primitive's bucket, creating
// it lazily on the first primitive of that (kind, material) pairing.
func (g *Group) containerFor(p *scene.Primitive) PackedContainer {
	key := keyFor(p)
	if c, ok := g.containers[key]; ok {
		return c
	}

	id := g.nextContainerID
	g.nextContainerID++
	var c PackedContainer
	if p.Kind == scene.KindWideLines {
		w := NewWideLineContainer(id, p.Material, g.up)
		w.setCounters(&g.counters)
		c = w
	} else {
		cc := NewContainer(id, p.Kind, p.Material, p.Geom.Indexed(), g.up)
		cc.setCounters(&g.counters)
		c = cc
	}
	g.containers[key] = c
	g.byID[id] = c
	batchLogger.Printf("container#%d created for %s material=%s", id, kindKey(p.Kind, p.Geom.Indexed()), p.Material.ID())
	return c
}

// AddEntity traverses the composite object depth-first and packs every
// primitive into the matching container, recording the returned slots
// against the entity id. Primitives flagged NoBatch are cloned into
// world space and kept on the unbatched escape list instead. Each
// primitive's world transform is baked into its geometry before
// packing: containers store world-space vertices only.
//
// A layout or index mismatch is a fatal configuration error: processing
// of the entity stops and the error is surfaced. Slots already packed
// for the entity stay recorded, so the caller can RemoveEntity to roll
// back before skipping or aborting.
func (g *Group) AddEntity(entity string, obj *scene.Object) error {
	if g.HasEntity(entity) {
		return fmt.Errorf("entity %q already added (updates are remove-then-add)", entity)
	}

	return obj.Walk(func(p *scene.Primitive, world geom.Mat4) error {
		if p.Geom == nil || p.Geom.VertexCount() == 0 {
			return nil
		}

		if p.NoBatch {
			clone := scene.NewPrimitive(clonePrimitiveWorld(p, world))
			g.unbatched[entity] = append(g.unbatched[entity], clone)
			return nil
		}

		baked := p.Geom.Clone()
		baked.Bake(world)

		reservedV, reservedI := p.ReservedVertices, p.ReservedIndices
		if reservedV == 0 {
			reservedV = -1
		}
		if reservedI == 0 {
			reservedI = -1
		}

		c := g.containerFor(p)
		slot, err := c.AddGeometry(baked, reservedV, reservedI, SlotMeta{
			Owner:    entity,
			BBoxOnly: p.BBoxOnly,
			Anchor:   p.Anchor,
		})
		if err != nil {
			return fmt.Errorf("entity %q: %w", entity, err)
		}
		g.entitySlots[entity] = append(g.entitySlots[entity], SlotRef{Container: c.ID(), Slot: slot})
		return nil
	})
}

// clonePrimitiveWorld deep-copies a primitive with its world transform
// baked into the geometry, so the clone renders identically with an
// identity transform of its own.
func clonePrimitiveWorld(p *scene.Primitive, world geom.Mat4) *scene.Primitive {
	out := *p
	out.Geom = p.Geom.Clone()
	out.Geom.Bake(world)
	if p.Anchor != nil {
		a := world.MulPoint(*p.Anchor)
		out.Anchor = &a
	}
	return &out
}

// RemoveEntity deletes every slot recorded for the entity and runs one
// Optimize per touched container, not per slot, so the compaction cost
// is batched. Unbatched clones and overlay entries are dropped too.
// Returns whether anything was removed; unknown ids are a no-op.
func (g *Group) RemoveEntity(entity string) bool {
	removed := false

	if refs, ok := g.entitySlots[entity]; ok {
		touched := make(map[int]PackedContainer)
		for _, r := range refs {
			c := g.byID[r.Container]
			if err := c.DeleteGeometry(r.Slot); err != nil {
				batchLogger.Printf("remove %q: %v", entity, err)
				continue
			}
			touched[r.Container] = c
		}
		for _, c := range touched {
			c.Optimize()
		}
		delete(g.entitySlots, entity)
		removed = true
	}

	if _, ok := g.unbatched[entity]; ok {
		delete(g.unbatched, entity)
		removed = true
	}

	delete(g.hidden, entity)
	g.overlay.RemoveEntity(entity)
	return removed
}

// HasEntity reports whether the entity is tracked, batched or not.
func (g *Group) HasEntity(entity string) bool {
	if _, ok := g.entitySlots[entity]; ok {
		return true
	}
	_, ok := g.unbatched[entity]
	return ok
}

// EntitySlots returns the slot refs recorded for an entity.
func (g *Group) EntitySlots(entity string) []SlotRef {
	return g.entitySlots[entity]
}

// IntersectsEntity reports whether the ray hits any of the entity's
// slots or unbatched objects, short-circuiting on the first hit.
func (g *Group) IntersectsEntity(entity string, ray geom.Ray, p RayParams) bool {
	for _, r := range g.entitySlots[entity] {
		hits, err := g.byID[r.Container].Intersect(r.Slot, ray, p)
		if err != nil {
			batchLogger.Printf("intersect %q: %v", entity, err)
			continue
		}
		if len(hits) > 0 {
			return true
		}
	}
	for _, obj := range g.unbatched[entity] {
		hit := false
		_ = obj.Walk(func(prim *scene.Primitive, _ geom.Mat4) error {
			if intersectGeometry(prim.Kind, prim.Geom, prim.BBoxOnly, ray, p) {
				hit = true
			}
			return nil
		})
		if hit {
			return true
		}
	}
	return false
}

// IntersectAll hit-tests every container and unbatched object, tagging
// hits with their owning entity.
func (g *Group) IntersectAll(ray geom.Ray, p RayParams) []Intersection {
	var hits []Intersection
	for _, c := range g.byID {
		hits = append(hits, c.IntersectAll(ray, p)...)
	}
	for entity, objs := range g.unbatched {
		if g.hidden[entity] {
			continue
		}
		for _, obj := range objs {
			_ = obj.Walk(func(prim *scene.Primitive, _ geom.Mat4) error {
				if intersectGeometry(prim.Kind, prim.Geom, prim.BBoxOnly, ray, p) {
					hits = append(hits, Intersection{Entity: entity, Container: -1, Slot: -1})
				}
				return nil
			})
		}
	}
	return hits
}

// SetEntityVisible toggles visibility of every slot and unbatched
// object belonging to the entity. Packed data is untouched.
func (g *Group) SetEntityVisible(entity string, visible bool) {
	for _, r := range g.entitySlots[entity] {
		if err := g.byID[r.Container].SetVisibleAt(r.Slot, visible); err != nil {
			batchLogger.Printf("visibility %q: %v", entity, err)
		}
	}
	if visible {
		delete(g.hidden, entity)
	} else if _, ok := g.unbatched[entity]; ok {
		g.hidden[entity] = true
	}
}

// UpdateMaterial re-keys every container bucketed under the old
// material id to the new material, swapping the reference in place (no
// data movement), and swaps matching unbatched objects' materials too.
// Used for mass re-style when a layer's color is edited (ByLayer
// materials).
func (g *Group) UpdateMaterial(oldID string, m *style.Material) {
	for key, c := range g.containers {
		if key.material != oldID {
			continue
		}
		delete(g.containers, key)
		key.material = m.ID()
		c.SetMaterial(m)
		g.containers[key] = c
	}
	for _, objs := range g.unbatched {
		for _, obj := range objs {
			swapMaterial(obj, oldID, m)
		}
	}
}

func swapMaterial(obj *scene.Object, oldID string, m *style.Material) {
	if obj.Prim != nil && obj.Prim.Material != nil && obj.Prim.Material.ID() == oldID {
		obj.Prim.Material = m
	}
	for _, c := range obj.Children {
		swapMaterial(c, oldID, m)
	}
}

// RegeneratePointSymbols rewrites every point-symbol slot's geometry in
// place from its stored anchor, for a global display-mode change. The
// caller does not re-submit entities; slots were reserved with enough
// capacity for the largest symbol shape.
func (g *Group) RegeneratePointSymbols(mode scene.PointDisplayMode, size float32) error {
	for key, c := range g.containers {
		if !key.pointSymbol {
			continue
		}
		err := c.RegenerateSlots(func(anchor geom.Vec3) *scene.Geometry {
			return scene.PointSymbolGeometry(anchor, mode, size)
		})
		if err != nil {
			return fmt.Errorf("regenerate point symbols: %w", err)
		}
	}
	return nil
}

// Select places a highlight-overlay clone of the entity's renderables
// into the selection group. Entities with more than HighlightSlotCap
// packed slots are skipped (degraded but successful; counted in stats).
func (g *Group) Select(entity string) { g.highlight(OverlaySelect, entity) }

// Unselect removes the entity's selection overlay entries.
func (g *Group) Unselect(entity string) { g.overlay.Remove(OverlaySelect, entity) }

// Hover places a hover-overlay clone of the entity's renderables.
func (g *Group) Hover(entity string) { g.highlight(OverlayHover, entity) }

// Unhover removes the entity's hover overlay entries.
func (g *Group) Unhover(entity string) { g.overlay.Remove(OverlayHover, entity) }

// Overlay exposes the overlay set for the renderer.
func (g *Group) Overlay() *Overlay { return g.overlay }

func (g *Group) highlight(kind OverlayKind, entity string) {
	if g.overlay.Has(kind, entity) {
		return
	}

	refs := g.entitySlots[entity]
	if len(refs) > HighlightSlotCap {
		g.counters.HighlightSkips++
		batchLogger.Printf("highlight skipped for %q: %d slots exceeds cap %d", entity, len(refs), HighlightSlotCap)
		return
	}

	recolor := style.Highlight
	if kind == OverlayHover {
		recolor = style.Hover
	}

	var clones []*scene.Object
	for _, r := range refs {
		obj, err := g.byID[r.Container].ObjectAt(r.Slot)
		if err != nil {
			batchLogger.Printf("highlight %q: %v", entity, err)
			continue
		}
		clones = append(clones, emphasisClone(obj, recolor))
	}
	for _, obj := range g.unbatched[entity] {
		clones = append(clones, emphasisClone(obj, recolor))
	}
	if len(clones) > 0 {
		g.overlay.Add(kind, entity, clones)
	}
}

// Containers returns every live container, for the renderer.
func (g *Group) Containers() []PackedContainer {
	out := make([]PackedContainer, 0, len(g.byID))
	for _, c := range g.byID {
		out = append(out, c)
	}
	return out
}

// UnbatchedObjects returns the visible escape-path objects, for the
// renderer.
func (g *Group) UnbatchedObjects() []*scene.Object {
	var out []*scene.Object
	for entity, objs := range g.unbatched {
		if g.hidden[entity] {
			continue
		}
		out = append(out, objs...)
	}
	return out
}

// Stats assembles an aggregate snapshot without mutating any state.
func (g *Group) Stats() Stats {
	entities := make(map[string]struct{}, len(g.entitySlots))
	for e := range g.entitySlots {
		entities[e] = struct{}{}
	}
	for e := range g.unbatched {
		entities[e] = struct{}{}
	}

	s := Stats{
		Entities:         len(entities),
		ByKind:           make(map[string]KindStats),
		Unbatched:        make(map[string]int),
		SelectedEntities: g.overlay.Len(OverlaySelect),
		HoveredEntities:  g.overlay.Len(OverlayHover),
		Counters:         g.counters,
	}
	for _, c := range g.byID {
		k := kindKey(c.Kind(), c.Indexed())
		ks := s.ByKind[k]
		ks.Containers++
		ks.ActiveSlots += c.GeometryCount()
		ks.TotalSlots += c.SlotCount()
		ks.GPUBytes += c.ByteSize()
		ks.SlotBytes += c.SlotOverhead()
		s.ByKind[k] = ks

		s.Containers++
		s.ActiveSlots += c.GeometryCount()
		s.TotalSlots += c.SlotCount()
		s.GPUBytes += c.ByteSize()
		s.SlotBytes += c.SlotOverhead()
	}
	for _, objs := range g.unbatched {
		for _, obj := range objs {
			_ = obj.Walk(func(p *scene.Primitive, _ geom.Mat4) error {
				s.Unbatched[p.Kind.String()]++
				for i := range p.Geom.Attrs {
					s.UnbatchedBytes += int64(len(p.Geom.Attrs[i].Data)) * 4
				}
				s.UnbatchedBytes += int64(len(p.Geom.Index)) * 4
				return nil
			})
		}
	}
	return s
}

// Clear disposes every container (releasing device buffers through the
// uploader), the unbatched list and the overlay. The group is reusable
// afterwards. Disposal is explicit because device memory is not garbage
// collected.
func (g *Group) Clear() {
	for _, c := range g.byID {
		c.Dispose()
	}
	g.containers = make(map[containerKey]PackedContainer)
	g.byID = make(map[int]PackedContainer)
	g.entitySlots = make(map[string][]SlotRef)
	g.unbatched = make(map[string][]*scene.Object)
	g.hidden = make(map[string]bool)
	g.overlay.Clear()
}
