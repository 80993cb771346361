package batch

import (
	"image/color"

	"github.com/draftview/draftview/internal/scene"
)

// OverlayKind distinguishes the two always-on-top overlay groups.
// Selection and hover exist simultaneously and independently: an entity
// can be in both.
type OverlayKind int

const (
	OverlaySelect OverlayKind = iota
	OverlayHover
)

// Overlay holds the cloned render representations of selected and
// hovered entities. Entries are purely a rendering-time artifact: they
// never touch the packed buffers and are dropped wholesale on
// unselect/unhover. Each entry's material is a recolored clone, owned
// by the overlay and disposed on removal.
type Overlay struct {
	selection map[string][]*scene.Object
	hover     map[string][]*scene.Object
}

func NewOverlay() *Overlay {
	return &Overlay{
		selection: make(map[string][]*scene.Object),
		hover:     make(map[string][]*scene.Object),
	}
}

func (o *Overlay) group(kind OverlayKind) map[string][]*scene.Object {
	if kind == OverlayHover {
		return o.hover
	}
	return o.selection
}

// Add places already-cloned, recolored objects for an entity into one
// overlay group. The overlay takes ownership of the clones and their
// materials.
func (o *Overlay) Add(kind OverlayKind, entity string, objs []*scene.Object) {
	o.group(kind)[entity] = append(o.group(kind)[entity], objs...)
}

// Remove drops every overlay entry for the entity from one group,
// disposing the cloned materials.
func (o *Overlay) Remove(kind OverlayKind, entity string) {
	g := o.group(kind)
	objs, ok := g[entity]
	if !ok {
		return
	}
	for _, obj := range objs {
		disposeMaterials(obj)
	}
	delete(g, entity)
}

// RemoveEntity drops the entity from both groups.
func (o *Overlay) RemoveEntity(entity string) {
	o.Remove(OverlaySelect, entity)
	o.Remove(OverlayHover, entity)
}

// Has reports whether the entity has entries in the given group.
func (o *Overlay) Has(kind OverlayKind, entity string) bool {
	_, ok := o.group(kind)[entity]
	return ok
}

// Objects returns every object in one overlay group, for the renderer
// to draw on top of the packed containers.
func (o *Overlay) Objects(kind OverlayKind) []*scene.Object {
	var out []*scene.Object
	for _, objs := range o.group(kind) {
		out = append(out, objs...)
	}
	return out
}

// Len returns the entity count in one group.
func (o *Overlay) Len(kind OverlayKind) int { return len(o.group(kind)) }

// Clear empties both groups, disposing all cloned materials.
func (o *Overlay) Clear() {
	for entity := range o.selection {
		o.Remove(OverlaySelect, entity)
	}
	for entity := range o.hover {
		o.Remove(OverlayHover, entity)
	}
}

// emphasisClone returns obj with every primitive's material replaced by
// a recolored clone owned by the overlay.
func emphasisClone(obj *scene.Object, recolor func(color.RGBA) color.RGBA) *scene.Object {
	clone := obj.Clone()
	recolorMaterials(clone, recolor)
	return clone
}

func recolorMaterials(obj *scene.Object, recolor func(color.RGBA) color.RGBA) {
	if obj.Prim != nil && obj.Prim.Material != nil {
		m := obj.Prim.Material.Clone()
		m.Color = recolor(m.Color)
		obj.Prim.Material = m
	}
	for _, c := range obj.Children {
		recolorMaterials(c, recolor)
	}
}

func disposeMaterials(obj *scene.Object) {
	if obj.Prim != nil && obj.Prim.Material != nil {
		obj.Prim.Material.Dispose()
	}
	for _, c := range obj.Children {
		disposeMaterials(c)
	}
}
