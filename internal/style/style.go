// Package style provides the material model the batching engine buckets
// geometry by. Materials are identity-keyed: the engine never inspects
// material internals beyond the identity key, the ByLayer flag, and
// Dispose. Colors are derived with go-colorful so highlight/hover
// emphasis works uniformly across arbitrary layer colors.
package style

import (
	"fmt"
	"image/color"
	"sync/atomic"

	"github.com/lucasb-eyer/go-colorful"
)

// Material carries the styling traits one packed container is keyed by.
type Material struct {
	id        string
	Color     color.RGBA
	LineWidth float32

	// ByLayer marks materials that inherit their color from the owning
	// layer. These are the ones rewritten wholesale when a layer's color
	// is edited (see Group.UpdateMaterial).
	ByLayer bool

	disposed atomic.Bool
}

// NewMaterial creates a material with the given identity key.
func NewMaterial(id string, c color.RGBA) *Material {
	return &Material{id: id, Color: c, LineWidth: 1}
}

// ID returns the material's identity key. Containers are bucketed by
// this key; two materials with equal keys are interchangeable.
func (m *Material) ID() string { return m.id }

// Clone returns an undisposed copy with the same traits. Clones share
// the identity key; overlay code that needs a distinct key should rekey
// with WithID.
func (m *Material) Clone() *Material {
	return &Material{id: m.id, Color: m.Color, LineWidth: m.LineWidth, ByLayer: m.ByLayer}
}

// WithID returns a clone of m keyed by the given identity.
func (m *Material) WithID(id string) *Material {
	c := m.Clone()
	c.id = id
	return c
}

// Dispose releases the material. Disposing twice is a no-op.
func (m *Material) Dispose() {
	m.disposed.Store(true)
}

// Disposed reports whether Dispose has been called.
func (m *Material) Disposed() bool {
	return m.disposed.Load()
}

// Trait is the style key the cache resolves materials by.
type Trait struct {
	Layer   string
	Color   color.RGBA
	Width   float32
	Pattern string // line-type / fill-pattern name, "" for continuous
	ByLayer bool
}

func (t Trait) key() string {
	return fmt.Sprintf("%s/%02x%02x%02x%02x/%g/%s", t.Layer, t.Color.R, t.Color.G, t.Color.B, t.Color.A, t.Width, t.Pattern)
}

// Cache resolves traits to shared material instances, creating them
// lazily. One cache per drawing; Dispose tears down every material it
// handed out.
type Cache struct {
	materials map[string]*Material
}

func NewCache() *Cache {
	return &Cache{materials: make(map[string]*Material)}
}

// Lookup returns the material for the given trait, creating it on first
// use. Identical traits always return the same instance, which is what
// makes container bucketing effective.
func (c *Cache) Lookup(t Trait) *Material {
	k := t.key()
	if m, ok := c.materials[k]; ok {
		return m
	}
	m := NewMaterial(k, t.Color)
	m.LineWidth = t.Width
	m.ByLayer = t.ByLayer
	c.materials[k] = m
	return m
}

// Len returns the number of cached materials.
func (c *Cache) Len() int { return len(c.materials) }

// Dispose releases every cached material and empties the cache.
func (c *Cache) Dispose() {
	for k, m := range c.materials {
		m.Dispose()
		delete(c.materials, k)
	}
}

// Highlight returns the selection-emphasis color for base: shifted
// toward a saturated blue-cyan, keeping enough of the base luminance to
// stay readable on dark backgrounds.
func Highlight(base color.RGBA) color.RGBA {
	return emphasize(base, 210, 0.9)
}

// Hover returns the hover-emphasis color for base, a lighter treatment
// than selection.
func Hover(base color.RGBA) color.RGBA {
	return emphasize(base, 190, 0.55)
}

func emphasize(base color.RGBA, hue, strength float64) color.RGBA {
	c := colorful.Color{R: float64(base.R) / 255, G: float64(base.G) / 255, B: float64(base.B) / 255}
	_, _, l := c.Hsl()

	// Keep very dark colors visible once emphasized.
	if l < 0.35 {
		l = 0.35
	}
	target := colorful.Hsl(hue, 1.0, l)
	mixed := c.BlendLab(target, strength).Clamped()

	r, g, b := mixed.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: base.A}
}
