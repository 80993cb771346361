package style

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheResolvesIdenticalTraitsToOneMaterial(t *testing.T) {
	c := NewCache()
	trait := Trait{Layer: "walls", Color: color.RGBA{R: 200, A: 255}, Width: 2}

	m1 := c.Lookup(trait)
	m2 := c.Lookup(trait)
	assert.Same(t, m1, m2, "identical traits share one instance")
	assert.Equal(t, 1, c.Len())

	assert.Equal(t, trait.Color, m1.Color)
	assert.Equal(t, float32(2), m1.LineWidth)
}

func TestCacheDistinguishesTraits(t *testing.T) {
	c := NewCache()
	base := Trait{Layer: "walls", Color: color.RGBA{R: 200, A: 255}, Width: 2}

	variants := []Trait{
		{Layer: "doors", Color: base.Color, Width: base.Width},
		{Layer: base.Layer, Color: color.RGBA{G: 200, A: 255}, Width: base.Width},
		{Layer: base.Layer, Color: base.Color, Width: 3},
		{Layer: base.Layer, Color: base.Color, Width: base.Width, Pattern: "dashed"},
	}
	m := c.Lookup(base)
	for _, v := range variants {
		assert.NotSame(t, m, c.Lookup(v), "%+v must not collide with the base trait", v)
	}
	assert.Equal(t, len(variants)+1, c.Len())
}

func TestMaterialCloneAndDispose(t *testing.T) {
	m := NewMaterial("base", color.RGBA{R: 10, G: 20, B: 30, A: 255})
	m.LineWidth = 2

	c := m.Clone()
	assert.Equal(t, m.Color, c.Color)
	assert.Equal(t, m.LineWidth, c.LineWidth)
	assert.Equal(t, m.ID(), c.ID())

	c.Dispose()
	assert.True(t, c.Disposed())
	assert.False(t, m.Disposed(), "disposing a clone leaves the original alive")

	renamed := m.WithID("other")
	assert.Equal(t, "other", renamed.ID())
	assert.Equal(t, "base", m.ID())
}

func TestCacheDispose(t *testing.T) {
	c := NewCache()
	m := c.Lookup(Trait{Layer: "x", Color: color.RGBA{A: 255}})

	c.Dispose()
	assert.True(t, m.Disposed())
	assert.Equal(t, 0, c.Len())
}

func TestEmphasisColors(t *testing.T) {
	base := color.RGBA{R: 255, A: 255}

	hl := Highlight(base)
	hov := Hover(base)

	assert.NotEqual(t, base, hl)
	assert.NotEqual(t, base, hov)
	assert.NotEqual(t, hl, hov, "selection and hover read differently")
	assert.Equal(t, base.A, hl.A, "alpha is preserved")

	// Both treatments pull toward blue.
	assert.Greater(t, hl.B, hl.R)

	// Near-black input is lifted to stay visible.
	dark := Highlight(color.RGBA{R: 5, G: 5, B: 5, A: 255})
	assert.Greater(t, int(dark.B), 60)
}
