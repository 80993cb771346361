package main

import (
	"fmt"
	"image/color"
	"math/rand"

	"github.com/draftview/draftview/internal/batch"
	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/scene"
	"github.com/draftview/draftview/internal/style"
)

// layerPalette is cycled through for generated layers.
var layerPalette = []color.RGBA{
	{R: 0xe6, G: 0xe6, B: 0xe6, A: 0xff}, // outline white
	{R: 0x4f, G: 0xa3, B: 0xff, A: 0xff}, // construction blue
	{R: 0xff, G: 0xb0, B: 0x3a, A: 0xff}, // annotation orange
	{R: 0x6f, G: 0xd0, B: 0x87, A: 0xff}, // fixture green
	{R: 0xff, G: 0x6b, B: 0x6b, A: 0xff}, // alert red
	{R: 0xc9, G: 0x8f, B: 0xff, A: 0xff}, // auxiliary violet
}

// drawing owns the generated entities and their shared style cache so
// the event handlers can mutate them (delete, restyle, regenerate
// point symbols) after startup.
type drawing struct {
	group    *batch.Group
	styles   *style.Cache
	rng      *rand.Rand
	entities []string

	symbolMode scene.PointDisplayMode
	symbolSize float32
	nextID     int
}

func newDrawing(group *batch.Group, seed int64) *drawing {
	return &drawing{
		group:      group,
		styles:     style.NewCache(),
		rng:        rand.New(rand.NewSource(seed)),
		symbolMode: scene.PointCross,
		symbolSize: 6,
	}
}

func (d *drawing) layerTrait(layer int, width float32) style.Trait {
	return style.Trait{
		Layer:   fmt.Sprintf("layer-%d", layer),
		Color:   layerPalette[layer%len(layerPalette)],
		Width:   width,
		ByLayer: true,
	}
}

func (d *drawing) addEntity(prefix string, obj *scene.Object) error {
	id := fmt.Sprintf("%s-%d", prefix, d.nextID)
	d.nextID++
	if err := d.group.AddEntity(id, obj); err != nil {
		return fmt.Errorf("adding %s: %w", id, err)
	}
	d.entities = append(d.entities, id)
	return nil
}

// populate generates the synthetic drawing described by the config:
// polylines, hatches, point markers, wide lines, and unbatched
// dimension callouts spread over the configured layers.
func (d *drawing) populate(cfg Config, worldW, worldH float32) error {
	layers := cfg.Drawing.Layers
	if layers < 1 {
		layers = 1
	}

	for i := 0; i < cfg.Drawing.Polylines; i++ {
		layer := d.rng.Intn(layers)
		m := d.styles.Lookup(d.layerTrait(layer, 1))
		obj, err := scene.LineStrip(d.wanderPath(worldW, worldH, 3+d.rng.Intn(8)), m)
		if err != nil {
			return err
		}
		if err := d.addEntity("polyline", obj); err != nil {
			return err
		}
	}

	for i := 0; i < cfg.Drawing.Hatches; i++ {
		layer := d.rng.Intn(layers)
		m := d.styles.Lookup(style.Trait{
			Layer:   fmt.Sprintf("layer-%d", layer),
			Color:   dim(layerPalette[layer%len(layerPalette)]),
			Pattern: "solid",
		})
		loop, holes := d.hatchOutline(worldW, worldH)
		obj, err := scene.HatchFill(loop, holes, m)
		if err != nil {
			return err
		}
		if err := d.addEntity("hatch", obj); err != nil {
			return err
		}
	}

	symbolMaterial := d.styles.Lookup(d.layerTrait(2, 1))
	for i := 0; i < cfg.Drawing.Points; i++ {
		anchor := d.randPoint(worldW, worldH)
		obj := scene.PointSymbol(anchor, d.symbolMode, d.symbolSize, symbolMaterial)
		if err := d.addEntity("point", obj); err != nil {
			return err
		}
	}

	for i := 0; i < cfg.Drawing.WideLines; i++ {
		layer := d.rng.Intn(layers)
		m := d.styles.Lookup(d.layerTrait(layer, 3+float32(d.rng.Intn(3))))
		obj, err := scene.WideLineStrip(d.wanderPath(worldW, worldH, 2+d.rng.Intn(4)), m)
		if err != nil {
			return err
		}
		if err := d.addEntity("wideline", obj); err != nil {
			return err
		}
	}

	for i := 0; i < cfg.Drawing.Dimensions; i++ {
		obj, err := d.dimensionCallout(worldW, worldH)
		if err != nil {
			return err
		}
		if err := d.addEntity("dim", obj); err != nil {
			return err
		}
	}

	return nil
}

func (d *drawing) randPoint(w, h float32) geom.Vec3 {
	return geom.V3(d.rng.Float32()*w, d.rng.Float32()*h, 0)
}

// wanderPath produces a random open polyline of n+1 points.
func (d *drawing) wanderPath(w, h float32, n int) []geom.Vec3 {
	pts := make([]geom.Vec3, 0, n+1)
	p := d.randPoint(w, h)
	pts = append(pts, p)
	for i := 0; i < n; i++ {
		p = p.Add(geom.V3((d.rng.Float32()-0.5)*120, (d.rng.Float32()-0.5)*120, 0))
		pts = append(pts, p)
	}
	return pts
}

// hatchOutline produces a random axis-aligned quad, occasionally with a
// rectangular hole to exercise the hole path of the triangulator.
func (d *drawing) hatchOutline(w, h float32) (loop []geom.Vec3, holes [][]geom.Vec3) {
	origin := d.randPoint(w, h)
	dw := 30 + d.rng.Float32()*90
	dh := 30 + d.rng.Float32()*90
	loop = []geom.Vec3{
		origin,
		origin.Add(geom.V3(dw, 0, 0)),
		origin.Add(geom.V3(dw, dh, 0)),
		origin.Add(geom.V3(0, dh, 0)),
	}
	if d.rng.Intn(3) == 0 {
		hx, hy := dw/4, dh/4
		holes = append(holes, []geom.Vec3{
			origin.Add(geom.V3(hx, hy, 0)),
			origin.Add(geom.V3(3*hx, hy, 0)),
			origin.Add(geom.V3(3*hx, 3*hy, 0)),
			origin.Add(geom.V3(hx, 3*hy, 0)),
		})
	}
	return loop, holes
}

// dimensionCallout builds an unbatched leader line with arrow ticks.
// Callouts are redrawn frequently in a real editor, so they take the
// escape path instead of being packed.
func (d *drawing) dimensionCallout(w, h float32) (*scene.Object, error) {
	m := d.styles.Lookup(d.layerTrait(4, 1))
	a := d.randPoint(w, h)
	b := a.Add(geom.V3(40+d.rng.Float32()*80, (d.rng.Float32()-0.5)*60, 0))
	tick := float32(5)
	obj, err := scene.LineSegments([]geom.Vec3{
		a, b,
		a.Add(geom.V3(-tick, -tick, 0)), a.Add(geom.V3(tick, tick, 0)),
		b.Add(geom.V3(-tick, -tick, 0)), b.Add(geom.V3(tick, tick, 0)),
	}, m)
	if err != nil {
		return nil, err
	}
	obj.Prim.NoBatch = true
	obj.Prim.BBoxOnly = true
	return obj, nil
}

// delete removes an entity from both the group and the id list.
func (d *drawing) delete(id string) {
	if !d.group.RemoveEntity(id) {
		return
	}
	for i, e := range d.entities {
		if e == id {
			d.entities = append(d.entities[:i], d.entities[i+1:]...)
			break
		}
	}
}

// cycleSymbolMode advances the global point display mode and
// regenerates every packed point symbol in place.
func (d *drawing) cycleSymbolMode() error {
	d.symbolMode = (d.symbolMode + 1) % 4
	return d.group.RegeneratePointSymbols(d.symbolMode, d.symbolSize)
}

func dim(c color.RGBA) color.RGBA {
	return color.RGBA{R: c.R / 3, G: c.G / 3, B: c.B / 3, A: c.A}
}
