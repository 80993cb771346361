package batch

import (
	"fmt"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/scene"
	"github.com/draftview/draftview/internal/style"
)

// recordingUploader counts uploader traffic per container so tests can
// assert on device-side effects without a GL context.
type recordingUploader struct {
	registered map[int]ContainerInfo
	released   map[int]int
	drawRanges map[int][2]int
	wideIndex  map[int]bool
}

var _ Uploader = (*recordingUploader)(nil)

func newRecordingUploader() *recordingUploader {
	return &recordingUploader{
		registered: make(map[int]ContainerInfo),
		released:   make(map[int]int),
		drawRanges: make(map[int][2]int),
		wideIndex:  make(map[int]bool),
	}
}

func (r *recordingUploader) Register(c int, info ContainerInfo) { r.registered[c] = info }
func (r *recordingUploader) AllocVertex(int, int, int)          {}
func (r *recordingUploader) WriteVertex(int, int, int, []float32) {}
func (r *recordingUploader) AllocIndex(c, _ int, wide bool)     { r.wideIndex[c] = wide }
func (r *recordingUploader) WriteIndex16(int, int, []uint16)    {}
func (r *recordingUploader) WriteIndex32(int, int, []uint32)    {}
func (r *recordingUploader) SetDrawRange(c, start, count int)   { r.drawRanges[c] = [2]int{start, count} }
func (r *recordingUploader) Release(c int)                      { r.released[c]++ }

func mustLineStrip(t *testing.T, m *style.Material, pts ...geom.Vec3) *scene.Object {
	t.Helper()
	obj, err := scene.LineStrip(pts, m)
	require.NoError(t, err)
	return obj
}

func redMaterial() *style.Material {
	return style.NewMaterial("red", color.RGBA{R: 255, A: 255})
}

func blueMaterial() *style.Material {
	return style.NewMaterial("blue", color.RGBA{B: 255, A: 255})
}

func TestGroupBucketsByKindAndMaterial(t *testing.T) {
	g := NewGroup(nil)
	red, blue := redMaterial(), blueMaterial()

	require.NoError(t, g.AddEntity("a", mustLineStrip(t, red, geom.V3(0, 0, 0), geom.V3(1, 0, 0))))
	require.NoError(t, g.AddEntity("b", mustLineStrip(t, red, geom.V3(2, 0, 0), geom.V3(3, 0, 0))))
	assert.Len(t, g.Containers(), 1, "same kind and material share a container")

	require.NoError(t, g.AddEntity("c", mustLineStrip(t, blue, geom.V3(4, 0, 0), geom.V3(5, 0, 0))))
	assert.Len(t, g.Containers(), 2, "a new material opens a new container")

	require.NoError(t, g.AddEntity("d", scene.PointCloud([]geom.Vec3{{X: 1}}, red)))
	assert.Len(t, g.Containers(), 3, "a new kind opens a new container")

	// A composite entity's slots all map back to it.
	refs := g.EntitySlots("a")
	require.Len(t, refs, 1)
	assert.True(t, g.HasEntity("a"))
	assert.False(t, g.HasEntity("nope"))
}

func TestGroupRejectsDuplicateEntity(t *testing.T) {
	g := NewGroup(nil)
	red := redMaterial()

	require.NoError(t, g.AddEntity("a", mustLineStrip(t, red, geom.V3(0, 0, 0), geom.V3(1, 0, 0))))
	err := g.AddEntity("a", mustLineStrip(t, red, geom.V3(2, 0, 0), geom.V3(3, 0, 0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already added")
}

func TestGroupBakesWorldTransform(t *testing.T) {
	g := NewGroup(nil)

	obj := scene.NewObject()
	obj.Transform = geom.Translation(10, 20, 0)
	obj.Add(mustLineStrip(t, redMaterial(), geom.V3(0, 0, 0), geom.V3(1, 0, 0)))
	require.NoError(t, g.AddEntity("moved", obj))

	refs := g.EntitySlots("moved")
	require.Len(t, refs, 1)
	box, err := g.byID[refs[0].Container].BoundsAt(refs[0].Slot)
	require.NoError(t, err)
	assert.Equal(t, float32(10), box.Min.X)
	assert.Equal(t, float32(20), box.Min.Y)
	assert.Equal(t, float32(11), box.Max.X)
}

func TestRemoveEntityCompactsOncePerContainer(t *testing.T) {
	g := NewGroup(nil)
	red := redMaterial()

	// One entity spanning three containers: lines, mesh, points.
	ent := scene.NewObject()
	ent.Add(mustLineStrip(t, red, geom.V3(0, 0, 0), geom.V3(1, 0, 0)))
	ent.Add(mustLineStrip(t, red, geom.V3(2, 0, 0), geom.V3(3, 0, 0)))
	hatch, err := scene.HatchFill([]geom.Vec3{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1},
	}, nil, red)
	require.NoError(t, err)
	ent.Add(hatch)
	ent.Add(scene.PointCloud([]geom.Vec3{{X: 5}}, red))
	require.NoError(t, g.AddEntity("wide", ent))
	require.Len(t, g.Containers(), 3)

	removed := g.RemoveEntity("wide")
	assert.True(t, removed)
	assert.Equal(t, 3, g.Stats().Counters.CompactionEvents,
		"one optimize per touched container, not per slot")
	assert.False(t, g.HasEntity("wide"))

	// Unknown ids are a no-op.
	assert.False(t, g.RemoveEntity("wide"))
	assert.Equal(t, 3, g.Stats().Counters.CompactionEvents)
}

func TestUnbatchedEscapePath(t *testing.T) {
	g := NewGroup(nil)

	obj := mustLineStrip(t, redMaterial(), geom.V3(0, 0, 0), geom.V3(1, 0, 0))
	obj.Prim.NoBatch = true
	require.NoError(t, g.AddEntity("label", obj))

	assert.Empty(t, g.Containers(), "NoBatch primitives never open containers")
	assert.Len(t, g.UnbatchedObjects(), 1)
	assert.True(t, g.HasEntity("label"))

	stats := g.Stats()
	assert.Equal(t, 1, stats.Unbatched["lines"])
	assert.Equal(t, 1, stats.Entities)

	ray := geom.MakeRay(geom.V3(0.5, 0, 10), geom.V3(0, 0, -1))
	hits := g.IntersectAll(ray, DefaultRayParams())
	require.Len(t, hits, 1)
	assert.Equal(t, "label", hits[0].Entity)
	assert.Equal(t, -1, hits[0].Container)

	g.SetEntityVisible("label", false)
	assert.Empty(t, g.UnbatchedObjects())
	assert.Empty(t, g.IntersectAll(ray, DefaultRayParams()), "hidden entities stop hit-testing")

	g.SetEntityVisible("label", true)
	assert.Len(t, g.UnbatchedObjects(), 1)
}

func TestSetEntityVisibleBatched(t *testing.T) {
	g := NewGroup(nil)
	require.NoError(t, g.AddEntity("a", mustLineStrip(t, redMaterial(), geom.V3(0, 0, 0), geom.V3(1, 0, 0))))

	c := g.Containers()[0]
	firsts, _ := c.VisibleRanges()
	require.Len(t, firsts, 1)

	g.SetEntityVisible("a", false)
	firsts, _ = c.VisibleRanges()
	assert.Empty(t, firsts)

	g.SetEntityVisible("a", true)
	firsts, _ = c.VisibleRanges()
	assert.Len(t, firsts, 1)
}

func TestIntersectsEntity(t *testing.T) {
	g := NewGroup(nil)
	require.NoError(t, g.AddEntity("seg", mustLineStrip(t, redMaterial(), geom.V3(0, 0, 0), geom.V3(10, 0, 0))))

	hit := geom.MakeRay(geom.V3(5, 0.05, 10), geom.V3(0, 0, -1))
	miss := geom.MakeRay(geom.V3(5, 5, 10), geom.V3(0, 0, -1))

	assert.True(t, g.IntersectsEntity("seg", hit, DefaultRayParams()))
	assert.False(t, g.IntersectsEntity("seg", miss, DefaultRayParams()))
	assert.False(t, g.IntersectsEntity("nope", hit, DefaultRayParams()))
}

func TestBBoxOnlyPicking(t *testing.T) {
	g := NewGroup(nil)

	// A point cloud is bbox-only: a ray through the box interior hits
	// even where no point is close.
	cloud := scene.PointCloud([]geom.Vec3{{X: 0, Y: 0}, {X: 10, Y: 10}}, redMaterial())
	require.NoError(t, g.AddEntity("cloud", cloud))

	through := geom.MakeRay(geom.V3(5, 5, 10), geom.V3(0, 0, -1))
	assert.True(t, g.IntersectsEntity("cloud", through, DefaultRayParams()),
		"bbox-only slots hit anywhere inside the box")

	// An exact line entity with the same extent misses that ray.
	require.NoError(t, g.AddEntity("diag", mustLineStrip(t, blueMaterial(), geom.V3(0, 0, 0), geom.V3(10, 0, 0))))
	assert.False(t, g.IntersectsEntity("diag", through, DefaultRayParams()))
}

func TestUpdateMaterialRekeysWithoutDataMovement(t *testing.T) {
	g := NewGroup(nil)
	red := redMaterial()

	require.NoError(t, g.AddEntity("a", mustLineStrip(t, red, geom.V3(0, 0, 0), geom.V3(1, 0, 0))))
	c := g.Containers()[0]
	before := g.Stats().Counters

	green := style.NewMaterial("green", color.RGBA{G: 255, A: 255})
	g.UpdateMaterial("red", green)

	assert.Equal(t, "green", c.MaterialID())
	assert.Equal(t, before, g.Stats().Counters, "re-keying moves no data")

	// New entities with the new material land in the re-keyed container.
	require.NoError(t, g.AddEntity("b", mustLineStrip(t, green, geom.V3(2, 0, 0), geom.V3(3, 0, 0))))
	assert.Len(t, g.Containers(), 1)
}

func TestRegeneratePointSymbols(t *testing.T) {
	g := NewGroup(nil)
	m := redMaterial()

	require.NoError(t, g.AddEntity("p1", scene.PointSymbol(geom.V3(0, 0, 0), scene.PointCross, 4, m)))
	require.NoError(t, g.AddEntity("p2", scene.PointSymbol(geom.V3(10, 0, 0), scene.PointCross, 4, m)))
	// A plain line entity shares the material but not the point-symbol
	// bucket.
	require.NoError(t, g.AddEntity("line", mustLineStrip(t, m, geom.V3(0, 5, 0), geom.V3(1, 5, 0))))
	require.Len(t, g.Containers(), 2, "point symbols get their own bucket")

	refs := g.EntitySlots("p1")
	require.Len(t, refs, 1)
	c := g.byID[refs[0].Container]
	s, err := c.(*Container).SlotAt(refs[0].Slot)
	require.NoError(t, err)
	assert.Equal(t, 4, s.VertexCount, "cross: 2 segments")
	assert.Equal(t, scene.MaxSymbolVertices, s.ReservedVertexCount)

	before := g.Stats().Counters
	require.NoError(t, g.RegeneratePointSymbols(scene.PointCrossSquare, 4))
	s, err = c.(*Container).SlotAt(refs[0].Slot)
	require.NoError(t, err)
	assert.Equal(t, 12, s.VertexCount, "cross-square: 6 segments, regenerated in place")
	assert.Equal(t, before, g.Stats().Counters, "regeneration never reallocates or compacts")
}

func TestSelectAndHoverOverlay(t *testing.T) {
	g := NewGroup(nil)
	red := redMaterial()
	require.NoError(t, g.AddEntity("a", mustLineStrip(t, red, geom.V3(0, 0, 0), geom.V3(1, 0, 0))))

	g.Select("a")
	assert.True(t, g.Overlay().Has(OverlaySelect, "a"))
	sel := g.Overlay().Objects(OverlaySelect)
	require.Len(t, sel, 1)

	// The overlay clone carries a recolored clone material, not the
	// packed container's material.
	cloneMat := sel[0].Prim.Material
	require.NotNil(t, cloneMat)
	assert.NotEqual(t, red, cloneMat)
	assert.NotEqual(t, red.Color, cloneMat.Color)

	// Hover is independent of selection.
	g.Hover("a")
	assert.True(t, g.Overlay().Has(OverlayHover, "a"))
	g.Unhover("a")
	assert.False(t, g.Overlay().Has(OverlayHover, "a"))
	assert.True(t, g.Overlay().Has(OverlaySelect, "a"))

	// Unselect disposes the clone material.
	g.Unselect("a")
	assert.False(t, g.Overlay().Has(OverlaySelect, "a"))
	assert.True(t, cloneMat.Disposed())
	assert.False(t, red.Disposed(), "the base material is untouched")

	// Stats reflect overlay membership.
	g.Select("a")
	assert.Equal(t, 1, g.Stats().SelectedEntities)
}

func TestHighlightCapSkipsHugeEntities(t *testing.T) {
	g := NewGroup(nil)
	red := redMaterial()

	huge := scene.NewObject()
	for i := 0; i <= HighlightSlotCap; i++ {
		x := float32(i)
		huge.Add(mustLineStrip(t, red, geom.V3(x, 0, 0), geom.V3(x+0.5, 0, 0)))
	}
	require.NoError(t, g.AddEntity("huge", huge))
	require.Greater(t, len(g.EntitySlots("huge")), HighlightSlotCap)

	g.Select("huge")
	assert.False(t, g.Overlay().Has(OverlaySelect, "huge"), "over-cap entities are skipped")
	assert.Equal(t, 1, g.Stats().Counters.HighlightSkips)
}

func TestRemoveEntityDropsOverlay(t *testing.T) {
	g := NewGroup(nil)
	require.NoError(t, g.AddEntity("a", mustLineStrip(t, redMaterial(), geom.V3(0, 0, 0), geom.V3(1, 0, 0))))

	g.Select("a")
	g.Hover("a")
	g.RemoveEntity("a")

	assert.False(t, g.Overlay().Has(OverlaySelect, "a"))
	assert.False(t, g.Overlay().Has(OverlayHover, "a"))
}

func TestClearReleasesDeviceBuffers(t *testing.T) {
	up := newRecordingUploader()
	g := NewGroup(up)
	red := redMaterial()

	require.NoError(t, g.AddEntity("a", mustLineStrip(t, red, geom.V3(0, 0, 0), geom.V3(1, 0, 0))))
	require.NoError(t, g.AddEntity("b", scene.PointCloud([]geom.Vec3{{X: 1}}, red)))
	require.Len(t, up.registered, 2)

	g.Clear()
	for id := range up.registered {
		assert.Equal(t, 1, up.released[id], "container %d released exactly once", id)
	}
	assert.Empty(t, g.Containers())
	assert.Zero(t, g.Stats().Entities)

	// The group is reusable after Clear.
	require.NoError(t, g.AddEntity("c", mustLineStrip(t, red, geom.V3(0, 0, 0), geom.V3(1, 0, 0))))
	assert.Len(t, g.Containers(), 1)
}

func TestGroupStats(t *testing.T) {
	g := NewGroup(nil)
	red := redMaterial()

	for i := 0; i < 5; i++ {
		require.NoError(t, g.AddEntity(fmt.Sprintf("e%d", i),
			mustLineStrip(t, red, geom.V3(float32(i), 0, 0), geom.V3(float32(i)+1, 0, 0))))
	}
	nob := mustLineStrip(t, red, geom.V3(0, 9, 0), geom.V3(1, 9, 0))
	nob.Prim.NoBatch = true
	require.NoError(t, g.AddEntity("label", nob))

	s := g.Stats()
	assert.Equal(t, 6, s.Entities)
	assert.Equal(t, 1, s.Containers)
	assert.Equal(t, 5, s.ActiveSlots)
	assert.Greater(t, s.GPUBytes, int64(0))
	assert.Greater(t, s.SlotBytes, int64(0))
	assert.Greater(t, s.UnbatchedBytes, int64(0))
	assert.Equal(t, 1, s.ByKind["lines/indexed"].Containers)
}
