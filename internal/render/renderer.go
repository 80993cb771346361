package render

import (
	"time"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/draftview/draftview/internal/batch"
	"github.com/draftview/draftview/internal/geom"
	"github.com/draftview/draftview/internal/scene"
	"github.com/draftview/draftview/internal/style"
)

// Stats tracks rendering performance metrics.
type Stats struct {
	DrawCallsPerFrame int
	LastDrawTimeUs    float64
}

// Renderer draws one batch group: packed containers first (one
// multi-draw per container over its visible slot ranges), then the
// unbatched escape objects, then the hover and selection overlays on
// top with depth testing off.
type Renderer struct {
	w, h             int
	zoom, panX, panY float32

	uploader *GLUploader
	shaders  *ShaderManager
	scratch  scratchObject
	stats    Stats
}

func NewRenderer(uploader *GLUploader) *Renderer {
	return &Renderer{
		zoom:     1,
		uploader: uploader,
		shaders:  NewShaderManager(),
		scratch:  newScratchObject(),
	}
}

// SetView updates viewport size and pan/zoom.
func (r *Renderer) SetView(w, h int, zoom, panX, panY float32) {
	r.w, r.h = w, h
	r.zoom = zoom
	r.panX, r.panY = panX, panY
}

// Draw renders the group for one frame.
func (r *Renderer) Draw(g *batch.Group) {
	start := time.Now()
	drawCalls := 0

	r.shaders.SetTransform(r.viewMatrix())

	for _, c := range g.Containers() {
		drawCalls += r.drawContainer(c)
	}
	for _, obj := range g.UnbatchedObjects() {
		drawCalls += r.drawObject(obj)
	}

	// Overlays render last, always on top.
	gl.Disable(gl.DEPTH_TEST)
	for _, obj := range g.Overlay().Objects(batch.OverlayHover) {
		drawCalls += r.drawObject(obj)
	}
	for _, obj := range g.Overlay().Objects(batch.OverlaySelect) {
		drawCalls += r.drawObject(obj)
	}

	r.stats.DrawCallsPerFrame = drawCalls
	r.stats.LastDrawTimeUs = float64(time.Since(start).Microseconds())
}

// drawContainer draws a container's visible slot ranges. Returns the
// number of draw calls issued: one per non-empty range on the indexed
// path, one multi-draw on the flat path.
func (r *Renderer) drawContainer(c batch.PackedContainer) int {
	st := r.uploader.state(c.ID())
	if st == nil || st.drawCount == 0 {
		return 0
	}
	firsts, counts := c.VisibleRanges()
	if len(firsts) == 0 {
		return 0
	}

	r.applyMaterial(c.Material())
	gl.BindVertexArray(st.vao)

	calls := 0
	mode := drawMode(c.Kind())
	if st.info.Indexed {
		entry := 2
		indexType := uint32(gl.UNSIGNED_SHORT)
		if st.wideIndex {
			entry = 4
			indexType = gl.UNSIGNED_INT
		}
		for i := range firsts {
			if counts[i] == 0 {
				continue
			}
			gl.DrawElementsWithOffset(mode, counts[i], indexType, uintptr(int(firsts[i])*entry))
			calls++
		}
	} else {
		if st.info.Layout[0].ItemSize == 6 {
			// Segment records occupy two raster vertices each.
			for i := range firsts {
				firsts[i] *= 2
				counts[i] *= 2
			}
		}
		gl.MultiDrawArrays(mode, &firsts[0], &counts[0], int32(len(firsts)))
		calls = 1
	}

	gl.BindVertexArray(0)
	return calls
}

func (r *Renderer) applyMaterial(m *style.Material) {
	r.shaders.SetColor(
		float32(m.Color.R)/255,
		float32(m.Color.G)/255,
		float32(m.Color.B)/255,
		float32(m.Color.A)/255,
	)
	gl.LineWidth(m.LineWidth)
}

// drawObject streams a standalone object (unbatched or overlay) through
// the scratch buffer. Returns the number of draw calls issued.
func (r *Renderer) drawObject(obj *scene.Object) int {
	calls := 0
	_ = obj.Walk(func(p *scene.Primitive, world geom.Mat4) error {
		if p.Geom == nil || p.Geom.VertexCount() == 0 {
			return nil
		}
		g := p.Geom
		if !world.IsIdentity() {
			g = g.Clone()
			g.Bake(world)
		}
		if p.Material != nil {
			r.applyMaterial(p.Material)
		}
		r.scratch.draw(drawMode(p.Kind), g)
		calls++
		return nil
	})
	return calls
}

// viewMatrix builds the world-to-NDC transform: zoom about the viewport
// center, pan in screen space, then screen-to-NDC.
func (r *Renderer) viewMatrix() [16]float32 {
	if r.w == 0 || r.h == 0 {
		return [16]float32(geom.Identity())
	}

	cx, cy := float32(r.w)/2, float32(r.h)/2
	m := geom.Translation(cx, cy, 0).
		Mul(geom.Scaling(r.zoom)).
		Mul(geom.Translation(-cx, -cy, 0))
	m = geom.Translation(r.panX, r.panY, 0).Mul(m)

	ndc := geom.Identity()
	ndc[0] = 2 / float32(r.w)
	ndc[3] = -1
	ndc[5] = -2 / float32(r.h)
	ndc[7] = 1
	m = ndc.Mul(m)

	// Row-major to OpenGL column-major.
	return [16]float32{
		m[0], m[4], m[8], m[12],
		m[1], m[5], m[9], m[13],
		m[2], m[6], m[10], m[14],
		m[3], m[7], m[11], m[15],
	}
}

// Stats returns the current performance statistics.
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Dispose releases the scratch buffer.
func (r *Renderer) Dispose() {
	r.scratch.dispose()
}

// scratchObject is one reusable VAO/VBO pair for streaming standalone
// geometry (overlay clones, unbatched objects) without allocating
// buffers per object per frame.
type scratchObject struct {
	vao uint32
	vbo uint32
	cap int // floats currently allocated
}

func newScratchObject() scratchObject {
	var s scratchObject
	gl.GenVertexArrays(1, &s.vao)
	gl.GenBuffers(1, &s.vbo)

	gl.BindVertexArray(s.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 12, 0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
	return s
}

// draw streams one geometry through the scratch buffer. Indexed
// geometry is expanded through its index since the scratch path has no
// element buffer.
func (s *scratchObject) draw(mode uint32, g *scene.Geometry) {
	pos := &g.Attrs[0]
	data := pos.Data
	if g.Indexed() {
		data = make([]float32, 0, len(g.Index)*3)
		for _, idx := range g.Index {
			v := int(idx) * pos.ItemSize
			data = append(data, pos.Data[v], pos.Data[v+1], pos.Data[v+2])
		}
	}
	if len(data) == 0 {
		return
	}

	gl.BindVertexArray(s.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, s.vbo)
	if len(data) > s.cap {
		gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, nil, gl.DYNAMIC_DRAW)
		s.cap = len(data)
	}
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data)*4, gl.Ptr(data))

	// Segment records (itemSize 6) raster as consecutive vec3 pairs,
	// so the vertex count is len/3 either way.
	gl.DrawArrays(mode, 0, int32(len(data)/3))

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

func (s *scratchObject) dispose() {
	if s.vbo != 0 {
		gl.DeleteBuffers(1, &s.vbo)
		s.vbo = 0
	}
	if s.vao != 0 {
		gl.DeleteVertexArrays(1, &s.vao)
		s.vao = 0
	}
}
