// Package render is the OpenGL boundary of the drawing engine. It
// mirrors the batch package's packed host arrays into VBOs/EBOs through
// the Uploader contract, and draws visible slot ranges with one
// multi-draw per container.
package render

import (
	"io"
	"log"
	"os"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/draftview/draftview/internal/batch"
	"github.com/draftview/draftview/internal/scene"
)

var renderLogger *log.Logger = log.New(io.Discard, "", 0)

func init() {
	if os.Getenv("DRAFTVIEW_DEBUG_RENDER") == "1" {
		renderLogger = log.New(os.Stdout, "[render] ", log.Ltime|log.Lmsgprefix)
	}
}

// containerState is the device-side mirror of one packed container.
type containerState struct {
	info      batch.ContainerInfo
	vao       uint32
	vbos      []uint32 // parallel to info.Layout
	ebo       uint32
	wideIndex bool
	drawStart int
	drawCount int
}

// GLUploader implements batch.Uploader over OpenGL buffer objects. One
// instance serves all containers of a group; it must only be used on
// the thread owning the GL context.
type GLUploader struct {
	states map[int]*containerState
}

var _ batch.Uploader = (*GLUploader)(nil)

func NewGLUploader() *GLUploader {
	return &GLUploader{states: make(map[int]*containerState)}
}

func (u *GLUploader) state(container int) *containerState {
	return u.states[container]
}

// Register sets up the VAO and attribute bindings for a container. The
// wide-line segment attribute (6 floats per record) is bound as two
// 3-float vertices per record so segments rasterize as plain lines.
func (u *GLUploader) Register(container int, info batch.ContainerInfo) {
	st := &containerState{info: info}
	gl.GenVertexArrays(1, &st.vao)
	st.vbos = make([]uint32, len(info.Layout))
	u.states[container] = st
	renderLogger.Printf("container#%d registered: %s, %d attributes, indexed=%v",
		container, info.Kind, len(info.Layout), info.Indexed)
}

func (u *GLUploader) AllocVertex(container, attr, floats int) {
	st := u.states[container]
	if st.vbos[attr] != 0 {
		gl.DeleteBuffers(1, &st.vbos[attr])
	}
	gl.GenBuffers(1, &st.vbos[attr])

	gl.BindVertexArray(st.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, st.vbos[attr])
	gl.BufferData(gl.ARRAY_BUFFER, floats*4, nil, gl.DYNAMIC_DRAW)

	l := st.info.Layout[attr]
	if l.ItemSize == 6 {
		// Segment records: two consecutive vec3 vertices per record.
		gl.EnableVertexAttribArray(uint32(attr))
		gl.VertexAttribPointerWithOffset(uint32(attr), 3, gl.FLOAT, l.Normalized, 12, 0)
	} else {
		gl.EnableVertexAttribArray(uint32(attr))
		gl.VertexAttribPointerWithOffset(uint32(attr), int32(l.ItemSize), gl.FLOAT, l.Normalized, int32(l.ItemSize)*4, 0)
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)
}

func (u *GLUploader) WriteVertex(container, attr, offset int, data []float32) {
	if len(data) == 0 {
		return
	}
	st := u.states[container]
	gl.BindBuffer(gl.ARRAY_BUFFER, st.vbos[attr])
	gl.BufferSubData(gl.ARRAY_BUFFER, offset*4, len(data)*4, gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
}

func (u *GLUploader) AllocIndex(container, count int, wide bool) {
	st := u.states[container]
	if st.ebo != 0 {
		gl.DeleteBuffers(1, &st.ebo)
	}
	gl.GenBuffers(1, &st.ebo)
	st.wideIndex = wide

	entry := 2
	if wide {
		entry = 4
	}
	gl.BindVertexArray(st.vao)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, st.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, count*entry, nil, gl.DYNAMIC_DRAW)
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
}

func (u *GLUploader) WriteIndex16(container, offset int, data []uint16) {
	if len(data) == 0 {
		return
	}
	st := u.states[container]
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, st.ebo)
	gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, offset*2, len(data)*2, gl.Ptr(data))
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
}

func (u *GLUploader) WriteIndex32(container, offset int, data []uint32) {
	if len(data) == 0 {
		return
	}
	st := u.states[container]
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, st.ebo)
	gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, offset*4, len(data)*4, gl.Ptr(data))
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
}

func (u *GLUploader) SetDrawRange(container, start, count int) {
	st := u.states[container]
	st.drawStart = start
	st.drawCount = count
}

func (u *GLUploader) Release(container int) {
	st := u.states[container]
	if st == nil {
		return
	}
	for i := range st.vbos {
		if st.vbos[i] != 0 {
			gl.DeleteBuffers(1, &st.vbos[i])
		}
	}
	if st.ebo != 0 {
		gl.DeleteBuffers(1, &st.ebo)
	}
	if st.vao != 0 {
		gl.DeleteVertexArrays(1, &st.vao)
	}
	delete(u.states, container)
	renderLogger.Printf("container#%d released", container)
}

// drawMode maps a primitive kind to its GL topology.
func drawMode(kind scene.Kind) uint32 {
	switch kind {
	case scene.KindMesh:
		return gl.TRIANGLES
	case scene.KindPoints:
		return gl.POINTS
	default:
		return gl.LINES
	}
}
