package batch

import "github.com/draftview/draftview/internal/scene"

// ContainerInfo describes a container to the uploader when it is first
// registered: its topology, attribute layout and index presence. The
// uploader uses it to configure device-side state (vertex array
// bindings, index type).
type ContainerInfo struct {
	Kind    scene.Kind
	Layout  []scene.AttrLayout
	Indexed bool
}

// Uploader is the GPU boundary. Containers call it synchronously after
// every structural mutation so device buffers mirror the packed host
// arrays. Implementations may be real (internal/render) or no-ops
// (headless use, tests).
//
// Offsets and lengths are in element units: float32s for vertex data,
// index entries for index data.
type Uploader interface {
	// Register announces a container before any buffer traffic for it.
	Register(container int, info ContainerInfo)

	// AllocVertex (re)allocates the device buffer backing one attribute.
	// Previously uploaded contents are discarded; the container follows
	// up with WriteVertex calls for live ranges.
	AllocVertex(container, attr, floats int)

	// WriteVertex pushes a sub-range of one attribute's packed array.
	WriteVertex(container, attr, offset int, data []float32)

	// AllocIndex (re)allocates the device index buffer. wide selects
	// 32-bit entries; re-allocation can change the width.
	AllocIndex(container, count int, wide bool)

	WriteIndex16(container, offset int, data []uint16)
	WriteIndex32(container, offset int, data []uint32)

	// SetDrawRange resynchronizes the renderable span after structural
	// mutation: [0, nextIndexStart) for indexed containers, [0,
	// nextVertexStart) otherwise. Stale ranges would render deleted or
	// garbage tail data.
	SetDrawRange(container, start, count int)

	// Release frees every device buffer owned by the container. Required
	// before dropping a container; device memory is not garbage
	// collected.
	Release(container int)
}

// NopUploader discards all buffer traffic. It backs headless and test
// use, where the packed host arrays are the only storage.
type NopUploader struct{}

var _ Uploader = NopUploader{}

func (NopUploader) Register(int, ContainerInfo)        {}
func (NopUploader) AllocVertex(int, int, int)          {}
func (NopUploader) WriteVertex(int, int, int, []float32) {}
func (NopUploader) AllocIndex(int, int, bool)          {}
func (NopUploader) WriteIndex16(int, int, []uint16)    {}
func (NopUploader) WriteIndex32(int, int, []uint32)    {}
func (NopUploader) SetDrawRange(int, int, int)         {}
func (NopUploader) Release(int)                        {}
