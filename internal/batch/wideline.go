package batch

import (
	"fmt"

	"github.com/draftview/draftview/internal/scene"
	"github.com/draftview/draftview/internal/style"
)

// segmentFloats is the flat record size of one wide-line segment: start
// point plus end point.
const segmentFloats = 6

// WideLineContainer packs shader-expanded thick lines. It shares the
// generic container machinery but its packed unit is a segment (a
// 6-float start/end pair) rather than an indexed vertex: slot counts
// are in segments, compaction moves whole segment ranges, and there is
// never an index array.
type WideLineContainer struct {
	*Container
}

// NewWideLineContainer creates an empty wide-line container.
func NewWideLineContainer(id int, material *style.Material, up Uploader) *WideLineContainer {
	return &WideLineContainer{
		Container: NewContainer(id, scene.KindWideLines, material, false, up),
	}
}

// AddGeometry appends segment geometry. The source must carry exactly
// one flat segment attribute (6 floats per record); anything else is a
// configuration error.
func (w *WideLineContainer) AddGeometry(g *scene.Geometry, reservedSegments, _ int, meta SlotMeta) (int, error) {
	if err := checkSegmentLayout(g); err != nil {
		return 0, fmt.Errorf("wide-line container %d: %w", w.id, err)
	}
	return w.Container.AddGeometry(g, reservedSegments, 0, meta)
}

// SetGeometryAt overwrites a slot's segments in place, within its
// reservation.
func (w *WideLineContainer) SetGeometryAt(id int, g *scene.Geometry) error {
	if err := checkSegmentLayout(g); err != nil {
		return fmt.Errorf("wide-line container %d slot %d: %w", w.id, id, err)
	}
	return w.Container.SetGeometryAt(id, g)
}

// SegmentsAt returns a zero-copy view of a slot's used segment range.
// The view is only valid until the next structural mutation (the
// backing array moves on growth and compaction); hit-testing consumes
// it immediately and never retains it.
func (w *WideLineContainer) SegmentsAt(id int) ([]float32, error) {
	s, err := w.table.get(id)
	if err != nil {
		return nil, fmt.Errorf("wide-line container %d slot %d: %w", w.id, id, err)
	}
	return w.attrs[0][s.VertexStart*segmentFloats : (s.VertexStart+s.VertexCount)*segmentFloats], nil
}

func checkSegmentLayout(g *scene.Geometry) error {
	if g.Indexed() {
		return fmt.Errorf("%w: wide lines are never indexed", ErrIndexMismatch)
	}
	if len(g.Attrs) != 1 || g.Attrs[0].ItemSize != segmentFloats {
		return fmt.Errorf("%w: wide lines take a single %d-float segment attribute", ErrLayoutMismatch, segmentFloats)
	}
	return nil
}
