package batch

import (
	"sort"

	"github.com/draftview/draftview/internal/geom"
)

// Slot is one packed primitive's bookkeeping record. Starts and counts
// are in vertex/index entry units, not bytes. The reserved counts are
// the allocated ranges (stable until compaction); the plain counts are
// the currently used sub-ranges within them.
type Slot struct {
	VertexStart         int
	VertexCount         int
	ReservedVertexCount int

	// Index fields are -1/0 for non-indexed containers.
	IndexStart         int
	IndexCount         int
	ReservedIndexCount int

	// Active is false once the slot is deleted; the id becomes reusable.
	// Visible is independent of Active, though a deleted slot is always
	// invisible.
	Active  bool
	Visible bool

	// Owner is the drawing entity this slot belongs to.
	Owner string

	// BBoxOnly switches hit-testing to the cached bounding box.
	BBoxOnly bool

	// Anchor is stored only for point-symbol slots whose geometry is
	// regenerated in place on display-mode changes.
	Anchor *geom.Vec3

	bounds *geom.Box3 // lazy, nil until computed or after a rewrite
}

// slotRecordBytes approximates per-slot bookkeeping memory for stats.
const slotRecordBytes = 112

// SlotMeta carries the identity metadata recorded on a slot when
// geometry is added.
type SlotMeta struct {
	Owner    string
	BBoxOnly bool
	Anchor   *geom.Vec3
}

// slotTable is the allocator shared by both container kinds: a dense
// slot array indexed by id plus a free list of deleted ids kept in
// ascending order, so reuse always picks the smallest available id and
// id-space growth stays compact.
type slotTable struct {
	slots   []Slot
	freeIDs []int // ascending
}

// reserve returns a slot id (smallest freed id first, else a fresh one)
// with the record zeroed. The caller fills in ranges and metadata.
func (t *slotTable) reserve() int {
	if len(t.freeIDs) > 0 {
		id := t.freeIDs[0]
		t.freeIDs = t.freeIDs[1:]
		t.slots[id] = Slot{}
		return id
	}
	t.slots = append(t.slots, Slot{})
	return len(t.slots) - 1
}

// release marks the slot deleted and returns its id to the free list.
// Buffer space is not reclaimed here; that is Optimize's job.
func (t *slotTable) release(id int) {
	s := &t.slots[id]
	s.Active = false
	s.Visible = false
	s.bounds = nil

	at := sort.SearchInts(t.freeIDs, id)
	t.freeIDs = append(t.freeIDs, 0)
	copy(t.freeIDs[at+1:], t.freeIDs[at:])
	t.freeIDs[at] = id
}

// get validates an id and returns the active slot it names.
func (t *slotTable) get(id int) (*Slot, error) {
	if id < 0 || id >= len(t.slots) || !t.slots[id].Active {
		return nil, ErrSlotInvalid
	}
	return &t.slots[id], nil
}

// activeCount returns the number of active slots.
func (t *slotTable) activeCount() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].Active {
			n++
		}
	}
	return n
}

// activeByVertexStart returns active slot ids ordered by their current
// vertex start. Compaction snapshots this before moving anything, since
// moving mutates the very field the order is defined by.
func (t *slotTable) activeByVertexStart() []int {
	ids := make([]int, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].Active {
			ids = append(ids, i)
		}
	}
	sort.Slice(ids, func(a, b int) bool {
		return t.slots[ids[a]].VertexStart < t.slots[ids[b]].VertexStart
	})
	return ids
}
