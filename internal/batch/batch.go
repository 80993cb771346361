// Package batch packs thousands of independently created and deleted
// drawing primitives into a small number of shared vertex/index buffers
// per (primitive kind, material) pair, to minimize draw calls while
// supporting live mutation.
//
// The moving parts, bottom up:
//   - Slot: one primitive's reserved range inside a container, identified
//     by a stable integer id. Reserved capacity can exceed the used range
//     so geometry can be rewritten in place without relocation.
//   - Container / WideLineContainer: the packed buffers. Append,
//     overwrite, delete, compact (Optimize), resize-on-growth, lazy
//     per-slot bounds, and ray intersection against sub-ranges.
//   - Group: the coordinator. Routes composite scene objects to the
//     right container, tracks which slots belong to which entity, owns
//     the unbatched escape list and the highlight overlay.
//
// Deleting a slot only marks it inactive; the hole is reclaimed when the
// caller (normally the Group) runs Optimize. Containers push every
// mutation through an Uploader so device buffers mirror the host arrays.
package batch

import (
	"errors"
	"io"
	"log"
	"os"
)

// Tuning constants.
const (
	// GrowthFactor is the amortized-growth multiplier applied when an
	// append would exceed a container's capacity: the new capacity is
	// ceil((cursor + required) * GrowthFactor).
	GrowthFactor = 1.25

	// Index16Limit is the largest vertex capacity a container can have
	// while using 16-bit indices. Growing past it re-encodes the whole
	// index array at 32 bits.
	Index16Limit = 65535

	// HighlightSlotCap bounds per-entity highlight cost: entities with
	// more packed slots than this are skipped (visible in Stats), not
	// highlighted.
	HighlightSlotCap = 1000
)

// Fatal condition taxonomy. All indicate caller bugs upstream and are
// never downgraded or auto-corrected.
var (
	// ErrSlotInvalid is returned when operating on a slot id that is out
	// of range or already deleted.
	ErrSlotInvalid = errors.New("invalid or inactive slot id")

	// ErrLayoutMismatch is returned when a geometry's attribute set does
	// not exactly match the layout established by the container's first
	// geometry.
	ErrLayoutMismatch = errors.New("geometry attribute layout mismatch")

	// ErrIndexMismatch is returned when a geometry's index presence
	// disagrees with the container's.
	ErrIndexMismatch = errors.New("geometry index presence mismatch")

	// ErrReservedOverflow is returned when geometry does not fit the
	// slot's reserved capacity (or an explicit reservation is smaller
	// than the geometry itself).
	ErrReservedOverflow = errors.New("geometry exceeds slot reservation")
)

var (
	batchLogger      *log.Logger = log.New(io.Discard, "", 0)
	compactionLogger *log.Logger = log.New(io.Discard, "", 0)
)

func init() {
	if os.Getenv("DRAFTVIEW_DEBUG_BATCH") == "1" {
		batchLogger = log.New(os.Stdout, "[batch] ", log.Ltime|log.Lmsgprefix)
	}
	if os.Getenv("DRAFTVIEW_DEBUG_COMPACTION") == "1" {
		compactionLogger = log.New(os.Stdout, "[compaction] ", log.Ltime|log.Lmsgprefix)
	}
}
