package batch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/draftview/draftview/internal/scene"
)

// Counters tracks engine events shared across a group's containers.
type Counters struct {
	CompactionEvents int
	GrowthEvents     int
	SlotsRepacked    int
	HighlightSkips   int
}

// KindStats aggregates containers of one (kind, index-mode) bucket.
type KindStats struct {
	Containers  int
	ActiveSlots int
	TotalSlots  int
	GPUBytes    int64
	SlotBytes   int64
}

// Stats is an aggregate snapshot of a group. Purely observational;
// computing it never mutates engine state.
type Stats struct {
	Entities    int
	Containers  int
	ActiveSlots int
	TotalSlots  int

	// GPUBytes sums the distinct backing-array byte lengths across all
	// containers; SlotBytes estimates slot-bookkeeping memory.
	GPUBytes  int64
	SlotBytes int64

	// ByKind buckets containers per primitive kind and index mode,
	// keyed like "mesh/indexed".
	ByKind map[string]KindStats

	// Unbatched counts escape-path objects per kind, with their
	// geometry byte estimate.
	Unbatched      map[string]int
	UnbatchedBytes int64

	SelectedEntities int
	HoveredEntities  int

	Counters Counters
}

func kindKey(kind scene.Kind, indexed bool) string {
	if indexed {
		return kind.String() + "/indexed"
	}
	return kind.String() + "/flat"
}

// Print writes a bar-chart summary through the batch debug logger.
// A no-op unless DRAFTVIEW_DEBUG_BATCH=1.
func (s Stats) Print() {
	slotUtil := 0.0
	if s.TotalSlots > 0 {
		slotUtil = float64(s.ActiveSlots) / float64(s.TotalSlots)
	}
	batchLogger.Println("===== Batch Group Stats =====")
	batchLogger.Printf("%d containers, %.1f%% slots active (%d/%d), %s GPU, %s slot records, %d compactions (%d slots repacked), %d growths, %d highlight skips",
		s.Containers,
		slotUtil*100,
		s.ActiveSlots,
		s.TotalSlots,
		formatBytes(s.GPUBytes),
		formatBytes(s.SlotBytes),
		s.Counters.CompactionEvents,
		s.Counters.SlotsRepacked,
		s.Counters.GrowthEvents,
		s.Counters.HighlightSkips,
	)

	keys := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ks := s.ByKind[k]
		util := 0.0
		if ks.TotalSlots > 0 {
			util = float64(ks.ActiveSlots) / float64(ks.TotalSlots)
		}
		batchLogger.Printf("  [%-18s] %s %.0f%% slots active (%d/%d), %d containers, %s GPU",
			k, utilizationBar(util, 12), util*100, ks.ActiveSlots, ks.TotalSlots, ks.Containers, formatBytes(ks.GPUBytes))
	}
	for k, n := range s.Unbatched {
		batchLogger.Printf("  unbatched %-10s %d objects", k, n)
	}
	batchLogger.Println("=============================")
}

// utilizationBar renders a fixed-width utilization bar.
func utilizationBar(utilization float64, width int) string {
	if utilization < 0 {
		utilization = 0
	}
	if utilization > 1 {
		utilization = 1
	}
	filled := int(utilization * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// formatBytes formats byte counts with KiB/MiB suffixes.
func formatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%dB", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1fKiB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1fMiB", float64(n)/(1024*1024))
	}
}
