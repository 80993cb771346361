package batch

// IndexArray stores a container's packed index data at the width its
// vertex capacity requires: 16-bit while the capacity fits in uint16,
// 32-bit past Index16Limit. The width is a property of the container's
// capacity, never of individual geometries; growing a container across
// the boundary re-encodes every existing entry at the wider type.
type IndexArray struct {
	wide bool
	u16  []uint16
	u32  []uint32
}

func newIndexArray(length, vertexCapacity int) *IndexArray {
	ia := &IndexArray{wide: vertexCapacity > Index16Limit}
	if ia.wide {
		ia.u32 = make([]uint32, length)
	} else {
		ia.u16 = make([]uint16, length)
	}
	return ia
}

// Wide reports whether entries are 32-bit.
func (ia *IndexArray) Wide() bool { return ia.wide }

// Len returns the allocated entry count.
func (ia *IndexArray) Len() int {
	if ia.wide {
		return len(ia.u32)
	}
	return len(ia.u16)
}

// At returns the entry at i.
func (ia *IndexArray) At(i int) uint32 {
	if ia.wide {
		return ia.u32[i]
	}
	return uint32(ia.u16[i])
}

// Set stores v at i. The caller guarantees v fits the current width:
// containers only write vertex positions below their capacity, and the
// width is derived from that same capacity.
func (ia *IndexArray) Set(i int, v uint32) {
	if ia.wide {
		ia.u32[i] = v
		return
	}
	ia.u16[i] = uint16(v)
}

// Resize grows or shrinks the array to length entries for a container
// whose vertex capacity is now vertexCapacity, re-encoding 16-bit
// entries into a 32-bit array when the capacity crosses Index16Limit.
// Surviving entries are preserved.
func (ia *IndexArray) Resize(length, vertexCapacity int) {
	needWide := vertexCapacity > Index16Limit
	if needWide && !ia.wide {
		// Re-widen: every existing 16-bit value is copied into the new
		// 32-bit array. Silent truncation in the other direction is not
		// a thing: containers never narrow.
		u32 := make([]uint32, length)
		n := len(ia.u16)
		if n > length {
			n = length
		}
		for i := 0; i < n; i++ {
			u32[i] = uint32(ia.u16[i])
		}
		ia.u16 = nil
		ia.u32 = u32
		ia.wide = true
		return
	}

	if ia.wide {
		u32 := make([]uint32, length)
		copy(u32, ia.u32)
		ia.u32 = u32
		return
	}
	u16 := make([]uint16, length)
	copy(u16, ia.u16)
	ia.u16 = u16
}

// U16 exposes the 16-bit backing array for upload. Nil when wide.
func (ia *IndexArray) U16() []uint16 { return ia.u16 }

// U32 exposes the 32-bit backing array for upload. Nil when narrow.
func (ia *IndexArray) U32() []uint32 { return ia.u32 }

// ByteSize returns the allocated size in bytes.
func (ia *IndexArray) ByteSize() int64 {
	if ia.wide {
		return int64(len(ia.u32)) * 4
	}
	return int64(len(ia.u16)) * 2
}
