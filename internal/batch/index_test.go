package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexArrayWidthSelection(t *testing.T) {
	narrow := newIndexArray(8, Index16Limit)
	assert.False(t, narrow.Wide())
	assert.Equal(t, int64(16), narrow.ByteSize())

	wide := newIndexArray(8, Index16Limit+1)
	assert.True(t, wide.Wide())
	assert.Equal(t, int64(32), wide.ByteSize())
}

func TestIndexArrayRoundTrip(t *testing.T) {
	ia := newIndexArray(4, 100)
	for i := 0; i < 4; i++ {
		ia.Set(i, uint32(i*7))
	}
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint32(i*7), ia.At(i))
	}
	assert.Len(t, ia.U16(), 4)
	assert.Nil(t, ia.U32())
}

func TestIndexArrayRewidens(t *testing.T) {
	ia := newIndexArray(4, 100)
	for i := 0; i < 4; i++ {
		ia.Set(i, uint32(1000+i))
	}

	ia.Resize(8, Index16Limit+1)
	assert.True(t, ia.Wide())
	assert.Equal(t, 8, ia.Len())
	assert.Nil(t, ia.U16())
	for i := 0; i < 4; i++ {
		assert.Equal(t, uint32(1000+i), ia.At(i), "entry %d survives re-encoding", i)
	}

	// Wide arrays can hold values past the 16-bit range.
	ia.Set(7, 70000)
	assert.Equal(t, uint32(70000), ia.At(7))

	// Shrinking the vertex capacity never narrows the width back.
	ia.Resize(8, 16)
	assert.True(t, ia.Wide())
	assert.Equal(t, uint32(70000), ia.At(7))
}

func TestIndexArrayResizePreservesPrefix(t *testing.T) {
	ia := newIndexArray(4, 100)
	for i := 0; i < 4; i++ {
		ia.Set(i, uint32(i+1))
	}
	ia.Resize(2, 100)
	assert.Equal(t, 2, ia.Len())
	assert.Equal(t, uint32(1), ia.At(0))
	assert.Equal(t, uint32(2), ia.At(1))
}
