package heap

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

func TestGoHeap_AllocFree(t *testing.T) {
	heap := NewGoHeap(0)

	block, err := heap.Alloc(13, 1)
	require.NoError(t, err)
	require.Len(t, block.Data, 13)
	require.Equal(t, 13, cap(block.Data))
	requireAligned(t, block.Data)
	require.Equal(t, make([]byte, 13), block.Data)

	require.Equal(t, memutils.Statistics{
		BlockCount:      1,
		AllocationCount: 1,
		BlockBytes:      13,
		AllocationBytes: 13,
	}, heap.Statistics())

	require.NoError(t, heap.Free(block))
	require.Equal(t, memutils.Statistics{}, heap.Statistics())
}

func TestGoHeap_Limit(t *testing.T) {
	heap := NewGoHeap(100)

	first, err := heap.Alloc(60, 1)
	require.NoError(t, err)

	_, err = heap.Alloc(60, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfMemory))

	require.NoError(t, heap.Free(first))

	second, err := heap.Alloc(60, 3)
	require.NoError(t, err)
	require.NoError(t, heap.Free(second))
}

func TestGoHeap_InvalidRequests(t *testing.T) {
	heap := NewGoHeap(0)

	_, err := heap.Alloc(0, 1)
	require.Error(t, err)

	require.Error(t, heap.Free(Block{}))

	arena := readyArena(t, ArenaCreateOptions{})
	block, err := arena.Alloc(8, 1)
	require.NoError(t, err)
	require.Error(t, heap.Free(block))
	require.NoError(t, arena.Free(block))
	require.NoError(t, arena.Destroy())
}

func TestGoHeap_OversizedRequests(t *testing.T) {
	heap := NewGoHeap(0)

	for _, size := range []int{MaxAllocationSize + 1, math.MaxInt / 2, math.MaxInt - 8, math.MaxInt} {
		_, err := heap.Alloc(size, 1)
		require.True(t, errors.Is(err, ErrOutOfMemory), "size %d", size)
	}

	require.Equal(t, memutils.Statistics{}, heap.Statistics())
}
