//go:build unix

package heap

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

func TestMmapSlabs_AllocFree(t *testing.T) {
	slabs, err := NewMmapSlabs()
	require.NoError(t, err)
	require.Equal(t, "mmap", slabs.Name())

	slab, err := slabs.AllocSlab(8192)
	require.NoError(t, err)
	require.Len(t, slab, 8192)
	requireAligned(t, slab)
	require.Equal(t, make([]byte, 8192), slab)

	slab[8191] = 1
	require.NoError(t, slabs.FreeSlab(slab))
}

func TestArena_MmapSlabs(t *testing.T) {
	arena := readyArena(t, ArenaCreateOptions{
		Flags:              ArenaCreateMmapSlabs,
		PreferredBlockSize: 64 * 1024,
	})

	var blocks []Block
	for i := 0; i < 50; i++ {
		block, err := arena.Alloc(100+i*10, uint64(i))
		require.NoError(t, err)
		for j := range block.Data {
			block.Data[j] = byte(i)
		}
		blocks = append(blocks, block)
	}

	dedicated, err := arena.Alloc(40*1024, 99)
	require.NoError(t, err)
	dedicated.Data[len(dedicated.Data)-1] = 1
	require.NoError(t, arena.Validate())

	for _, block := range blocks {
		require.NoError(t, arena.Free(block))
	}
	require.NoError(t, arena.Free(dedicated))

	require.Zero(t, arena.Statistics().AllocationCount)
	require.NoError(t, arena.Destroy())
	require.Equal(t, memutils.Statistics{}, arena.Statistics())
}
