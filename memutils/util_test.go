package memutils_test

import (
	"math"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

func TestAlignment(t *testing.T) {
	require.Equal(t, 0, memutils.AlignUp(0, 8))
	require.Equal(t, 8, memutils.AlignUp(1, 8))
	require.Equal(t, 8, memutils.AlignUp(8, 8))
	require.Equal(t, 24, memutils.AlignUp(17, 8))
	require.Equal(t, math.MaxInt-7, memutils.AlignUp(math.MaxInt-7, 8))
	require.Equal(t, -1, memutils.AlignUp(math.MaxInt-6, 8))
	require.Equal(t, -1, memutils.AlignUp(math.MaxInt, 8))
	require.Equal(t, 16, memutils.AlignDown(23, 8))
	require.True(t, memutils.IsAligned(32, 16))
	require.False(t, memutils.IsAligned(36, 16))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, memutils.CheckPow2(64, "alignment"))
	require.NoError(t, memutils.CheckPow2(uint(1), "alignment"))

	err := memutils.CheckPow2(48, "alignment")
	require.Error(t, err)
	require.True(t, errors.Is(err, memutils.PowerOfTwoError))
	require.Contains(t, err.Error(), "alignment is 48")
}

func TestCheckSize(t *testing.T) {
	require.NoError(t, memutils.CheckSize(0, "payloadSize"))

	err := memutils.CheckSize(-3, "payloadSize")
	require.True(t, errors.Is(err, memutils.NegativeSizeError))
}

func TestDetailedStatisticsAccumulate(t *testing.T) {
	var left, right memutils.DetailedStatistics
	left.Clear()
	right.Clear()

	left.BlockCount = 1
	left.BlockBytes = 1024
	left.AddAllocation(100)
	left.AddUnusedRange(924)

	right.BlockCount = 1
	right.BlockBytes = 512
	right.AddAllocation(12)
	right.AddAllocation(300)
	right.AddUnusedRange(200)

	left.AddDetailedStatistics(&right)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			BlockCount:      2,
			BlockBytes:      1536,
			AllocationCount: 3,
			AllocationBytes: 412,
		},
		UnusedRangeCount:   2,
		AllocationSizeMin:  12,
		AllocationSizeMax:  300,
		UnusedRangeSizeMin: 200,
		UnusedRangeSizeMax: 924,
	}, left)

	left.Clear()
	require.Equal(t, math.MaxInt, left.AllocationSizeMin)
	require.Equal(t, 0, left.AllocationCount)
}

func TestStatisticsJson(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	stats.BlockCount = 1
	stats.BlockBytes = 64
	stats.AddAllocation(16)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	stats.PrintJson(&obj)
	obj.End()

	require.JSONEq(t, `{
		"BlockCount": 1,
		"BlockBytes": 64,
		"AllocationCount": 1,
		"AllocationBytes": 16,
		"UnusedRangeCount": 0,
		"AllocationSizeMin": 16,
		"AllocationSizeMax": 16
	}`, string(writer.Bytes()))
}
