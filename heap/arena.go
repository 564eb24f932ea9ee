package heap

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/dcpsmem/memutils"
	"golang.org/x/exp/slog"
)

// ErrCorruptionDetectionDisabled is returned by CheckCorruption when the module was built without
// the debug_mem_utils tag, so no guard bytes exist to check
var ErrCorruptionDetectionDisabled = errors.New("corruption detection is disabled in this build")

// Arena is a Heap that suballocates from large slabs using a TLSF allocator per slab. Requests
// larger than half the preferred block size are given dedicated slabs.
type Arena struct {
	logger      *slog.Logger
	createFlags ArenaCreateFlags
	slabs       SlabSource
	budget      *Budget

	blockList            blockList
	dedicatedAllocations dedicatedAllocationList
}

var _ Heap = &Arena{}

func (a *Arena) Alloc(size int, tag uint64) (Block, error) {
	a.logger.Debug("Arena::Alloc")

	err := checkAllocationSize(size)
	if err != nil {
		return Block{}, err
	}

	if size > a.blockList.PreferredBlockSize()/2 {
		return a.allocateDedicated(size, tag)
	}

	block, err := a.blockList.Allocate(size, tag)
	if err == nil || !errors.Is(err, ErrOutOfMemory) {
		return block, err
	}

	// Shared blocks are out of room, but a dedicated slab may still fit in the budget
	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Falling back to dedicated allocation", slog.Int("Size", size))
	block, dedicatedErr := a.allocateDedicated(size, tag)
	if dedicatedErr != nil {
		return Block{}, err
	}
	return block, nil
}

func (a *Arena) allocateDedicated(size int, tag uint64) (Block, error) {
	slabSize := memutils.AlignUp(size, memutils.DefaultAlignment)
	err := a.budget.AddBlockAllocation(slabSize)
	if err != nil {
		return Block{}, err
	}

	slab, err := a.slabs.AllocSlab(slabSize)
	if err != nil {
		a.budget.RemoveBlockAllocation(slabSize)
		return Block{}, err
	}
	a.budget.AddAllocation(size)

	alloc := &dedicatedAllocation{
		slab: slab,
		size: size,
		tag:  tag,
	}
	a.dedicatedAllocations.Register(alloc)

	return Block{
		Data:      slab[:size:size],
		dedicated: alloc,
	}, nil
}

func (a *Arena) Free(block Block) error {
	a.logger.Debug("Arena::Free")

	switch {
	case block.dedicated != nil:
		return a.freeDedicated(block.dedicated)
	case block.arenaBlock != nil:
		if block.arenaBlock.parent != &a.blockList {
			return errors.New("attempted to free a block that belongs to a different arena")
		}
		return a.blockList.Free(block)
	default:
		return errors.New("attempted to free a block that was not allocated from an arena")
	}
}

func (a *Arena) freeDedicated(alloc *dedicatedAllocation) error {
	if alloc.slab == nil {
		return errors.Newf("dedicated allocation with tag %d was already freed", alloc.tag)
	}

	a.dedicatedAllocations.Unregister(alloc)

	slabSize := len(alloc.slab)
	err := a.slabs.FreeSlab(alloc.slab)
	if err != nil {
		return err
	}
	a.budget.RemoveAllocation(alloc.size)
	a.budget.RemoveBlockAllocation(slabSize)

	alloc.slab = nil
	return nil
}

// Statistics returns the running totals for the arena. Shared block allocation bytes include
// the rounding of each request up to a multiple of 8.
func (a *Arena) Statistics() memutils.Statistics {
	a.logger.Debug("Arena::Statistics")

	return a.budget.Statistics()
}

// CalculateStatistics walks every block and dedicated allocation, accumulating into stats.
// stats is cleared first.
func (a *Arena) CalculateStatistics(stats *memutils.DetailedStatistics) {
	a.logger.Debug("Arena::CalculateStatistics")

	stats.Clear()
	a.blockList.AddDetailedStatistics(stats)
	a.dedicatedAllocations.AddDetailedStatistics(stats)
}

// BuildStatsString renders the arena's statistics as json. When detailedMap is set, every region
// of every block is listed.
func (a *Arena) BuildStatsString(detailedMap bool) string {
	a.logger.Debug("Arena::BuildStatsString")

	var stats memutils.DetailedStatistics
	a.CalculateStatistics(&stats)

	writer := jwriter.NewWriter()
	rootObj := writer.Object()

	general := rootObj.Name("General").Object()
	general.Name("Slabs").String(a.slabs.Name())
	general.Name("Flags").String(a.createFlags.String())
	general.Name("PreferredBlockSize").Int(a.blockList.PreferredBlockSize())
	general.Name("ByteLimit").Int(a.budget.Limit())
	general.End()

	total := rootObj.Name("Total").Object()
	stats.PrintJson(&total)
	total.End()

	if detailedMap {
		dedicated := rootObj.Name("DedicatedAllocations").Array()
		a.dedicatedAllocations.BuildStatsString(&dedicated)
		dedicated.End()

		blocks := rootObj.Name("Blocks").Object()
		a.blockList.PrintDetailedMap(&blocks)
		blocks.End()
	}

	rootObj.End()
	return string(writer.Bytes())
}

// CheckCorruption verifies the guard bytes after every live suballocation. It returns
// ErrCorruptionDetectionDisabled unless built with the debug_mem_utils tag.
func (a *Arena) CheckCorruption() error {
	a.logger.Debug("Arena::CheckCorruption")

	return a.blockList.CheckCorruption()
}

func (a *Arena) Validate() error {
	err := a.dedicatedAllocations.Validate()
	if err != nil {
		return err
	}

	return a.blockList.Validate()
}

// Destroy releases every slab. Live allocations are logged at error level and cause an error to
// be returned, and the slabs holding them are kept.
func (a *Arena) Destroy() error {
	a.logger.Debug("Arena::Destroy")

	memutils.DebugValidate(&a.dedicatedAllocations)
	if !a.dedicatedAllocations.IsEmpty() {
		count := a.dedicatedAllocations.LogUnreleased(a.logger)
		return errors.Newf("the arena still has %d dedicated allocations that remain unfreed", count)
	}

	// Blocks that still hold suballocations log them and are kept
	return a.blockList.Destroy()
}
