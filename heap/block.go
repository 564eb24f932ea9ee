package heap

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/memutils"
	"github.com/vkngwrapper/dcpsmem/memutils/metadata"
	"golang.org/x/exp/slog"
)

// arenaBlock is one slab owned by a blockList, suballocated through its metadata
type arenaBlock struct {
	id     int
	data   []byte
	parent *blockList
	logger *slog.Logger

	metadata metadata.BlockMetadata
}

func (b *arenaBlock) Init(logger *slog.Logger, parent *blockList, id int, data []byte) {
	if b.data != nil {
		panic("attempting to initialize an arena block that is already in use")
	}

	b.id = id
	b.data = data
	b.parent = parent
	b.logger = logger

	b.metadata = metadata.NewTLSFBlockMetadata()
	b.metadata.Init(len(data))
}

// Destroy returns the slab to its source. It fails, logging every live suballocation, if the
// block still has allocations.
func (b *arenaBlock) Destroy() error {
	if !b.metadata.IsEmpty() {
		err := b.metadata.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
			if free {
				return nil
			}

			b.logUnreleasedMemory(offset, size, userData)
			return nil
		})
		if err != nil {
			b.logger.LogAttrs(context.Background(),
				slog.LevelError,
				"[UNRELEASED MEMORY] error while iterating unreleased memory",
				slog.Any("error", err))
		}

		return errors.Newf("block %d still held %d allocations when it was destroyed", b.id, b.metadata.AllocationCount())
	}

	if b.data == nil {
		panic("attempting to destroy an arena block, but it did not have a backing slab")
	}

	size := len(b.data)
	err := b.parent.slabs.FreeSlab(b.data)
	if err != nil {
		return err
	}
	b.parent.budget.RemoveBlockAllocation(size)

	b.data = nil
	b.metadata = nil
	return nil
}

func (b *arenaBlock) logUnreleasedMemory(offset, size int, userData any) {
	b.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Int("block", b.id),
		slog.Int("offset", offset),
		slog.Int("size", size),
		slog.Any("tag", userData),
	)
}

func (b *arenaBlock) Validate() error {
	if b.data == nil {
		return errors.New("no valid slab for this arena block")
	}
	if b.metadata.Size() != len(b.data) {
		return errors.Newf("this arena block's metadata has size %d but its slab has size %d", b.metadata.Size(), len(b.data))
	}

	err := b.metadata.VisitAllRegions(func(handle metadata.BlockAllocationHandle, offset, size int, userData any, free bool) error {
		_, isTag := userData.(uint64)
		if free && userData != nil {
			return errors.Newf("a region at offset %d is marked as free but carries a tag", offset)
		} else if !free && !isTag {
			return errors.Newf("a region at offset %d is marked as allocated but has no tag", offset)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return b.metadata.Validate()
}

func (b *arenaBlock) CheckCorruption() error {
	return b.metadata.CheckCorruption(b.data)
}

func (b *arenaBlock) WriteMagicBlockAfterAllocation(allocOffset int, allocSize int) error {
	if memutils.DebugMargin == 0 {
		return errors.New("attempting to write a debug margin block outside debug mode")
	} else if memutils.DebugMargin%4 != 0 {
		panic(fmt.Sprintf("invalid debug margin: debug margin %d must be a multiple of 4", memutils.DebugMargin))
	}

	memutils.WriteMagicValue(b.data, allocOffset+allocSize)
	return nil
}

func (b *arenaBlock) ValidateMagicValueAfterAllocation(allocOffset int, allocSize int) {
	if memutils.DebugMargin == 0 {
		panic("attempting to validate a debug margin block outside debug mode")
	}

	if !memutils.ValidateMagicValue(b.data, allocOffset+allocSize) {
		panic(fmt.Sprintf("MEMORY CORRUPTION DETECTED AFTER FREED ALLOCATION at block %d offset %d", b.id, allocOffset))
	}
}
