package heap

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/dcpsmem/internal/utils"
	"github.com/vkngwrapper/dcpsmem/memutils"
	"github.com/vkngwrapper/dcpsmem/memutils/metadata"
	"golang.org/x/exp/slog"
)

var blockPool = sync.Pool{
	New: func() any {
		return &arenaBlock{}
	},
}

// blockList owns the slabs of an Arena. Blocks are kept roughly sorted by ascending free space
// so that forward searches fill the fullest blocks first.
type blockList struct {
	logger *slog.Logger
	slabs  SlabSource
	budget *Budget

	preferredBlockSize int
	minBlockCount      int
	maxBlockCount      int
	explicitBlockSize  bool
	strategy           metadata.AllocationStrategy

	mutex           utils.OptionalRWMutex
	blocks          []*arenaBlock
	nextBlockId     int
	incrementalSort bool
}

func (l *blockList) PreferredBlockSize() int { return l.preferredBlockSize }
func (l *blockList) BlockCount() int         { return len(l.blocks) }

func (l *blockList) Init(
	useMutex bool,
	logger *slog.Logger,
	slabs SlabSource,
	budget *Budget,
	preferredBlockSize int,
	minBlockCount, maxBlockCount int,
	explicitBlockSize bool,
	strategy metadata.AllocationStrategy,
) {
	l.logger = logger
	l.slabs = slabs
	l.budget = budget
	l.preferredBlockSize = preferredBlockSize
	l.minBlockCount = minBlockCount
	l.maxBlockCount = maxBlockCount
	l.explicitBlockSize = explicitBlockSize
	l.strategy = strategy
	l.incrementalSort = true
	l.mutex = utils.OptionalRWMutex{
		UseMutex: useMutex,
		Mutex:    sync.RWMutex{},
	}
}

func (l *blockList) Destroy() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var err error
	remaining := l.blocks[:0]
	for _, block := range l.blocks {
		destroyErr := block.Destroy()
		if destroyErr != nil {
			err = errors.CombineErrors(err, destroyErr)
			remaining = append(remaining, block)
			continue
		}
		blockPool.Put(block)
	}
	l.blocks = remaining
	return err
}

func (l *blockList) CreateMinBlocks() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for len(l.blocks) < l.minBlockCount {
		_, err := l.CreateBlock(l.preferredBlockSize)
		if err != nil {
			return err
		}
	}

	return nil
}

func (l *blockList) AddStatistics(stats *memutils.Statistics) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
		l.blocks[blockIndex].metadata.AddStatistics(stats)
	}
}

func (l *blockList) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
		l.blocks[blockIndex].metadata.AddDetailedStatistics(stats)
	}
}

func (l *blockList) IsEmpty() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return len(l.blocks) == 0
}

func (l *blockList) HasNoAllocations() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
		if !l.blocks[blockIndex].metadata.IsEmpty() {
			return false
		}
	}

	return true
}

// CreateBlock reserves blockSize bytes from the budget and obtains a slab for them. The caller
// must hold the write lock.
func (l *blockList) CreateBlock(blockSize int) (int, error) {
	err := l.budget.AddBlockAllocation(blockSize)
	if err != nil {
		return -1, err
	}

	data, err := l.slabs.AllocSlab(blockSize)
	if err != nil {
		l.budget.RemoveBlockAllocation(blockSize)
		return -1, err
	}

	block := blockPool.Get().(*arenaBlock)
	block.Init(l.logger, l, l.nextBlockId, data)
	l.nextBlockId++

	l.blocks = append(l.blocks, block)
	return len(l.blocks) - 1, nil
}

func (l *blockList) Remove(block *arenaBlock) {
	for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
		if l.blocks[blockIndex] == block {
			l.blocks = append(l.blocks[0:blockIndex], l.blocks[blockIndex+1:]...)
			return
		}
	}

	panic("attempted to remove a block from a block list that did not belong to it")
}

func (l *blockList) IsCorruptionDetectionEnabled() bool {
	return memutils.DebugMargin > 0
}

// Allocate carves size bytes out of an existing block, creating a new block if none has room
func (l *blockList) Allocate(size int, tag uint64) (Block, error) {
	// Keeping suballocation sizes aligned keeps every following offset aligned too, and puts
	// the guard bytes on a 4-byte boundary
	allocSize := memutils.AlignUp(size, memutils.DefaultAlignment)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.allocPage(size, allocSize, tag)
}

func (l *blockList) allocPage(size, allocSize int, tag uint64) (Block, error) {
	canCreateNewBlock := len(l.blocks) < l.maxBlockCount

	// Early reject: requested allocation size is larger than maximum block size for this block list
	if allocSize+memutils.DebugMargin > l.preferredBlockSize {
		return Block{}, errors.Wrapf(ErrOutOfMemory, "allocation of %d bytes cannot fit in a block of %d bytes", size, l.preferredBlockSize)
	}

	// 1. Search existing blocks
	if l.strategy&metadata.AllocationStrategyMinTime == 0 {
		// Prefer blocks with the smallest amount of free space by iterating forward
		for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
			currentBlock := l.blocks[blockIndex]

			block, found, err := l.allocFromBlock(currentBlock, size, allocSize, tag)
			if err != nil {
				return Block{}, err
			} else if found {
				l.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Returned from existing block", slog.Int("block.id", currentBlock.id))
				l.incrementallySortBlocks()
				return block, nil
			}
		}
	} else {
		// Prefer blocks with the largest amount of free space by iterating backward
		for blockIndex := len(l.blocks) - 1; blockIndex >= 0; blockIndex-- {
			currentBlock := l.blocks[blockIndex]

			block, found, err := l.allocFromBlock(currentBlock, size, allocSize, tag)
			if err != nil {
				return Block{}, err
			} else if found {
				l.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Returned from existing block", slog.Int("block.id", currentBlock.id))
				l.incrementallySortBlocks()
				return block, nil
			}
		}
	}

	if !canCreateNewBlock {
		return Block{}, errors.Wrapf(ErrOutOfMemory, "all %d blocks are full", len(l.blocks))
	}

	// 2. Try to create a new block, starting small while the arena is young
	requiredSize := allocSize + memutils.DebugMargin
	newBlockSize := l.preferredBlockSize
	newBlockSizeShift := 0
	const MaxNewBlockSizeShift = 3

	if !l.explicitBlockSize {
		maxExistingBlockSize := l.calcMaxBlockSize()

		for i := 0; i < MaxNewBlockSizeShift; i++ {
			smallerNewBlockSize := newBlockSize / 2
			if smallerNewBlockSize > maxExistingBlockSize && smallerNewBlockSize >= requiredSize*2 {
				newBlockSize = smallerNewBlockSize
				newBlockSizeShift++
			} else {
				break
			}
		}
	}

	newBlockIndex, err := l.CreateBlock(newBlockSize)

	// Retry with smaller blocks if the budget is tight
	if !l.explicitBlockSize {
		for err != nil && errors.Is(err, ErrOutOfMemory) && newBlockSizeShift < MaxNewBlockSizeShift {
			smallerNewBlockSize := newBlockSize / 2
			if smallerNewBlockSize < requiredSize {
				break
			}

			newBlockSize = smallerNewBlockSize
			newBlockSizeShift++
			newBlockIndex, err = l.CreateBlock(newBlockSize)
		}
	}

	if err != nil {
		return Block{}, err
	}

	block := l.blocks[newBlockIndex]
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Created new block", slog.Int("block.id", block.id), slog.Int("Size", newBlockSize))

	result, found, err := l.allocFromBlock(block, size, allocSize, tag)
	if err != nil {
		return Block{}, err
	} else if !found {
		panic(fmt.Sprintf("created a new block of size %d to hold an allocation of size %d but the allocation did not fit", newBlockSize, allocSize))
	}

	l.incrementallySortBlocks()
	return result, nil
}

func (l *blockList) Free(alloc Block) error {
	blockToDelete, err := l.freeWithLock(alloc)
	if err != nil {
		return err
	}

	if blockToDelete != nil {
		l.logger.LogAttrs(context.Background(), slog.LevelDebug, "    Deleted empty block", slog.Int("block.id", blockToDelete.id))
		err = blockToDelete.Destroy()
		if err != nil {
			panic(fmt.Sprintf("unexpected failure when destroying an arena block in response to freeing an allocation: %+v", err))
		}
		blockPool.Put(blockToDelete)
	}

	return nil
}

func (l *blockList) freeWithLock(alloc Block) (blockToDelete *arenaBlock, err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	block := alloc.arenaBlock
	suballoc, err := block.metadata.Suballocation(alloc.handle)
	if err != nil {
		return nil, errors.Wrapf(err, "block was not live in arena block %d", block.id)
	}

	if l.IsCorruptionDetectionEnabled() {
		block.ValidateMagicValueAfterAllocation(suballoc.Offset, suballoc.Size)
	}

	hasEmptyBlockBeforeFree := l.hasEmptyBlock()
	err = block.metadata.Free(alloc.handle)
	if err != nil {
		panic(fmt.Sprintf("unexpected error when freeing allocation with handle %+v in metadata: %+v", alloc.handle, err))
	}
	l.budget.RemoveAllocation(suballoc.Size)
	memutils.DebugValidate(block)

	budgetExhausted := l.budget.Available() == 0
	canDeleteBlock := len(l.blocks) > l.minBlockCount

	if block.metadata.IsEmpty() && (hasEmptyBlockBeforeFree || budgetExhausted) && canDeleteBlock {
		// Keep at most one empty block around
		blockToDelete = block
		l.Remove(block)
	} else if !block.metadata.IsEmpty() && hasEmptyBlockBeforeFree && canDeleteBlock {
		lastBlock := l.blocks[len(l.blocks)-1]
		if lastBlock.metadata.IsEmpty() {
			blockToDelete = lastBlock
			l.blocks = l.blocks[:len(l.blocks)-1]
		}
	}

	l.incrementallySortBlocks()

	return blockToDelete, nil
}

func (l *blockList) hasEmptyBlock() bool {
	for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
		if l.blocks[blockIndex].metadata.IsEmpty() {
			return true
		}
	}

	return false
}

// incrementallySortBlocks performs a single bubble step toward ascending free size
func (l *blockList) incrementallySortBlocks() {
	if !l.incrementalSort {
		return
	}

	for blockIndex := 1; blockIndex < len(l.blocks); blockIndex++ {
		if l.blocks[blockIndex-1].metadata.SumFreeSize() > l.blocks[blockIndex].metadata.SumFreeSize() {
			l.blocks[blockIndex-1], l.blocks[blockIndex] = l.blocks[blockIndex], l.blocks[blockIndex-1]
			return
		}
	}
}

func (l *blockList) calcMaxBlockSize() int {
	result := 0
	for blockIndex := len(l.blocks) - 1; blockIndex >= 0; blockIndex-- {
		blockSize := l.blocks[blockIndex].metadata.Size()
		if blockSize <= result {
			continue
		}

		result = blockSize
		if result >= l.preferredBlockSize {
			return result
		}
	}

	return result
}

func (l *blockList) allocFromBlock(block *arenaBlock, size, allocSize int, tag uint64) (Block, bool, error) {
	if !block.metadata.MayHaveFreeBlock(allocSize) {
		return Block{}, false, nil
	}

	success, currRequest, err := block.metadata.CreateAllocationRequest(allocSize, memutils.DefaultAlignment, l.strategy)
	if err != nil {
		return Block{}, false, err
	} else if !success {
		return Block{}, false, nil
	}

	result, err := l.commitAllocationRequest(currRequest, block, size, tag)
	if err != nil {
		return Block{}, false, err
	}
	return result, true, nil
}

func (l *blockList) commitAllocationRequest(allocRequest metadata.AllocationRequest, block *arenaBlock, size int, tag uint64) (Block, error) {
	err := block.metadata.Alloc(allocRequest, tag)
	if err != nil {
		return Block{}, err
	}

	offset, err := block.metadata.AllocationOffset(allocRequest.BlockAllocationHandle)
	if err != nil {
		return Block{}, err
	}

	l.budget.AddAllocation(allocRequest.Size)

	if l.IsCorruptionDetectionEnabled() {
		err = block.WriteMagicBlockAfterAllocation(offset, allocRequest.Size)
		if err != nil {
			panic(fmt.Sprintf("failed to write magic values with unexpected error: %+v", err))
		}
	}

	data := block.data[offset : offset+size : offset+size]
	clear(data)

	return Block{
		Data:       data,
		arenaBlock: block,
		handle:     allocRequest.BlockAllocationHandle,
	}, nil
}

func (l *blockList) PrintDetailedMap(json *jwriter.ObjectState) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for i := 0; i < len(l.blocks); i++ {
		block := l.blocks[i]

		blockObj := json.Name(strconv.Itoa(block.id)).Object()
		block.metadata.BlockJsonData(&blockObj)
		l.printDetailedMapAllocations(block.metadata, &blockObj)
		blockObj.End()
	}
}

func (l *blockList) printDetailedMapAllocations(md metadata.BlockMetadata, json *jwriter.ObjectState) {
	arrayState := json.Name("Suballocations").Array()
	defer arrayState.End()

	_ = md.VisitAllRegions(
		func(handle metadata.BlockAllocationHandle, offset int, size int, userData any, free bool) error {
			obj := arrayState.Object()
			defer obj.End()

			obj.Name("Offset").Int(offset)
			obj.Name("Size").Int(size)

			if free {
				obj.Name("Type").String("Free")
			} else if tag, isTag := userData.(uint64); isTag {
				obj.Name("Type").String("Allocation")
				obj.Name("Tag").Float64(float64(tag))
			}

			return nil
		})
}

func (l *blockList) CheckCorruption() error {
	if !l.IsCorruptionDetectionEnabled() {
		return ErrCorruptionDetectionDisabled
	}

	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
		err := l.blocks[blockIndex].CheckCorruption()
		if err != nil {
			return errors.Wrapf(err, "block %d", l.blocks[blockIndex].id)
		}
	}

	return nil
}

func (l *blockList) Validate() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	if len(l.blocks) > l.maxBlockCount {
		return errors.Newf("block list holds %d blocks but may only hold %d", len(l.blocks), l.maxBlockCount)
	}

	for blockIndex := 0; blockIndex < len(l.blocks); blockIndex++ {
		block := l.blocks[blockIndex]
		if block.parent != l {
			return errors.Newf("block %d does not belong to this block list", block.id)
		}

		err := block.Validate()
		if err != nil {
			return errors.Wrapf(err, "block %d", block.id)
		}
	}

	return nil
}
