package heap

import (
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

// Budget tracks the bytes a heap has obtained from the system (blocks) and the bytes it has
// handed to callers (allocations). Block bytes may be capped with a limit. All methods are safe for
// concurrent use.
type Budget struct {
	blockCount      uint32
	allocationCount uint32
	blockBytes      uint64
	allocationBytes uint64

	limit uint64
}

// NewBudget creates a Budget that refuses block growth past limit bytes. A limit of 0 or less
// means unlimited.
func NewBudget(limit int) *Budget {
	b := &Budget{}
	if limit > 0 {
		b.limit = uint64(limit)
	}
	return b
}

// Limit returns the block byte limit, or 0 if the budget is unlimited
func (b *Budget) Limit() int {
	return int(b.limit)
}

// Available returns the number of block bytes that may still be obtained, or -1 if the budget
// is unlimited
func (b *Budget) Available() int {
	if b.limit == 0 {
		return -1
	}

	used := atomic.LoadUint64(&b.blockBytes)
	if used >= b.limit {
		return 0
	}
	return int(b.limit - used)
}

func (b *Budget) AddAllocation(allocationSize int) {
	atomic.AddUint64(&b.allocationBytes, uint64(allocationSize))
	atomic.AddUint32(&b.allocationCount, 1)
}

func (b *Budget) RemoveAllocation(allocationSize int) {
	if atomic.LoadUint64(&b.allocationBytes) < uint64(allocationSize) {
		panic(fmt.Sprintf("allocation bytes budget went negative removing %d bytes", allocationSize))
	}
	atomic.AddUint64(&b.allocationBytes, ^uint64(allocationSize-1))
	if atomic.LoadUint32(&b.allocationCount) == 0 {
		panic("allocation count budget went negative")
	}

	atomic.AddUint32(&b.allocationCount, ^uint32(0))
}

// AddBlockAllocation reserves blockSize bytes against the limit. It returns an error wrapping
// ErrOutOfMemory if the reservation would exceed the limit.
func (b *Budget) AddBlockAllocation(blockSize int) error {
	for {
		currentVal := atomic.LoadUint64(&b.blockBytes)
		targetVal := currentVal + uint64(blockSize)

		if b.limit > 0 && targetVal > b.limit {
			return errors.Wrapf(ErrOutOfMemory, "reserving %d bytes would exceed the limit of %d bytes (%d in use)", blockSize, b.limit, currentVal)
		}

		if atomic.CompareAndSwapUint64(&b.blockBytes, currentVal, targetVal) {
			break
		}
	}

	atomic.AddUint32(&b.blockCount, 1)
	return nil
}

func (b *Budget) RemoveBlockAllocation(blockSize int) {
	if atomic.LoadUint64(&b.blockBytes) < uint64(blockSize) {
		panic(fmt.Sprintf("block bytes budget went negative removing %d bytes", blockSize))
	}
	atomic.AddUint64(&b.blockBytes, ^uint64(blockSize-1))
	if atomic.LoadUint32(&b.blockCount) == 0 {
		panic("block count budget went negative")
	}

	atomic.AddUint32(&b.blockCount, ^uint32(0))
}

// Statistics returns a snapshot of the tracked totals
func (b *Budget) Statistics() memutils.Statistics {
	return memutils.Statistics{
		BlockCount:      int(atomic.LoadUint32(&b.blockCount)),
		AllocationCount: int(atomic.LoadUint32(&b.allocationCount)),
		BlockBytes:      int(atomic.LoadUint64(&b.blockBytes)),
		AllocationBytes: int(atomic.LoadUint64(&b.allocationBytes)),
	}
}
