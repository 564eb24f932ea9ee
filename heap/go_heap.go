package heap

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

// GoHeap allocates every block directly from the Go runtime. Blocks become garbage once
// freed. An optional byte limit turns the Go heap into a bounded one, which is mostly useful
// for exercising out-of-memory paths.
type GoHeap struct {
	budget *Budget
}

var _ Heap = &GoHeap{}

// NewGoHeap creates a GoHeap that refuses to have more than limit bytes outstanding. A limit
// of 0 or less means unlimited.
func NewGoHeap(limit int) *GoHeap {
	return &GoHeap{budget: NewBudget(limit)}
}

func (h *GoHeap) Alloc(size int, tag uint64) (Block, error) {
	err := checkAllocationSize(size)
	if err != nil {
		return Block{}, err
	}

	err = h.budget.AddBlockAllocation(size)
	if err != nil {
		return Block{}, err
	}
	h.budget.AddAllocation(size)

	// Rounding the capacity to a multiple of 8 keeps the runtime's tiny allocator from packing
	// small blocks at a lesser alignment
	return Block{Data: make([]byte, size, memutils.AlignUp(size, memutils.DefaultAlignment))[:size:size]}, nil
}

func (h *GoHeap) Free(block Block) error {
	if block.Data == nil {
		return errors.New("attempted to free an empty block")
	}
	if block.arenaBlock != nil || block.dedicated != nil {
		return errors.New("attempted to free an arena block through a GoHeap")
	}

	h.budget.RemoveAllocation(len(block.Data))
	h.budget.RemoveBlockAllocation(len(block.Data))
	return nil
}

// Statistics returns the number and size of outstanding blocks
func (h *GoHeap) Statistics() memutils.Statistics {
	return h.budget.Statistics()
}
