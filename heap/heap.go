// Package heap provides the byte stores that back tagged allocations. A Heap hands out
// zeroed, 8-byte aligned regions and takes them back; it knows nothing about what is stored in them.
package heap

import (
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/memutils/metadata"
)

//go:generate mockgen -source heap.go -destination ./mocks/heap.go -package mocks

// ErrOutOfMemory is returned, possibly wrapped, whenever a heap cannot satisfy a request. Use
// errors.Is to test for it.
var ErrOutOfMemory = errors.New("out of memory")

// MaxAllocationSize is the largest region any Heap will attempt to hand out: 64 TiB on 64-bit
// platforms, 1 GiB on 32-bit ones. Larger requests fail with ErrOutOfMemory.
const MaxAllocationSize = (math.MaxInt >> 1) >> ((bits.UintSize - 32) / 2)

func checkAllocationSize(size int) error {
	if size < 1 {
		return errors.Newf("invalid allocation size %d", size)
	}
	if size > MaxAllocationSize {
		return errors.Wrapf(ErrOutOfMemory, "requested %d bytes, more than the largest possible allocation of %d", size, MaxAllocationSize)
	}
	return nil
}

// Heap is a source of byte regions. Alloc returns a region of exactly size bytes whose first byte is
// aligned to memutils.DefaultAlignment. tag is an opaque value chosen by the caller that the heap may
// record for diagnostics. Free returns a region obtained from the same heap.
type Heap interface {
	Alloc(size int, tag uint64) (Block, error)
	Free(block Block) error
}

// Block is a region handed out by a Heap. Data must not be resliced beyond its length, and
// the Block value must be passed back to Free unchanged.
type Block struct {
	Data []byte

	arenaBlock *arenaBlock
	dedicated  *dedicatedAllocation
	handle     metadata.BlockAllocationHandle
}

// Size returns the number of bytes in the block
func (b Block) Size() int {
	return len(b.Data)
}
