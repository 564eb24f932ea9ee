package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

// BlockMetadata tracks the suballocations carved out of a single contiguous slab of bytes. It
// never touches the slab itself: consumers commit an allocation to the metadata and then use
// the returned offset to address their own memory.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. size is the number of bytes in the
	// slab that this metadata will be managing.
	Init(size int)
	// Size retrieves the size in bytes that the block was initialized with
	Size() int

	// Validate performs internal consistency checks on the metadata. These checks may be expensive.
	// When the implementation is functioning correctly it should not be possible for this method
	// to return an error.
	Validate() error
	// AllocationCount returns the number of suballocations currently live in the block
	AllocationCount() int
	// FreeRegionsCount returns the number of distinct free regions in the block
	FreeRegionsCount() int
	// SumFreeSize returns the number of free bytes in the block
	SumFreeSize() int
	// MayHaveFreeBlock is a fast heuristic indicating whether an allocation of the provided size
	// could possibly succeed. It may return false positives but never false negatives, so consumers
	// can use it to skip blocks without building a full allocation request.
	MayHaveFreeBlock(size int) bool

	// IsEmpty will return true if this block has no live suballocations
	IsEmpty() bool

	// VisitAllRegions calls the provided callback once for each allocation and free region in
	// the block, in ascending offset order. This walks every region and should be reserved for
	// diagnostics.
	VisitAllRegions(handleBlock func(handle BlockAllocationHandle, offset int, size int, userData any, free bool) error) error

	// AllocationOffset returns the offset in bytes of a live region within the block
	AllocationOffset(allocHandle BlockAllocationHandle) (int, error)
	// Suballocation returns the placement and userData of a live allocation within the block
	Suballocation(allocHandle BlockAllocationHandle) (Suballocation, error)
	// AllocationUserData returns the userData value provided when the allocation was committed
	AllocationUserData(allocHandle BlockAllocationHandle) (any, error)
	// SetAllocationUserData replaces the userData value of a live allocation
	SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error

	// AddDetailedStatistics sums this block's allocation statistics into the provided object
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this block's allocation statistics into the provided object
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocations
	Clear()
	// BlockJsonData populates a json object with information about this block
	BlockJsonData(json *jwriter.ObjectState)

	// CheckCorruption accepts the slab that this metadata manages and returns nil if the guard bytes
	// following every live suballocation are intact.
	//
	// Guard bytes are only present when memutils is built with the `debug_mem_utils` build tag, and
	// it is the consumer's responsibility to write them after each allocation with
	// memutils.WriteMagicValue.
	CheckCorruption(blockData []byte) error

	// CreateAllocationRequest finds a place for an allocation without committing it. The returned
	// bool is false when the block does not have room for the request.
	//
	// allocSize - the size in bytes of the requested allocation
	// allocAlignment - the minimum alignment of the requested allocation, which must be a power of two
	// strategy - whether to prioritize memory usage, memory offset, or allocation speed
	CreateAllocationRequest(allocSize int, allocAlignment uint, strategy AllocationStrategy) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest produced by CreateAllocationRequest. The request must not
	// have been invalidated by another Alloc or Free in the meantime.
	Alloc(request AllocationRequest, userData any) error

	// Free returns a live suballocation to the block
	Free(allocHandle BlockAllocationHandle) error
}

// BlockMetadataBase holds the state shared by BlockMetadata implementations in this package.
type BlockMetadataBase struct {
	size int
}

// Init prepares this structure for allocations and sizes the block in bytes based on the parameter size.
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the block in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

func (m *BlockMetadataBase) writeJsonHeader(json *jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
