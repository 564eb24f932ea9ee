package metadata

import "math"

// BlockAllocationHandle identifies a region within a single BlockMetadata. Handles are never
// reused by the same metadata.
type BlockAllocationHandle uint64

const (
	NoAllocation BlockAllocationHandle = math.MaxUint64
)

// Suballocation describes the placement of a live allocation within its block
type Suballocation struct {
	Offset   int
	Size     int
	UserData any
}

// End returns the offset of the first byte past the allocation
func (s Suballocation) End() int {
	return s.Offset + s.Size
}
