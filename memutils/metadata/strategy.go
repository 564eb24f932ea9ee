package metadata

import "strings"

// AllocationStrategy exposes several options for choosing the location of a new allocation.
// If none is chosen, a balanced strategy will be used.
type AllocationStrategy uint32

const (
	// AllocationStrategyMinMemory chooses the smallest free range that fits, minimizing
	// fragmentation at the expense of allocation time
	AllocationStrategyMinMemory AllocationStrategy = 1 << iota
	// AllocationStrategyMinTime chooses the first suitable free range that is cheap to find,
	// which is not necessarily the one with the smallest offset
	AllocationStrategyMinTime
	// AllocationStrategyMinOffset chooses the lowest offset in available space, producing
	// tightly packed blocks
	AllocationStrategyMinOffset

	AllocationStrategyMask = AllocationStrategyMinMemory |
		AllocationStrategyMinTime |
		AllocationStrategyMinOffset
)

var allocationStrategyMapping = map[AllocationStrategy]string{
	AllocationStrategyMinMemory: "AllocationStrategyMinMemory",
	AllocationStrategyMinTime:   "AllocationStrategyMinTime",
	AllocationStrategyMinOffset: "AllocationStrategyMinOffset",
}

func (s AllocationStrategy) String() string {
	if s == 0 {
		return "AllocationStrategyBalanced"
	}

	var names []string
	for bit := AllocationStrategy(1); bit != 0 && bit <= s; bit <<= 1 {
		if s&bit == 0 {
			continue
		}

		name, ok := allocationStrategyMapping[bit]
		if !ok {
			name = "Unknown"
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}
