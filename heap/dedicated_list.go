package heap

import (
	"context"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/dcpsmem/internal/utils"
	"github.com/vkngwrapper/dcpsmem/memutils"
	"golang.org/x/exp/slog"
)

// dedicatedAllocation is a region too large to share a block, so it gets a slab of its own
type dedicatedAllocation struct {
	slab []byte
	size int
	tag  uint64

	prev *dedicatedAllocation
	next *dedicatedAllocation
}

func (a *dedicatedAllocation) printParameters(json *jwriter.ObjectState) {
	json.Name("Tag").Float64(float64(a.tag))
	json.Name("Size").Int(a.size)
	json.Name("SlabSize").Int(len(a.slab))
}

type dedicatedAllocationList struct {
	mutex utils.OptionalRWMutex

	count              int
	allocationListHead *dedicatedAllocation
	allocationListTail *dedicatedAllocation
}

func (l *dedicatedAllocationList) Init(useMutex bool) {
	l.mutex = utils.OptionalRWMutex{UseMutex: useMutex}
}

func (l *dedicatedAllocationList) Validate() error {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	declaredCount := l.count
	actualCount := 0

	for alloc := l.allocationListHead; alloc != nil; alloc = alloc.next {
		actualCount++
		if alloc.size > len(alloc.slab) {
			return errors.Errorf("dedicated allocation with tag %d has size %d but its slab only holds %d bytes", alloc.tag, alloc.size, len(alloc.slab))
		}
	}

	if declaredCount != actualCount {
		return errors.Errorf("the listed number of dedicated allocations in the list (%d) does not match the actual number of allocations (%d)", declaredCount, actualCount)
	}

	return nil
}

func (l *dedicatedAllocationList) AddStatistics(stats *memutils.Statistics) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for item := l.allocationListHead; item != nil; item = item.next {
		stats.BlockCount++
		stats.BlockBytes += len(item.slab)
		stats.AllocationCount++
		stats.AllocationBytes += item.size
	}
}

func (l *dedicatedAllocationList) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for item := l.allocationListHead; item != nil; item = item.next {
		stats.Statistics.BlockCount++
		stats.Statistics.BlockBytes += len(item.slab)
		stats.AddAllocation(item.size)
	}
}

func (l *dedicatedAllocationList) BuildStatsString(json *jwriter.ArrayState) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for alloc := l.allocationListHead; alloc != nil; alloc = alloc.next {
		o := json.Object()
		alloc.printParameters(&o)
		o.End()
	}
}

func (l *dedicatedAllocationList) IsEmpty() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.count == 0
}

func (l *dedicatedAllocationList) Register(alloc *dedicatedAllocation) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.pushAllocation(alloc)
}

func (l *dedicatedAllocationList) Unregister(alloc *dedicatedAllocation) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.removeAllocation(alloc)
}

// LogUnreleased writes one error record per live dedicated allocation and returns how many there were
func (l *dedicatedAllocationList) LogUnreleased(logger *slog.Logger) int {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	for alloc := l.allocationListHead; alloc != nil; alloc = alloc.next {
		logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed dedicated allocation",
			slog.Int("size", alloc.size),
			slog.Any("tag", alloc.tag),
		)
	}

	return l.count
}

func (l *dedicatedAllocationList) removeAllocation(alloc *dedicatedAllocation) {
	prev := alloc.prev
	next := alloc.next

	if prev != nil {
		prev.next = next
	} else {
		l.allocationListHead = next
	}

	if next != nil {
		next.prev = prev
	} else {
		l.allocationListTail = prev
	}

	alloc.next = nil
	alloc.prev = nil

	l.count--
}

func (l *dedicatedAllocationList) pushAllocation(alloc *dedicatedAllocation) {
	if l.count == 0 {
		l.allocationListHead = alloc
		l.allocationListTail = alloc
		l.count = 1
	} else {
		alloc.prev = l.allocationListTail
		l.allocationListTail.next = alloc

		l.allocationListTail = alloc
		l.count++
	}
}
