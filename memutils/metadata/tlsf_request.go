package metadata

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/pkg/errors"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

func (m *TLSFBlockMetadata) CreateAllocationRequest(
	allocSize int, allocAlignment uint,
	strategy AllocationStrategy,
) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if allocSize < 1 {
		return false, allocRequest, errors.Errorf("invalid allocSize: %d", allocSize)
	}
	if allocAlignment == 0 {
		allocAlignment = 1
	}
	if err := memutils.CheckPow2(allocAlignment, "allocAlignment"); err != nil {
		return false, allocRequest, err
	}

	memutils.DebugValidate(m)

	allocSize += memutils.DebugMargin

	if allocSize > m.SumFreeSize() {
		return false, allocRequest, nil
	}

	// Nothing has been freed yet, so the null block is the only candidate
	if m.blocksFreeCount == 0 {
		success := m.checkBlock(m.nullBlock, len(m.freeList), allocSize, allocAlignment, &allocRequest)
		return success, allocRequest, nil
	}

	// Size that guarantees any block in the resulting list is large enough, ignoring alignment
	sizeForNextList := allocSize
	if allocSize > SmallBufferSize {
		mostSignificantBit := 63 - bits.LeadingZeros64(uint64(allocSize))
		sizeForNextList += int(uint(1) << (mostSignificantBit - int(SecondLevelIndex)))
	} else if allocSize > SmallBufferSize-smallSizeStep {
		sizeForNextList = SmallBufferSize + 1
	} else {
		sizeForNextList += smallSizeStep
	}

	nextListIndex := 0
	doFullSearch := false
	var nextListBlock *tlsfBlock

	switch {
	case strategy&AllocationStrategyMinTime != 0:
		nextListBlock, nextListIndex = m.findFreeBlock(sizeForNextList)
		if nextListBlock != nil {
			doFullSearch = true
			if m.checkBlock(nextListBlock, nextListIndex, allocSize, allocAlignment, &allocRequest) {
				return true, allocRequest, nil
			}
		}

		if m.checkBlock(m.nullBlock, len(m.freeList), allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		if m.searchList(nextListBlock, nextListIndex, allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		prevListBlock, prevListIndex := m.findFreeBlock(allocSize)
		if m.searchList(prevListBlock, prevListIndex, allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

	case strategy&AllocationStrategyMinMemory != 0:
		prevListBlock, prevListIndex := m.findFreeBlock(allocSize)
		if m.searchList(prevListBlock, prevListIndex, allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		if m.checkBlock(m.nullBlock, len(m.freeList), allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		nextListBlock, nextListIndex = m.findFreeBlock(sizeForNextList)
		doFullSearch = nextListBlock != nil
		if m.searchList(nextListBlock, nextListIndex, allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

	case strategy&AllocationStrategyMinOffset != 0:
		// Walk the physical chain from offset 0 so the first fit is also the lowest fit
		for block := m.tailBlock; block != nil && block != m.nullBlock; block = block.nextPhysical {
			if block.IsFree() && block.size >= allocSize {
				if m.checkBlock(block, m.getListIndexFromSize(block.size), allocSize, allocAlignment, &allocRequest) {
					return true, allocRequest, nil
				}
			}
		}

		success := m.checkBlock(m.nullBlock, len(m.freeList), allocSize, allocAlignment, &allocRequest)
		return success, allocRequest, nil

	default:
		nextListBlock, nextListIndex = m.findFreeBlock(sizeForNextList)
		doFullSearch = nextListBlock != nil
		if m.searchList(nextListBlock, nextListIndex, allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		if m.checkBlock(m.nullBlock, len(m.freeList), allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}

		prevListBlock, prevListIndex := m.findFreeBlock(allocSize)
		if m.searchList(prevListBlock, prevListIndex, allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}
	}

	if !doFullSearch {
		return false, allocRequest, nil
	}

	// Alignment may have defeated every bucketed candidate, so try every larger list
	for nextListIndex++; nextListIndex < len(m.freeList); nextListIndex++ {
		if m.searchList(m.freeList[nextListIndex], nextListIndex, allocSize, allocAlignment, &allocRequest) {
			return true, allocRequest, nil
		}
	}

	return false, allocRequest, nil
}

func (m *TLSFBlockMetadata) searchList(
	block *tlsfBlock,
	listIndex int,
	allocSize int,
	allocAlignment uint,
	allocRequest *AllocationRequest,
) bool {
	for ; block != nil; block = block.nextFree {
		if m.checkBlock(block, listIndex, allocSize, allocAlignment, allocRequest) {
			return true
		}
	}

	return false
}

func (m *TLSFBlockMetadata) checkBlock(
	block *tlsfBlock,
	listIndex int,
	allocSize int,
	allocAlignment uint,
	allocRequest *AllocationRequest,
) bool {
	if !block.IsFree() {
		panic(fmt.Sprintf("block at offset %d is already taken", block.offset))
	}

	alignedOffset := memutils.AlignUp(block.offset, allocAlignment)

	if block.size < allocSize+alignedOffset-block.offset {
		return false
	}

	allocRequest.Type = AllocationRequestTLSF
	allocRequest.BlockAllocationHandle = block.blockHandle
	allocRequest.Size = allocSize - memutils.DebugMargin
	allocRequest.AlgorithmData = uint64(alignedOffset)

	// Move a successful candidate to the head of its list so the next search finds it first
	if listIndex != len(m.freeList) && block.prevFree != nil {
		block.prevFree.nextFree = block.nextFree
		if block.nextFree != nil {
			block.nextFree.prevFree = block.prevFree
		}

		block.prevFree = nil
		block.nextFree = m.freeList[listIndex]
		m.freeList[listIndex] = block
		if block.nextFree != nil {
			block.nextFree.prevFree = block
		}
	}

	return true
}

func (m *TLSFBlockMetadata) findFreeBlock(size int) (*tlsfBlock, int) {
	memoryClass := m.sizeToMemoryClass(size)
	innerFreeMap := m.innerIsFreeBitmap[memoryClass] & (math.MaxUint32 << m.sizeToSecondIndex(size, memoryClass))

	if innerFreeMap == 0 {
		freeMap := m.isFreeBitmap & (math.MaxUint32 << (memoryClass + 1))
		if freeMap == 0 {
			return nil, 0
		}

		memoryClass = uint8(bits.TrailingZeros32(freeMap))
		innerFreeMap = m.innerIsFreeBitmap[memoryClass]
		if innerFreeMap == 0 {
			panic("free bitmap is in an invalid state")
		}
	}

	listIndex := m.getListIndex(memoryClass, uint16(bits.TrailingZeros32(innerFreeMap)))
	if m.freeList[listIndex] == nil {
		panic(fmt.Sprintf("free list index %d was listed as having free blocks, but no blocks were in the free list", listIndex))
	}

	return m.freeList[listIndex], listIndex
}
