package memutils

import (
	"math"

	cerrors "github.com/cockroachdb/errors"
)

// DefaultAlignment is the alignment applied to every region handed out by the heaps in this module.
// It matches the alignment of a uint64 so that fixed-width records can be laid directly over payloads.
const DefaultAlignment uint = 8

type Number interface {
	~int | ~uint | ~int64 | ~uint64
}

func CheckPow2[T Number](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

// CheckSize returns an error wrapping NegativeSizeError if size is below zero
func CheckSize(size int, name string) error {
	if size < 0 {
		return cerrors.Wrapf(NegativeSizeError, "%s is %d", name, size)
	}
	return nil
}

// AlignUp rounds value up to a multiple of alignment. It returns -1 when the rounded value
// would not fit in an int.
func AlignUp(value int, alignment uint) int {
	if value > math.MaxInt-int(alignment-1) {
		return -1
	}
	return (value + int(alignment) - 1) & int(^(alignment - 1))
}

func AlignDown(value int, alignment uint) int {
	return value & int(^(alignment - 1))
}

// IsAligned returns true if value is a multiple of alignment. alignment must be a power of two.
func IsAligned(value int, alignment uint) bool {
	return value&int(alignment-1) == 0
}
