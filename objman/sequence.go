package objman

import (
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/heap"
	"github.com/vkngwrapper/dcpsmem/memutils"
)

// countPrefixSize is the size of the element count stored ahead of every sequence buffer
const countPrefixSize = 8

// Sequence is a variable-length array of fixed-size elements stored in a separate buffer
// allocation. A Sequence holds no Go pointers, so it may itself live inside a payload.
//
// Data is released by the sequence only when Owns is set. A sequence with Owns unset borrows its
// buffer from someone else.
type Sequence struct {
	Capacity int
	Length   int
	Data     Handle
	Owns     bool
}

// Layout fixes the shape of a sequence's elements. Destructor, if set, is registered on every
// buffer allocated with the layout.
type Layout struct {
	ElementSize int
	Destructor  Destructor
}

// BufferAllocator produces a buffer able to hold count elements
type BufferAllocator func(count int) (Handle, error)

// BufferAllocator returns a BufferAllocator that allocates buffers with this layout from a
func (l Layout) BufferAllocator(a *Allocator) BufferAllocator {
	return func(count int) (Handle, error) {
		return a.AllocBuffer(l, count)
	}
}

// AllocBuffer allocates a zeroed buffer of count elements and records count in the buffer's hidden
// prefix. A count of 0 returns NoHandle.
func (a *Allocator) AllocBuffer(layout Layout, count int) (Handle, error) {
	a.logger.Debug("Allocator::AllocBuffer")

	if layout.ElementSize < 0 {
		return NoHandle, errors.Newf("invalid element size %d", layout.ElementSize)
	}
	err := memutils.CheckSize(count, "count")
	if err != nil {
		return NoHandle, err
	}
	if count == 0 {
		return NoHandle, nil
	}
	if count > heap.MaxAllocationSize || (layout.ElementSize > 0 && count > heap.MaxAllocationSize/layout.ElementSize) {
		return NoHandle, errors.Wrapf(heap.ErrOutOfMemory, "a buffer of %d elements of %d bytes exceeds the largest possible allocation", count, layout.ElementSize)
	}

	h, err := a.Allocate(countPrefixSize, layout.ElementSize*count, layout.Destructor)
	if err != nil {
		return NoHandle, err
	}

	prefix, _ := a.Prefix(h)
	binary.LittleEndian.PutUint64(prefix, uint64(count))
	return h, nil
}

// BufferCount returns the element count recorded when a buffer was allocated with AllocBuffer. It
// returns false if the handle is not live.
func (a *Allocator) BufferCount(h Handle) (int, bool) {
	prefix, ok := a.Prefix(h)
	if !ok || len(prefix) < countPrefixSize {
		return 0, false
	}

	return int(binary.LittleEndian.Uint64(prefix)), true
}

// CreateSequence allocates an owned buffer of count elements and returns a sequence holding count
// elements. If the allocation fails, no sequence is produced.
func (a *Allocator) CreateSequence(layout Layout, count int) (Sequence, error) {
	a.logger.Debug("Allocator::CreateSequence")

	buffer, err := a.AllocBuffer(layout, count)
	if err != nil {
		return Sequence{}, err
	}
	if buffer == NoHandle {
		return Sequence{}, nil
	}

	return Sequence{
		Capacity: count,
		Length:   count,
		Data:     buffer,
		Owns:     true,
	}, nil
}

// SequenceDestructor releases the buffer of the Sequence stored at the start of a payload if the
// sequence owns it. It is registered on sequence records created with NewSequence.
func SequenceDestructor(a *Allocator, h Handle) error {
	seq, err := View[Sequence](a, h)
	if err != nil {
		return err
	}

	return seq.Release(a)
}

// NewSequence allocates an empty Sequence record. Releasing the record releases its buffer if the
// sequence owns it.
func (a *Allocator) NewSequence() (Handle, *Sequence, error) {
	a.logger.Debug("Allocator::NewSequence")

	return NewObject[Sequence](a, SequenceDestructor)
}

// ElementDestructor builds a buffer destructor that calls fn once for each element of the buffer,
// using the count recorded by AllocBuffer
func ElementDestructor(elementSize int, fn func(a *Allocator, element []byte) error) Destructor {
	return func(a *Allocator, h Handle) error {
		count, ok := a.BufferCount(h)
		if !ok {
			return errors.Wrapf(ErrAlreadyReleased, "buffer %d has no element count", h)
		}

		data, err := a.Bytes(h)
		if err != nil {
			return err
		}
		if elementSize < 0 || (elementSize > 0 && count > len(data)/elementSize) {
			return errors.Newf("buffer %d records %d elements of %d bytes but holds %d bytes", h, count, elementSize, len(data))
		}

		var result error
		for i := 0; i < count; i++ {
			offset := i * elementSize
			result = errors.CombineErrors(result, fn(a, data[offset:offset+elementSize:offset+elementSize]))
		}

		return result
	}
}

// ElementDestructorOf is ElementDestructor for buffers of T
func ElementDestructorOf[T any](fn func(a *Allocator, element *T) error) Destructor {
	var zero T
	return ElementDestructor(int(unsafe.Sizeof(zero)), func(a *Allocator, element []byte) error {
		err := checkPlain[T]()
		if err != nil {
			return err
		}

		return fn(a, (*T)(unsafe.Pointer(unsafe.SliceData(element))))
	})
}

// SetLength makes the sequence hold n elements. If the capacity is already n, only the length
// changes. Otherwise a fresh owned buffer of n elements replaces the old one, which is released if
// the sequence owned it. Element contents are not carried over to a fresh buffer. If the fresh buffer
// cannot be allocated, the sequence is left unchanged.
func (s *Sequence) SetLength(a *Allocator, layout Layout, n int) error {
	err := memutils.CheckSize(n, "length")
	if err != nil {
		return err
	}

	if s.Capacity > 0 && n == s.Capacity {
		s.Length = n
		return nil
	}

	buffer, err := a.AllocBuffer(layout, n)
	if err != nil {
		return err
	}

	var releaseErr error
	if s.Capacity > 0 && s.Owns {
		releaseErr = a.Release(s.Data)
	}

	s.Data = buffer
	s.Capacity = n
	s.Length = n
	s.Owns = buffer != NoHandle
	memutils.DebugValidate(s)

	return releaseErr
}

// ReplaceBuffer hands the sequence a buffer produced by allocBuf. If count exceeds the current
// capacity the sequence is cleaned first. A fresh buffer is only obtained if the sequence has none
// afterward, in which case the sequence owns it and has length 0. An existing buffer large enough
// for count is kept.
func (s *Sequence) ReplaceBuffer(a *Allocator, allocBuf BufferAllocator, count int) error {
	err := memutils.CheckSize(count, "count")
	if err != nil {
		return err
	}

	if count > s.Capacity {
		err = s.Clean(a)
		if err != nil {
			return err
		}
	}

	if s.Data == NoHandle {
		buffer, err := allocBuf(count)
		if err != nil {
			return err
		}
		if count > 0 && buffer == NoHandle {
			return errors.Newf("buffer allocator returned no buffer for %d elements", count)
		}

		s.Data = buffer
		s.Capacity = count
		s.Length = 0
		s.Owns = buffer != NoHandle
	}

	memutils.DebugValidate(s)
	return nil
}

// Release releases the buffer if the sequence owns it. The sequence's fields are left as they
// were, so the sequence must be cleaned or reassigned before it is used again.
func (s *Sequence) Release(a *Allocator) error {
	if !s.Owns {
		return nil
	}

	return a.Release(s.Data)
}

// Clean releases the buffer if the sequence owns it and resets the sequence to empty
func (s *Sequence) Clean(a *Allocator) error {
	err := s.Release(a)

	s.Data = NoHandle
	s.Capacity = 0
	s.Length = 0
	s.Owns = false

	return err
}

func (s *Sequence) Validate() error {
	switch {
	case s.Capacity < 0:
		return errors.Newf("sequence has negative capacity %d", s.Capacity)
	case s.Length < 0:
		return errors.Newf("sequence has negative length %d", s.Length)
	case s.Length > s.Capacity:
		return errors.Newf("sequence length %d exceeds its capacity %d", s.Length, s.Capacity)
	case s.Capacity == 0 && s.Data != NoHandle:
		return errors.Newf("sequence has no capacity but holds buffer %d", s.Data)
	case s.Capacity > 0 && s.Data == NoHandle:
		return errors.Newf("sequence has capacity %d but no buffer", s.Capacity)
	}

	return nil
}

// Bytes returns the sequence's whole buffer, or nil if it has none
func (s *Sequence) Bytes(a *Allocator) ([]byte, error) {
	if s.Data == NoHandle {
		return nil, nil
	}

	return a.Bytes(s.Data)
}

// SequenceElements returns the first Length elements of the sequence viewed as T
func SequenceElements[T any](a *Allocator, s *Sequence) ([]T, error) {
	if s.Data == NoHandle || s.Length == 0 {
		return []T{}, nil
	}

	elements, err := ViewSlice[T](a, s.Data)
	if err != nil {
		return nil, err
	}
	if s.Length > len(elements) {
		return nil, errors.Newf("sequence length %d exceeds the %d elements its buffer holds", s.Length, len(elements))
	}

	return elements[:s.Length:s.Length], nil
}
