package objman_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/dcpsmem/heap"
	"github.com/vkngwrapper/dcpsmem/objman"
)

var int64Layout = objman.Layout{ElementSize: 8}

func TestCreateSequence(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	seq, err := allocator.CreateSequence(int64Layout, 5)
	require.NoError(t, err)
	require.Equal(t, 5, seq.Capacity)
	require.Equal(t, 5, seq.Length)
	require.True(t, seq.Owns)
	require.NotEqual(t, objman.NoHandle, seq.Data)
	require.NoError(t, seq.Validate())

	count, ok := allocator.BufferCount(seq.Data)
	require.True(t, ok)
	require.Equal(t, 5, count)

	base, ok := allocator.HeaderBase(seq.Data)
	require.True(t, ok)
	require.Equal(t, uint64(5), binary.LittleEndian.Uint64(base))

	data, err := seq.Bytes(allocator)
	require.NoError(t, err)
	require.Len(t, data, 40)

	require.NoError(t, seq.Clean(allocator))
	require.Equal(t, objman.Sequence{}, seq)
	require.Equal(t, 0, seq.Capacity)
	require.Equal(t, 0, seq.Length)
	require.Equal(t, objman.NoHandle, seq.Data)
	require.False(t, seq.Owns)

	requireNoLeaks(t, allocator)
}

func TestCreateSequence_Empty(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	seq, err := allocator.CreateSequence(int64Layout, 0)
	require.NoError(t, err)
	require.Equal(t, objman.Sequence{}, seq)

	h, err := allocator.AllocBuffer(int64Layout, 0)
	require.NoError(t, err)
	require.Equal(t, objman.NoHandle, h)

	_, err = allocator.CreateSequence(int64Layout, -1)
	require.Error(t, err)

	requireNoLeaks(t, allocator)
}

func TestCreateSequence_OutOfMemory(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{Heap: heap.NewGoHeap(64)})

	seq, err := allocator.CreateSequence(int64Layout, 100)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, objman.Sequence{}, seq)

	requireNoLeaks(t, allocator)
}

func TestCreateSequence_SizeOverflow(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	seq, err := allocator.CreateSequence(objman.Layout{ElementSize: math.MaxInt / 4}, 8)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, objman.Sequence{}, seq)

	seq, err = allocator.CreateSequence(objman.Layout{ElementSize: 1 << 20}, 1<<30)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, objman.Sequence{}, seq)

	h, err := allocator.AllocBuffer(objman.Layout{}, math.MaxInt)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, objman.NoHandle, h)

	requireNoLeaks(t, allocator)
}

func TestSequence_SetLengthSameCapacity(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	seq, err := allocator.CreateSequence(int64Layout, 10)
	require.NoError(t, err)
	buffer := seq.Data

	seq.Length = 3
	require.NoError(t, seq.SetLength(allocator, int64Layout, 10))
	require.Equal(t, buffer, seq.Data)
	require.Equal(t, 10, seq.Length)
	require.Equal(t, 10, seq.Capacity)
	require.True(t, allocator.IsLive(buffer))

	require.NoError(t, seq.Clean(allocator))
	requireNoLeaks(t, allocator)
}

func TestSequence_SetLengthReallocates(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	seq, err := allocator.CreateSequence(int64Layout, 10)
	require.NoError(t, err)
	buffer := seq.Data

	require.NoError(t, seq.SetLength(allocator, int64Layout, 20))
	require.NotEqual(t, buffer, seq.Data)
	require.False(t, allocator.IsLive(buffer))
	require.Equal(t, 20, seq.Length)
	require.Equal(t, 20, seq.Capacity)
	require.True(t, seq.Owns)

	elements, err := objman.SequenceElements[int64](allocator, &seq)
	require.NoError(t, err)
	require.Len(t, elements, 20)

	require.NoError(t, seq.SetLength(allocator, int64Layout, 0))
	require.Equal(t, objman.Sequence{}, seq)

	require.NoError(t, seq.SetLength(allocator, int64Layout, 4))
	require.Equal(t, 4, seq.Capacity)
	require.True(t, seq.Owns)

	require.NoError(t, seq.Clean(allocator))
	requireNoLeaks(t, allocator)
}

func TestSequence_SetLengthFailureKeepsState(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{Heap: heap.NewGoHeap(200)})

	seq, err := allocator.CreateSequence(int64Layout, 10)
	require.NoError(t, err)
	seq.Length = 7
	before := seq

	err = seq.SetLength(allocator, int64Layout, 20)
	require.True(t, errors.Is(err, heap.ErrOutOfMemory))
	require.Equal(t, before, seq)
	require.True(t, allocator.IsLive(seq.Data))

	require.NoError(t, seq.Clean(allocator))
	requireNoLeaks(t, allocator)
}

func TestSequence_SetLengthBorrowed(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	owner, err := allocator.CreateSequence(int64Layout, 4)
	require.NoError(t, err)

	borrowed := objman.Sequence{
		Capacity: owner.Capacity,
		Length:   owner.Length,
		Data:     owner.Data,
	}
	require.NoError(t, borrowed.SetLength(allocator, int64Layout, 6))
	require.True(t, borrowed.Owns)
	require.NotEqual(t, owner.Data, borrowed.Data)
	require.True(t, allocator.IsLive(owner.Data))

	require.NoError(t, borrowed.Clean(allocator))
	require.NoError(t, owner.Clean(allocator))
	requireNoLeaks(t, allocator)
}

func TestSequence_ElementDestructor(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	calls := 0
	var seen []int64
	layout := objman.Layout{
		ElementSize: 8,
		Destructor: objman.ElementDestructorOf[int64](func(a *objman.Allocator, element *int64) error {
			calls++
			seen = append(seen, *element)
			return nil
		}),
	}

	seq, err := allocator.CreateSequence(layout, 3)
	require.NoError(t, err)

	elements, err := objman.SequenceElements[int64](allocator, &seq)
	require.NoError(t, err)
	elements[0], elements[1], elements[2] = 10, 20, 30

	// The destructor walks every allocated element even if the length is shorter
	seq.Length = 1
	require.NoError(t, seq.Release(allocator))
	require.Equal(t, 3, calls)
	require.Equal(t, []int64{10, 20, 30}, seen)

	// Release leaves the fields in place
	require.Equal(t, 3, seq.Capacity)
	require.True(t, seq.Owns)
	require.False(t, allocator.IsLive(seq.Data))

	requireNoLeaks(t, allocator)
}

func TestSequence_ElementDestructorSizeMismatch(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	calls := 0
	layout := objman.Layout{
		ElementSize: 8,
		Destructor: objman.ElementDestructor(math.MaxInt/2, func(a *objman.Allocator, element []byte) error {
			calls++
			return nil
		}),
	}

	seq, err := allocator.CreateSequence(layout, 2)
	require.NoError(t, err)

	require.Error(t, seq.Release(allocator))
	require.Equal(t, 0, calls)
	require.False(t, allocator.IsLive(seq.Data))

	requireNoLeaks(t, allocator)
}

func TestSequence_OwnedElements(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	layout := objman.Layout{
		ElementSize: 8,
		Destructor: objman.ElementDestructorOf[objman.Handle](func(a *objman.Allocator, element *objman.Handle) error {
			return a.Release(*element)
		}),
	}

	h, seq, err := allocator.NewSequence()
	require.NoError(t, err)
	require.Equal(t, objman.Sequence{}, *seq)

	require.NoError(t, seq.SetLength(allocator, layout, 3))
	elements, err := objman.SequenceElements[objman.Handle](allocator, seq)
	require.NoError(t, err)
	for i := range elements {
		require.NoError(t, allocator.StringSet(&elements[i], "element"))
	}
	require.Equal(t, 5, allocator.Statistics().AllocationCount)

	require.NoError(t, allocator.Release(h))
	requireNoLeaks(t, allocator)
}

func TestSequence_BorrowedNeverReleased(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	owner, err := allocator.CreateSequence(int64Layout, 4)
	require.NoError(t, err)
	canary, err := owner.Bytes(allocator)
	require.NoError(t, err)
	for i := range canary {
		canary[i] = byte(0xC0 + i)
	}
	expected := append([]byte(nil), canary...)

	borrowed := objman.Sequence{
		Capacity: owner.Capacity,
		Length:   owner.Length,
		Data:     owner.Data,
	}
	require.NoError(t, borrowed.Validate())

	require.NoError(t, borrowed.Release(allocator))
	require.True(t, allocator.IsLive(owner.Data))

	require.NoError(t, borrowed.Clean(allocator))
	require.Equal(t, objman.Sequence{}, borrowed)
	require.True(t, allocator.IsLive(owner.Data))

	after, err := owner.Bytes(allocator)
	require.NoError(t, err)
	require.Equal(t, expected, after)

	require.NoError(t, owner.Clean(allocator))
	requireNoLeaks(t, allocator)
}

func TestSequence_ReplaceBuffer(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})
	allocBuf := int64Layout.BufferAllocator(allocator)

	var seq objman.Sequence
	require.NoError(t, seq.ReplaceBuffer(allocator, allocBuf, 8))
	require.Equal(t, 8, seq.Capacity)
	require.Equal(t, 0, seq.Length)
	require.True(t, seq.Owns)
	buffer := seq.Data

	// No implicit shrink
	seq.Length = 2
	require.NoError(t, seq.ReplaceBuffer(allocator, allocBuf, 8))
	require.Equal(t, buffer, seq.Data)
	require.NoError(t, seq.ReplaceBuffer(allocator, allocBuf, 3))
	require.Equal(t, buffer, seq.Data)
	require.Equal(t, 8, seq.Capacity)
	require.Equal(t, 2, seq.Length)

	require.NoError(t, seq.ReplaceBuffer(allocator, allocBuf, 16))
	require.NotEqual(t, buffer, seq.Data)
	require.False(t, allocator.IsLive(buffer))
	require.Equal(t, 16, seq.Capacity)
	require.Equal(t, 0, seq.Length)

	require.NoError(t, seq.Clean(allocator))
	requireNoLeaks(t, allocator)
}

func TestSequence_ReplaceBufferFailures(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	var seq objman.Sequence
	failure := errors.New("no buffer")
	err := seq.ReplaceBuffer(allocator, func(count int) (objman.Handle, error) {
		return objman.NoHandle, failure
	}, 4)
	require.ErrorIs(t, err, failure)
	require.Equal(t, objman.Sequence{}, seq)

	err = seq.ReplaceBuffer(allocator, func(count int) (objman.Handle, error) {
		return objman.NoHandle, nil
	}, 4)
	require.Error(t, err)
	require.Equal(t, objman.Sequence{}, seq)

	requireNoLeaks(t, allocator)
}

func TestSequence_Validate(t *testing.T) {
	require.NoError(t, (&objman.Sequence{}).Validate())
	require.Error(t, (&objman.Sequence{Capacity: 1, Length: 2, Data: 5}).Validate())
	require.Error(t, (&objman.Sequence{Data: 5}).Validate())
	require.Error(t, (&objman.Sequence{Capacity: 3}).Validate())
	require.Error(t, (&objman.Sequence{Capacity: -1}).Validate())
}
