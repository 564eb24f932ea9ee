package dcps_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/dcpsmem/dcps"
	"github.com/vkngwrapper/dcpsmem/heap"
	"github.com/vkngwrapper/dcpsmem/objman"
)

func TestDuration(t *testing.T) {
	d, err := dcps.DurationOf(2*time.Second + 500*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, dcps.Duration{Sec: 2, Nanosec: 500_000_000}, d)
	require.Equal(t, 2500*time.Millisecond, d.Std())
	require.False(t, d.IsInfinite())

	d, err = dcps.DurationOf(0)
	require.NoError(t, err)
	require.Equal(t, dcps.DurationZero, d)

	d, err = dcps.DurationOf(math.MaxInt64)
	require.NoError(t, err)
	require.Equal(t, dcps.DurationInfinite, d)
	require.Equal(t, time.Duration(math.MaxInt64), dcps.DurationInfinite.Std())
}

func TestDuration_Negative(t *testing.T) {
	_, err := dcps.DurationOf(-time.Second)
	require.Error(t, err)

	_, err = dcps.DurationOf(-1)
	require.Error(t, err)
}

func TestTime(t *testing.T) {
	now := time.Unix(1700000000, 123)
	converted := dcps.TimeOf(now)
	require.Equal(t, dcps.Time{Sec: 1700000000, Nanosec: 123}, converted)
	require.True(t, converted.IsValid())
	require.True(t, now.Equal(converted.Std()))

	require.Equal(t, dcps.TimeInvalid, dcps.TimeOf(time.Unix(-5, 0)))
	require.False(t, dcps.TimeInvalid.IsValid())
}

func TestNewDuration(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	h, d, err := dcps.NewDuration(allocator)
	require.NoError(t, err)
	require.Equal(t, dcps.DurationZero, *d)
	*d = dcps.DurationInfinite

	size, err := allocator.Size(h)
	require.NoError(t, err)
	require.Equal(t, 8, size)

	th, tm, err := dcps.NewTime(allocator)
	require.NoError(t, err)
	*tm = dcps.Time{Sec: 1}

	viewed, err := objman.View[dcps.Duration](allocator, h)
	require.NoError(t, err)
	require.True(t, viewed.IsInfinite())

	require.NoError(t, allocator.Release(h))
	require.NoError(t, allocator.Release(th))
	requireNoLeaks(t, allocator)
}

func TestStringSeq(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	h, seq, err := dcps.NewStringSeq(allocator)
	require.NoError(t, err)

	require.NoError(t, seq.SetLength(allocator, 3))
	values, err := seq.Strings(allocator)
	require.NoError(t, err)
	require.Equal(t, []string{"", "", ""}, values)

	require.NoError(t, seq.Set(allocator, 0, "zero"))
	require.NoError(t, seq.Set(allocator, 2, "two"))
	require.NoError(t, seq.Set(allocator, 2, "TWO"))
	require.Error(t, seq.Set(allocator, 3, "out of range"))
	require.Error(t, seq.Set(allocator, -1, "out of range"))

	values, err = seq.Strings(allocator)
	require.NoError(t, err)
	require.Equal(t, []string{"zero", "", "TWO"}, values)
	require.Equal(t, 4, allocator.Statistics().AllocationCount)

	// Same capacity keeps the strings in place
	require.NoError(t, seq.SetLength(allocator, 3))
	values, err = seq.Strings(allocator)
	require.NoError(t, err)
	require.Equal(t, []string{"zero", "", "TWO"}, values)

	require.NoError(t, seq.Assign(allocator, "a", "b"))
	values, err = seq.Strings(allocator)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, values)
	require.Equal(t, 4, allocator.Statistics().AllocationCount)

	require.NoError(t, allocator.Release(h))
	requireNoLeaks(t, allocator)
}

func TestStringSeq_OutOfMemoryKeepsStrings(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{Heap: heap.NewGoHeap(256)})

	h, seq, err := dcps.NewStringSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, seq.Assign(allocator, "kept"))

	err = seq.SetLength(allocator, 64)
	require.Error(t, err)

	values, err := seq.Strings(allocator)
	require.NoError(t, err)
	require.Equal(t, []string{"kept"}, values)

	require.NoError(t, allocator.Release(h))
	requireNoLeaks(t, allocator)
}

func TestValueSequences(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	octetHandle, octets, err := dcps.NewOctetSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, octets.Assign(allocator, []byte("bytes")))
	octetElements, err := octets.Elements(allocator)
	require.NoError(t, err)
	require.Equal(t, []byte("bytes"), octetElements)

	handleHandle, handles, err := dcps.NewInstanceHandleSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, handles.SetLength(allocator, 2))
	handleElements, err := handles.Elements(allocator)
	require.NoError(t, err)
	handleElements[1] = dcps.InstanceHandle(99)
	require.Equal(t, []dcps.InstanceHandle{dcps.HandleNil, 99}, handleElements)

	countHandle, counts, err := dcps.NewQosPolicyCountSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, counts.SetLength(allocator, 1))
	countElements, err := counts.Elements(allocator)
	require.NoError(t, err)
	countElements[0] = dcps.QosPolicyCount{PolicyID: 11, Count: 2}

	sampleHandle, samples, err := dcps.NewSampleStateSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, samples.SetLength(allocator, 1))
	sampleElements, err := samples.Elements(allocator)
	require.NoError(t, err)
	sampleElements[0] = dcps.ReadSampleState | dcps.NotReadSampleState

	viewHandle, views, err := dcps.NewViewStateSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, views.SetLength(allocator, 1))
	viewElements, err := views.Elements(allocator)
	require.NoError(t, err)
	viewElements[0] = dcps.NewViewState

	instanceHandle, instances, err := dcps.NewInstanceStateSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, instances.SetLength(allocator, 1))
	instanceElements, err := instances.Elements(allocator)
	require.NoError(t, err)
	instanceElements[0] = dcps.NotAliveDisposedInstanceState

	count, ok := allocator.BufferCount(handles.Data)
	require.True(t, ok)
	require.Equal(t, 2, count)
	require.Equal(t, 8, dcps.InstanceHandleSeq{}.Layout().ElementSize)
	require.Equal(t, 8, dcps.QosPolicyCountSeq{}.Layout().ElementSize)
	require.Equal(t, 4, dcps.SampleStateSeq{}.Layout().ElementSize)

	require.Equal(t, 12, allocator.Statistics().AllocationCount)
	for _, h := range []objman.Handle{octetHandle, handleHandle, countHandle, sampleHandle, viewHandle, instanceHandle} {
		require.NoError(t, allocator.Release(h))
	}
	requireNoLeaks(t, allocator)
}
