package dcps_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/dcpsmem/dcps"
	"github.com/vkngwrapper/dcpsmem/heap"
	"github.com/vkngwrapper/dcpsmem/objman"
	"golang.org/x/exp/slog"
)

func readyAllocator(t require.TestingT, options objman.CreateOptions) *objman.Allocator {
	allocator, err := objman.New(slog.New(slog.NewJSONHandler(io.Discard, nil)), options)
	require.NoError(t, err)
	return allocator
}

func requireNoLeaks(t *testing.T, allocator *objman.Allocator) {
	require.NoError(t, allocator.Validate())
	require.Equal(t, 0, allocator.Statistics().AllocationCount)
	require.NoError(t, allocator.Destroy())
}

func TestPublisherQos_ReleasesOwnedMembers(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	h, qos, err := dcps.NewPublisherQos(allocator)
	require.NoError(t, err)
	require.Equal(t, dcps.PublisherQos{}, *qos)

	require.NoError(t, qos.Partition.Name.Assign(allocator, "alpha", "beta", "gamma"))
	require.NoError(t, qos.GroupData.Value.Assign(allocator, []byte{1, 2, 3, 4}))
	qos.Presentation.AccessScope = dcps.TopicPresentationQos

	names, err := qos.Partition.Name.Strings(allocator)
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta", "gamma"}, names)

	// record + partition buffer + 3 names + group data buffer
	require.Equal(t, 6, allocator.Statistics().AllocationCount)

	require.NoError(t, allocator.Release(h))
	requireNoLeaks(t, allocator)
}

func TestSubscriberQos_BorrowedMembersUntouched(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	owner, partitions, err := dcps.NewStringSeq(allocator)
	require.NoError(t, err)
	require.NoError(t, partitions.Assign(allocator, "shared"))

	h, qos, err := dcps.NewSubscriberQos(allocator)
	require.NoError(t, err)

	qos.Partition.Name = dcps.StringSeq{Sequence: objman.Sequence{
		Capacity: partitions.Capacity,
		Length:   partitions.Length,
		Data:     partitions.Data,
	}}
	require.NoError(t, allocator.StringSet(&qos.Share.Name, "share"))
	qos.Share.Enable = true

	require.NoError(t, allocator.Release(h))

	require.True(t, allocator.IsLive(partitions.Data))
	names, err := partitions.Strings(allocator)
	require.NoError(t, err)
	require.Equal(t, []string{"shared"}, names)

	require.NoError(t, allocator.Release(owner))
	requireNoLeaks(t, allocator)
}

func TestDataReaderQos_ReleasesOwnedMembers(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	h, qos, err := dcps.NewDataReaderQos(allocator)
	require.NoError(t, err)

	require.NoError(t, qos.UserData.Value.Assign(allocator, []byte("user")))
	qos.SubscriptionKeys.UseKeyList = true
	require.NoError(t, qos.SubscriptionKeys.KeyList.Assign(allocator, "id", "region"))
	require.NoError(t, allocator.StringSet(&qos.Share.Name, "readers"))
	qos.History = dcps.HistoryQosPolicy{Kind: dcps.KeepLastHistoryQos, Depth: 4}
	qos.ResourceLimits = dcps.ResourceLimitsQosPolicy{
		MaxSamples:            dcps.LengthUnlimited,
		MaxInstances:          dcps.LengthUnlimited,
		MaxSamplesPerInstance: dcps.LengthUnlimited,
	}

	viewed, err := objman.View[dcps.DataReaderQos](allocator, h)
	require.NoError(t, err)
	require.Equal(t, int32(4), viewed.History.Depth)

	require.NoError(t, allocator.Release(h))
	requireNoLeaks(t, allocator)
}

func TestQosRecords_Empty(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	var handles []objman.Handle
	record := func(h objman.Handle, err error) {
		require.NoError(t, err)
		handles = append(handles, h)
	}

	h, _, err := dcps.NewDomainParticipantFactoryQos(allocator)
	record(h, err)
	h, _, err = dcps.NewDomainParticipantQos(allocator)
	record(h, err)
	h, _, err = dcps.NewTopicQos(allocator)
	record(h, err)
	h, _, err = dcps.NewDataWriterQos(allocator)
	record(h, err)
	h, _, err = dcps.NewPublisherQos(allocator)
	record(h, err)
	h, _, err = dcps.NewSubscriberQos(allocator)
	record(h, err)
	h, _, err = dcps.NewDataReaderQos(allocator)
	record(h, err)
	h, _, err = dcps.NewDataReaderViewQos(allocator)
	record(h, err)

	require.Equal(t, len(handles), allocator.Statistics().AllocationCount)
	for _, h := range handles {
		require.NoError(t, allocator.Release(h))
	}
	requireNoLeaks(t, allocator)
}

func TestQosRecords_DataMembers(t *testing.T) {
	allocator := readyAllocator(t, objman.CreateOptions{})

	participant, participantQos, err := dcps.NewDomainParticipantQos(allocator)
	require.NoError(t, err)
	require.NoError(t, participantQos.UserData.Value.Assign(allocator, []byte("participant")))

	topic, topicQos, err := dcps.NewTopicQos(allocator)
	require.NoError(t, err)
	require.NoError(t, topicQos.TopicData.Value.Assign(allocator, []byte("topic")))

	writer, writerQos, err := dcps.NewDataWriterQos(allocator)
	require.NoError(t, err)
	require.NoError(t, writerQos.UserData.Value.Assign(allocator, []byte("writer")))

	view, viewQos, err := dcps.NewDataReaderViewQos(allocator)
	require.NoError(t, err)
	require.NoError(t, viewQos.ViewKeys.KeyList.Assign(allocator, "key"))

	require.Equal(t, 9, allocator.Statistics().AllocationCount)

	require.NoError(t, allocator.Release(participant))
	require.NoError(t, allocator.Release(topic))
	require.NoError(t, allocator.Release(writer))
	require.NoError(t, allocator.Release(view))
	requireNoLeaks(t, allocator)
}

func TestQosRecords_ArenaHeap(t *testing.T) {
	arena, err := heap.NewArena(slog.New(slog.NewJSONHandler(io.Discard, nil)), heap.ArenaCreateOptions{
		PreferredBlockSize: 4096,
	})
	require.NoError(t, err)

	allocator := readyAllocator(t, objman.CreateOptions{Heap: arena})

	h, qos, err := dcps.NewDataReaderQos(allocator)
	require.NoError(t, err)
	require.NoError(t, qos.SubscriptionKeys.KeyList.Assign(allocator, "a", "b", "c", "d"))
	require.NoError(t, allocator.StringSet(&qos.Share.Name, "arena"))
	require.NotZero(t, arena.Statistics().AllocationCount)

	require.NoError(t, allocator.Release(h))
	requireNoLeaks(t, allocator)

	require.Equal(t, 0, arena.Statistics().AllocationCount)
	require.NoError(t, arena.Destroy())
}
