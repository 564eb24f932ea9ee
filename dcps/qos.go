package dcps

import (
	"github.com/vkngwrapper/dcpsmem/objman"
)

type DurabilityQosPolicyKind int32

const (
	VolatileDurabilityQos DurabilityQosPolicyKind = iota
	TransientLocalDurabilityQos
	TransientDurabilityQos
	PersistentDurabilityQos
)

type PresentationQosPolicyAccessScopeKind int32

const (
	InstancePresentationQos PresentationQosPolicyAccessScopeKind = iota
	TopicPresentationQos
	GroupPresentationQos
)

type OwnershipQosPolicyKind int32

const (
	SharedOwnershipQos OwnershipQosPolicyKind = iota
	ExclusiveOwnershipQos
)

type LivelinessQosPolicyKind int32

const (
	AutomaticLivelinessQos LivelinessQosPolicyKind = iota
	ManualByParticipantLivelinessQos
	ManualByTopicLivelinessQos
)

type ReliabilityQosPolicyKind int32

const (
	BestEffortReliabilityQos ReliabilityQosPolicyKind = iota
	ReliableReliabilityQos
)

type DestinationOrderQosPolicyKind int32

const (
	ByReceptionTimestampDestinationOrderQos DestinationOrderQosPolicyKind = iota
	BySourceTimestampDestinationOrderQos
)

type HistoryQosPolicyKind int32

const (
	KeepLastHistoryQos HistoryQosPolicyKind = iota
	KeepAllHistoryQos
)

// LengthUnlimited marks a resource limit as unbounded
const LengthUnlimited int32 = -1

type UserDataQosPolicy struct {
	Value OctetSeq
}

type TopicDataQosPolicy struct {
	Value OctetSeq
}

type GroupDataQosPolicy struct {
	Value OctetSeq
}

type EntityFactoryQosPolicy struct {
	AutoenableCreatedEntities bool
}

type DurabilityQosPolicy struct {
	Kind DurabilityQosPolicyKind
}

type DurabilityServiceQosPolicy struct {
	ServiceCleanupDelay   Duration
	HistoryKind           HistoryQosPolicyKind
	HistoryDepth          int32
	MaxSamples            int32
	MaxInstances          int32
	MaxSamplesPerInstance int32
}

type PresentationQosPolicy struct {
	AccessScope    PresentationQosPolicyAccessScopeKind
	CoherentAccess bool
	OrderedAccess  bool
}

type DeadlineQosPolicy struct {
	Period Duration
}

type LatencyBudgetQosPolicy struct {
	Duration Duration
}

type OwnershipQosPolicy struct {
	Kind OwnershipQosPolicyKind
}

type OwnershipStrengthQosPolicy struct {
	Value int32
}

type LivelinessQosPolicy struct {
	Kind          LivelinessQosPolicyKind
	LeaseDuration Duration
}

type TimeBasedFilterQosPolicy struct {
	MinimumSeparation Duration
}

type PartitionQosPolicy struct {
	Name StringSeq
}

type ReliabilityQosPolicy struct {
	Kind            ReliabilityQosPolicyKind
	MaxBlockingTime Duration
	Synchronous     bool
}

type TransportPriorityQosPolicy struct {
	Value int32
}

type LifespanQosPolicy struct {
	Duration Duration
}

type DestinationOrderQosPolicy struct {
	Kind DestinationOrderQosPolicyKind
}

type HistoryQosPolicy struct {
	Kind  HistoryQosPolicyKind
	Depth int32
}

type ResourceLimitsQosPolicy struct {
	MaxSamples            int32
	MaxInstances          int32
	MaxSamplesPerInstance int32
}

type WriterDataLifecycleQosPolicy struct {
	AutodisposeUnregisteredInstances bool
}

type ReaderDataLifecycleQosPolicy struct {
	AutopurgeNowriterSamplesDelay Duration
	AutopurgeDisposedSamplesDelay Duration
	EnableInvalidSamples          bool
}

// ShareQosPolicy lets readers in different processes share one kernel reader under Name
type ShareQosPolicy struct {
	Name   objman.Handle
	Enable bool
}

type SubscriptionKeyQosPolicy struct {
	UseKeyList bool
	KeyList    StringSeq
}

type ViewKeyQosPolicy struct {
	UseKeyList bool
	KeyList    StringSeq
}

type DomainParticipantFactoryQos struct {
	EntityFactory EntityFactoryQosPolicy
}

type DomainParticipantQos struct {
	UserData      UserDataQosPolicy
	EntityFactory EntityFactoryQosPolicy
}

type TopicQos struct {
	TopicData         TopicDataQosPolicy
	Durability        DurabilityQosPolicy
	DurabilityService DurabilityServiceQosPolicy
	Deadline          DeadlineQosPolicy
	LatencyBudget     LatencyBudgetQosPolicy
	Liveliness        LivelinessQosPolicy
	Reliability       ReliabilityQosPolicy
	DestinationOrder  DestinationOrderQosPolicy
	History           HistoryQosPolicy
	ResourceLimits    ResourceLimitsQosPolicy
	TransportPriority TransportPriorityQosPolicy
	Lifespan          LifespanQosPolicy
	Ownership         OwnershipQosPolicy
}

type DataWriterQos struct {
	Durability          DurabilityQosPolicy
	Deadline            DeadlineQosPolicy
	LatencyBudget       LatencyBudgetQosPolicy
	Liveliness          LivelinessQosPolicy
	Reliability         ReliabilityQosPolicy
	DestinationOrder    DestinationOrderQosPolicy
	History             HistoryQosPolicy
	ResourceLimits      ResourceLimitsQosPolicy
	TransportPriority   TransportPriorityQosPolicy
	Lifespan            LifespanQosPolicy
	UserData            UserDataQosPolicy
	Ownership           OwnershipQosPolicy
	OwnershipStrength   OwnershipStrengthQosPolicy
	WriterDataLifecycle WriterDataLifecycleQosPolicy
}

type PublisherQos struct {
	Presentation  PresentationQosPolicy
	Partition     PartitionQosPolicy
	GroupData     GroupDataQosPolicy
	EntityFactory EntityFactoryQosPolicy
}

type SubscriberQos struct {
	Presentation  PresentationQosPolicy
	Partition     PartitionQosPolicy
	GroupData     GroupDataQosPolicy
	EntityFactory EntityFactoryQosPolicy
	Share         ShareQosPolicy
}

type DataReaderQos struct {
	Durability          DurabilityQosPolicy
	Deadline            DeadlineQosPolicy
	LatencyBudget       LatencyBudgetQosPolicy
	Liveliness          LivelinessQosPolicy
	Reliability         ReliabilityQosPolicy
	DestinationOrder    DestinationOrderQosPolicy
	History             HistoryQosPolicy
	ResourceLimits      ResourceLimitsQosPolicy
	UserData            UserDataQosPolicy
	Ownership           OwnershipQosPolicy
	TimeBasedFilter     TimeBasedFilterQosPolicy
	ReaderDataLifecycle ReaderDataLifecycleQosPolicy
	SubscriptionKeys    SubscriptionKeyQosPolicy
	Share               ShareQosPolicy
}

type DataReaderViewQos struct {
	ViewKeys ViewKeyQosPolicy
}

func (q *DomainParticipantFactoryQos) releaseMembers(a *objman.Allocator) error {
	return nil
}

func (q *DomainParticipantQos) releaseMembers(a *objman.Allocator) error {
	return q.UserData.Value.Release(a)
}

func (q *TopicQos) releaseMembers(a *objman.Allocator) error {
	return q.TopicData.Value.Release(a)
}

func (q *DataWriterQos) releaseMembers(a *objman.Allocator) error {
	return q.UserData.Value.Release(a)
}

func (q *PublisherQos) releaseMembers(a *objman.Allocator) error {
	return combine(
		q.Partition.Name.Release(a),
		q.GroupData.Value.Release(a),
	)
}

func (q *SubscriberQos) releaseMembers(a *objman.Allocator) error {
	return combine(
		q.Partition.Name.Release(a),
		q.GroupData.Value.Release(a),
		a.Release(q.Share.Name),
	)
}

func (q *DataReaderQos) releaseMembers(a *objman.Allocator) error {
	return combine(
		q.UserData.Value.Release(a),
		q.SubscriptionKeys.KeyList.Release(a),
		a.Release(q.Share.Name),
	)
}

func (q *DataReaderViewQos) releaseMembers(a *objman.Allocator) error {
	return q.ViewKeys.KeyList.Release(a)
}

func NewDomainParticipantFactoryQos(a *objman.Allocator) (objman.Handle, *DomainParticipantFactoryQos, error) {
	return newRecord[DomainParticipantFactoryQos](a)
}

// NewDomainParticipantQos allocates a zeroed DomainParticipantQos. Releasing it releases its user
// data if owned.
func NewDomainParticipantQos(a *objman.Allocator) (objman.Handle, *DomainParticipantQos, error) {
	return newRecord[DomainParticipantQos](a)
}

// NewTopicQos allocates a zeroed TopicQos. Releasing it releases its topic data if owned.
func NewTopicQos(a *objman.Allocator) (objman.Handle, *TopicQos, error) {
	return newRecord[TopicQos](a)
}

// NewDataWriterQos allocates a zeroed DataWriterQos. Releasing it releases its user data if owned.
func NewDataWriterQos(a *objman.Allocator) (objman.Handle, *DataWriterQos, error) {
	return newRecord[DataWriterQos](a)
}

// NewPublisherQos allocates a zeroed PublisherQos. Releasing it releases its partition names and
// group data if owned.
func NewPublisherQos(a *objman.Allocator) (objman.Handle, *PublisherQos, error) {
	return newRecord[PublisherQos](a)
}

// NewSubscriberQos allocates a zeroed SubscriberQos. Releasing it releases its partition names,
// group data and share name.
func NewSubscriberQos(a *objman.Allocator) (objman.Handle, *SubscriberQos, error) {
	return newRecord[SubscriberQos](a)
}

// NewDataReaderQos allocates a zeroed DataReaderQos. Releasing it releases its user data,
// subscription key list and share name.
func NewDataReaderQos(a *objman.Allocator) (objman.Handle, *DataReaderQos, error) {
	return newRecord[DataReaderQos](a)
}

func NewDataReaderViewQos(a *objman.Allocator) (objman.Handle, *DataReaderViewQos, error) {
	return newRecord[DataReaderViewQos](a)
}
