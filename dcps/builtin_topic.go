package dcps

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/objman"
)

type ParticipantBuiltinTopicData struct {
	Key      BuiltinTopicKey
	UserData UserDataQosPolicy
}

type TopicBuiltinTopicData struct {
	Key               BuiltinTopicKey
	Name              objman.Handle
	TypeName          objman.Handle
	Durability        DurabilityQosPolicy
	DurabilityService DurabilityServiceQosPolicy
	Deadline          DeadlineQosPolicy
	LatencyBudget     LatencyBudgetQosPolicy
	Liveliness        LivelinessQosPolicy
	Reliability       ReliabilityQosPolicy
	TransportPriority TransportPriorityQosPolicy
	Lifespan          LifespanQosPolicy
	DestinationOrder  DestinationOrderQosPolicy
	History           HistoryQosPolicy
	ResourceLimits    ResourceLimitsQosPolicy
	Ownership         OwnershipQosPolicy
	TopicData         TopicDataQosPolicy
}

type PublicationBuiltinTopicData struct {
	Key               BuiltinTopicKey
	ParticipantKey    BuiltinTopicKey
	TopicName         objman.Handle
	TypeName          objman.Handle
	Durability        DurabilityQosPolicy
	Deadline          DeadlineQosPolicy
	LatencyBudget     LatencyBudgetQosPolicy
	Liveliness        LivelinessQosPolicy
	Reliability       ReliabilityQosPolicy
	Lifespan          LifespanQosPolicy
	DestinationOrder  DestinationOrderQosPolicy
	UserData          UserDataQosPolicy
	Ownership         OwnershipQosPolicy
	OwnershipStrength OwnershipStrengthQosPolicy
	Presentation      PresentationQosPolicy
	Partition         PartitionQosPolicy
	TopicData         TopicDataQosPolicy
	GroupData         GroupDataQosPolicy
}

type SubscriptionBuiltinTopicData struct {
	Key              BuiltinTopicKey
	ParticipantKey   BuiltinTopicKey
	TopicName        objman.Handle
	TypeName         objman.Handle
	Durability       DurabilityQosPolicy
	Deadline         DeadlineQosPolicy
	LatencyBudget    LatencyBudgetQosPolicy
	Liveliness       LivelinessQosPolicy
	Reliability      ReliabilityQosPolicy
	Ownership        OwnershipQosPolicy
	DestinationOrder DestinationOrderQosPolicy
	UserData         UserDataQosPolicy
	TimeBasedFilter  TimeBasedFilterQosPolicy
	Presentation     PresentationQosPolicy
	Partition        PartitionQosPolicy
	TopicData        TopicDataQosPolicy
	GroupData        GroupDataQosPolicy
}

func (d *ParticipantBuiltinTopicData) releaseMembers(a *objman.Allocator) error {
	return d.UserData.Value.Release(a)
}

func (d *TopicBuiltinTopicData) releaseMembers(a *objman.Allocator) error {
	return combine(
		a.Release(d.Name),
		a.Release(d.TypeName),
		d.TopicData.Value.Release(a),
	)
}

func (d *PublicationBuiltinTopicData) releaseMembers(a *objman.Allocator) error {
	return combine(
		a.Release(d.TopicName),
		a.Release(d.TypeName),
		d.Partition.Name.Release(a),
		d.UserData.Value.Release(a),
		d.TopicData.Value.Release(a),
		d.GroupData.Value.Release(a),
	)
}

func (d *SubscriptionBuiltinTopicData) releaseMembers(a *objman.Allocator) error {
	return combine(
		a.Release(d.TopicName),
		a.Release(d.TypeName),
		d.Partition.Name.Release(a),
		d.UserData.Value.Release(a),
		d.TopicData.Value.Release(a),
		d.GroupData.Value.Release(a),
	)
}

func combine(errs ...error) error {
	var result error
	for _, err := range errs {
		result = errors.CombineErrors(result, err)
	}
	return result
}

func NewParticipantBuiltinTopicData(a *objman.Allocator) (objman.Handle, *ParticipantBuiltinTopicData, error) {
	return newRecord[ParticipantBuiltinTopicData](a)
}

func NewTopicBuiltinTopicData(a *objman.Allocator) (objman.Handle, *TopicBuiltinTopicData, error) {
	return newRecord[TopicBuiltinTopicData](a)
}

func NewPublicationBuiltinTopicData(a *objman.Allocator) (objman.Handle, *PublicationBuiltinTopicData, error) {
	return newRecord[PublicationBuiltinTopicData](a)
}

func NewSubscriptionBuiltinTopicData(a *objman.Allocator) (objman.Handle, *SubscriptionBuiltinTopicData, error) {
	return newRecord[SubscriptionBuiltinTopicData](a)
}

var (
	participantBuiltinTopicDataSeqLayout  = layoutOf[ParticipantBuiltinTopicData](elementDestructor[ParticipantBuiltinTopicData]())
	topicBuiltinTopicDataSeqLayout        = layoutOf[TopicBuiltinTopicData](elementDestructor[TopicBuiltinTopicData]())
	publicationBuiltinTopicDataSeqLayout  = layoutOf[PublicationBuiltinTopicData](elementDestructor[PublicationBuiltinTopicData]())
	subscriptionBuiltinTopicDataSeqLayout = layoutOf[SubscriptionBuiltinTopicData](elementDestructor[SubscriptionBuiltinTopicData]())
)

// ParticipantBuiltinTopicDataSeq holds participant descriptions by value. Releasing its buffer
// releases the members of every description in it.
type ParticipantBuiltinTopicDataSeq struct {
	objman.Sequence
}

func NewParticipantBuiltinTopicDataSeq(a *objman.Allocator) (objman.Handle, *ParticipantBuiltinTopicDataSeq, error) {
	return objman.NewObject[ParticipantBuiltinTopicDataSeq](a, objman.SequenceDestructor)
}

func (ParticipantBuiltinTopicDataSeq) Layout() objman.Layout {
	return participantBuiltinTopicDataSeqLayout
}

func (s *ParticipantBuiltinTopicDataSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, participantBuiltinTopicDataSeqLayout, n)
}

func (s *ParticipantBuiltinTopicDataSeq) Elements(a *objman.Allocator) ([]ParticipantBuiltinTopicData, error) {
	return objman.SequenceElements[ParticipantBuiltinTopicData](a, &s.Sequence)
}

type TopicBuiltinTopicDataSeq struct {
	objman.Sequence
}

func NewTopicBuiltinTopicDataSeq(a *objman.Allocator) (objman.Handle, *TopicBuiltinTopicDataSeq, error) {
	return objman.NewObject[TopicBuiltinTopicDataSeq](a, objman.SequenceDestructor)
}

func (TopicBuiltinTopicDataSeq) Layout() objman.Layout {
	return topicBuiltinTopicDataSeqLayout
}

func (s *TopicBuiltinTopicDataSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, topicBuiltinTopicDataSeqLayout, n)
}

func (s *TopicBuiltinTopicDataSeq) Elements(a *objman.Allocator) ([]TopicBuiltinTopicData, error) {
	return objman.SequenceElements[TopicBuiltinTopicData](a, &s.Sequence)
}

type PublicationBuiltinTopicDataSeq struct {
	objman.Sequence
}

func NewPublicationBuiltinTopicDataSeq(a *objman.Allocator) (objman.Handle, *PublicationBuiltinTopicDataSeq, error) {
	return objman.NewObject[PublicationBuiltinTopicDataSeq](a, objman.SequenceDestructor)
}

func (PublicationBuiltinTopicDataSeq) Layout() objman.Layout {
	return publicationBuiltinTopicDataSeqLayout
}

func (s *PublicationBuiltinTopicDataSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, publicationBuiltinTopicDataSeqLayout, n)
}

func (s *PublicationBuiltinTopicDataSeq) Elements(a *objman.Allocator) ([]PublicationBuiltinTopicData, error) {
	return objman.SequenceElements[PublicationBuiltinTopicData](a, &s.Sequence)
}

type SubscriptionBuiltinTopicDataSeq struct {
	objman.Sequence
}

func NewSubscriptionBuiltinTopicDataSeq(a *objman.Allocator) (objman.Handle, *SubscriptionBuiltinTopicDataSeq, error) {
	return objman.NewObject[SubscriptionBuiltinTopicDataSeq](a, objman.SequenceDestructor)
}

func (SubscriptionBuiltinTopicDataSeq) Layout() objman.Layout {
	return subscriptionBuiltinTopicDataSeqLayout
}

func (s *SubscriptionBuiltinTopicDataSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, subscriptionBuiltinTopicDataSeqLayout, n)
}

func (s *SubscriptionBuiltinTopicDataSeq) Elements(a *objman.Allocator) ([]SubscriptionBuiltinTopicData, error) {
	return objman.SequenceElements[SubscriptionBuiltinTopicData](a, &s.Sequence)
}
