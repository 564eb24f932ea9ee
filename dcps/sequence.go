package dcps

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/objman"
)

var (
	octetSeqLayout          = layoutOf[byte](nil)
	stringSeqLayout         = layoutOf[objman.Handle](objman.ElementDestructorOf[objman.Handle](releaseString))
	instanceHandleSeqLayout = layoutOf[InstanceHandle](nil)
	qosPolicyCountSeqLayout = layoutOf[QosPolicyCount](nil)
	sampleStateSeqLayout    = layoutOf[SampleStateKind](nil)
	viewStateSeqLayout      = layoutOf[ViewStateKind](nil)
	instanceStateSeqLayout  = layoutOf[InstanceStateKind](nil)
)

type OctetSeq struct {
	objman.Sequence
}

func NewOctetSeq(a *objman.Allocator) (objman.Handle, *OctetSeq, error) {
	return objman.NewObject[OctetSeq](a, objman.SequenceDestructor)
}

func (OctetSeq) Layout() objman.Layout { return octetSeqLayout }

func (s *OctetSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, octetSeqLayout, n)
}

func (s *OctetSeq) Elements(a *objman.Allocator) ([]byte, error) {
	return objman.SequenceElements[byte](a, &s.Sequence)
}

// Assign resizes the sequence to hold value and copies it in
func (s *OctetSeq) Assign(a *objman.Allocator, value []byte) error {
	err := s.SetLength(a, len(value))
	if err != nil {
		return err
	}

	elements, err := s.Elements(a)
	if err != nil {
		return err
	}
	copy(elements, value)
	return nil
}

// StringSeq is a sequence of owned strings. Releasing its buffer releases every string in it.
type StringSeq struct {
	objman.Sequence
}

func NewStringSeq(a *objman.Allocator) (objman.Handle, *StringSeq, error) {
	return objman.NewObject[StringSeq](a, objman.SequenceDestructor)
}

func (StringSeq) Layout() objman.Layout { return stringSeqLayout }

// SetLength makes the sequence hold n strings. A fresh buffer holds n absent strings, and the
// strings of a released buffer are released with it.
func (s *StringSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, stringSeqLayout, n)
}

func (s *StringSeq) Elements(a *objman.Allocator) ([]objman.Handle, error) {
	return objman.SequenceElements[objman.Handle](a, &s.Sequence)
}

// Set stores a copy of value at index i, releasing the string previously held there
func (s *StringSeq) Set(a *objman.Allocator, i int, value string) error {
	elements, err := s.Elements(a)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(elements) {
		return errors.Newf("index %d out of range for a sequence of length %d", i, len(elements))
	}

	return a.StringSet(&elements[i], value)
}

// Assign resizes the sequence to hold values and stores a copy of each
func (s *StringSeq) Assign(a *objman.Allocator, values ...string) error {
	err := s.SetLength(a, len(values))
	if err != nil {
		return err
	}

	for i, value := range values {
		err = s.Set(a, i, value)
		if err != nil {
			return err
		}
	}
	return nil
}

// Strings reads every string in the sequence. Absent strings read as "".
func (s *StringSeq) Strings(a *objman.Allocator) ([]string, error) {
	elements, err := s.Elements(a)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(elements))
	for _, element := range elements {
		value, err := a.String(element)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

type InstanceHandleSeq struct {
	objman.Sequence
}

func NewInstanceHandleSeq(a *objman.Allocator) (objman.Handle, *InstanceHandleSeq, error) {
	return objman.NewObject[InstanceHandleSeq](a, objman.SequenceDestructor)
}

func (InstanceHandleSeq) Layout() objman.Layout { return instanceHandleSeqLayout }

func (s *InstanceHandleSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, instanceHandleSeqLayout, n)
}

func (s *InstanceHandleSeq) Elements(a *objman.Allocator) ([]InstanceHandle, error) {
	return objman.SequenceElements[InstanceHandle](a, &s.Sequence)
}

type QosPolicyCountSeq struct {
	objman.Sequence
}

func NewQosPolicyCountSeq(a *objman.Allocator) (objman.Handle, *QosPolicyCountSeq, error) {
	return objman.NewObject[QosPolicyCountSeq](a, objman.SequenceDestructor)
}

func (QosPolicyCountSeq) Layout() objman.Layout { return qosPolicyCountSeqLayout }

func (s *QosPolicyCountSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, qosPolicyCountSeqLayout, n)
}

func (s *QosPolicyCountSeq) Elements(a *objman.Allocator) ([]QosPolicyCount, error) {
	return objman.SequenceElements[QosPolicyCount](a, &s.Sequence)
}

type SampleStateSeq struct {
	objman.Sequence
}

func NewSampleStateSeq(a *objman.Allocator) (objman.Handle, *SampleStateSeq, error) {
	return objman.NewObject[SampleStateSeq](a, objman.SequenceDestructor)
}

func (SampleStateSeq) Layout() objman.Layout { return sampleStateSeqLayout }

func (s *SampleStateSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, sampleStateSeqLayout, n)
}

func (s *SampleStateSeq) Elements(a *objman.Allocator) ([]SampleStateKind, error) {
	return objman.SequenceElements[SampleStateKind](a, &s.Sequence)
}

type ViewStateSeq struct {
	objman.Sequence
}

func NewViewStateSeq(a *objman.Allocator) (objman.Handle, *ViewStateSeq, error) {
	return objman.NewObject[ViewStateSeq](a, objman.SequenceDestructor)
}

func (ViewStateSeq) Layout() objman.Layout { return viewStateSeqLayout }

func (s *ViewStateSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, viewStateSeqLayout, n)
}

func (s *ViewStateSeq) Elements(a *objman.Allocator) ([]ViewStateKind, error) {
	return objman.SequenceElements[ViewStateKind](a, &s.Sequence)
}

type InstanceStateSeq struct {
	objman.Sequence
}

func NewInstanceStateSeq(a *objman.Allocator) (objman.Handle, *InstanceStateSeq, error) {
	return objman.NewObject[InstanceStateSeq](a, objman.SequenceDestructor)
}

func (InstanceStateSeq) Layout() objman.Layout { return instanceStateSeqLayout }

func (s *InstanceStateSeq) SetLength(a *objman.Allocator, n int) error {
	return s.Sequence.SetLength(a, instanceStateSeqLayout, n)
}

func (s *InstanceStateSeq) Elements(a *objman.Allocator) ([]InstanceStateKind, error) {
	return objman.SequenceElements[InstanceStateKind](a, &s.Sequence)
}
