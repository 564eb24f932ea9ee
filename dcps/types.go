package dcps

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/objman"
)

type Duration struct {
	Sec     int32
	Nanosec uint32
}

var (
	DurationZero     = Duration{}
	DurationInfinite = Duration{Sec: math.MaxInt32, Nanosec: math.MaxInt32}
)

// DurationOf converts d, saturating to DurationInfinite when it does not fit. A negative d has no
// Duration equivalent and returns an error.
func DurationOf(d time.Duration) (Duration, error) {
	if d < 0 {
		return DurationZero, errors.Newf("negative duration %s", d)
	}

	sec := d / time.Second
	if sec >= math.MaxInt32 {
		return DurationInfinite, nil
	}

	return Duration{
		Sec:     int32(sec),
		Nanosec: uint32(d % time.Second),
	}, nil
}

func (d Duration) IsInfinite() bool {
	return d == DurationInfinite
}

// Std converts the duration to a time.Duration. DurationInfinite converts to math.MaxInt64.
func (d Duration) Std() time.Duration {
	if d.IsInfinite() {
		return math.MaxInt64
	}

	return time.Duration(d.Sec)*time.Second + time.Duration(d.Nanosec)
}

type Time struct {
	Sec     int32
	Nanosec uint32
}

var TimeInvalid = Time{Sec: -1, Nanosec: math.MaxUint32}

// TimeOf converts t to seconds and nanoseconds since the Unix epoch. Times outside the
// representable range convert to TimeInvalid.
func TimeOf(t time.Time) Time {
	sec := t.Unix()
	if sec < 0 || sec > math.MaxInt32 {
		return TimeInvalid
	}

	return Time{
		Sec:     int32(sec),
		Nanosec: uint32(t.Nanosecond()),
	}
}

func (t Time) IsValid() bool {
	return t.Sec >= 0 && t.Nanosec < uint32(time.Second)
}

func (t Time) Std() time.Time {
	return time.Unix(int64(t.Sec), int64(t.Nanosec))
}

type InstanceHandle int64

const HandleNil InstanceHandle = 0

type BuiltinTopicKey [3]uint32

type QosPolicyID int32

type QosPolicyCount struct {
	PolicyID QosPolicyID
	Count    int32
}

type SampleStateKind uint32

const (
	ReadSampleState SampleStateKind = 1 << iota
	NotReadSampleState
)

type ViewStateKind uint32

const (
	NewViewState ViewStateKind = 1 << iota
	NotNewViewState
)

type InstanceStateKind uint32

const (
	AliveInstanceState InstanceStateKind = 1 << iota
	NotAliveDisposedInstanceState
	NotAliveNoWritersInstanceState
)

// NewDuration allocates a zeroed Duration record
func NewDuration(a *objman.Allocator) (objman.Handle, *Duration, error) {
	return objman.NewObject[Duration](a, nil)
}

// NewTime allocates a zeroed Time record
func NewTime(a *objman.Allocator) (objman.Handle, *Time, error) {
	return objman.NewObject[Time](a, nil)
}
