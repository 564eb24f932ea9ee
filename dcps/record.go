// Package dcps holds the typed records that cross the DCPS public API: time values, typed
// sequences, QoS records and built-in topic descriptions. Every record lives in an objman payload
// and is allocated with a destructor that releases the strings and sequences it owns.
package dcps

import (
	"unsafe"

	"github.com/vkngwrapper/dcpsmem/objman"
)

// memberReleaser is implemented by records that own strings or sequences
type memberReleaser[T any] interface {
	*T
	releaseMembers(a *objman.Allocator) error
}

func recordDestructor[T any, P memberReleaser[T]](a *objman.Allocator, h objman.Handle) error {
	record, err := objman.View[T](a, h)
	if err != nil {
		return err
	}

	return P(record).releaseMembers(a)
}

func newRecord[T any, P memberReleaser[T]](a *objman.Allocator) (objman.Handle, *T, error) {
	return objman.NewObject[T](a, recordDestructor[T, P])
}

// elementDestructor releases the members of every record in a sequence buffer
func elementDestructor[T any, P memberReleaser[T]]() objman.Destructor {
	return objman.ElementDestructorOf[T](func(a *objman.Allocator, element *T) error {
		return P(element).releaseMembers(a)
	})
}

func layoutOf[E any](destructor objman.Destructor) objman.Layout {
	var zero E
	return objman.Layout{
		ElementSize: int(unsafe.Sizeof(zero)),
		Destructor:  destructor,
	}
}

func releaseString(a *objman.Allocator, element *objman.Handle) error {
	return a.Release(*element)
}
