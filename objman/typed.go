package objman

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// ErrNotPlainType is returned when a payload is viewed as a type that holds Go pointers. Payloads
// may live outside the Go heap, where the garbage collector cannot see them.
var ErrNotPlainType = errors.New("type is not plain data")

var plainTypes sync.Map

func isPlainType(t reflect.Type) bool {
	if cached, ok := plainTypes.Load(t); ok {
		return cached.(bool)
	}

	plain := checkPlainType(t)
	plainTypes.Store(t, plain)
	return plain
}

func checkPlainType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return checkPlainType(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !checkPlainType(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func checkPlain[T any]() error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if !isPlainType(t) {
		return errors.Wrapf(ErrNotPlainType, "%s", t)
	}
	return nil
}

// NewObject allocates a zeroed payload sized for T and returns it viewed as a *T
func NewObject[T any](a *Allocator, destructor Destructor) (Handle, *T, error) {
	err := checkPlain[T]()
	if err != nil {
		return NoHandle, nil, err
	}

	var zero T
	h, err := a.Allocate(0, int(unsafe.Sizeof(zero)), destructor)
	if err != nil {
		return NoHandle, nil, err
	}

	value, err := View[T](a, h)
	if err != nil {
		return NoHandle, nil, errors.CombineErrors(err, a.Release(h))
	}

	return h, value, nil
}

// View returns the payload of a live handle as a *T. The payload must be at least as large as T.
// The pointer is only valid until the handle is released.
func View[T any](a *Allocator, h Handle) (*T, error) {
	err := checkPlain[T]()
	if err != nil {
		return nil, err
	}

	data, err := a.Bytes(h)
	if err != nil {
		return nil, err
	}

	var zero T
	if unsafe.Sizeof(zero) == 0 {
		return new(T), nil
	}
	if uintptr(len(data)) < unsafe.Sizeof(zero) {
		return nil, errors.Newf("handle %d holds %d bytes, which cannot hold a %T", h, len(data), zero)
	}

	return (*T)(unsafe.Pointer(unsafe.SliceData(data))), nil
}

// ViewSlice returns the payload of a live handle as a []T holding as many whole elements as fit
func ViewSlice[T any](a *Allocator, h Handle) ([]T, error) {
	err := checkPlain[T]()
	if err != nil {
		return nil, err
	}

	data, err := a.Bytes(h)
	if err != nil {
		return nil, err
	}

	return bytesAsSlice[T](data), nil
}

func bytesAsSlice[T any](data []byte) []T {
	var zero T
	elementSize := int(unsafe.Sizeof(zero))
	if elementSize == 0 || len(data) < elementSize {
		return []T{}
	}

	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(data))), len(data)/elementSize)
}
