package objman

import (
	"bytes"
	"strings"

	"github.com/vkngwrapper/dcpsmem/memutils"
)

// StringAlloc allocates an empty string able to hold n bytes plus its terminator
func (a *Allocator) StringAlloc(n int) (Handle, error) {
	a.logger.Debug("Allocator::StringAlloc")

	err := memutils.CheckSize(n, "n")
	if err != nil {
		return NoHandle, err
	}

	return a.Allocate(0, n+1, nil)
}

// StringDup allocates a NUL-terminated copy of src. Only the part of src before its first NUL is
// copied.
func (a *Allocator) StringDup(src string) (Handle, error) {
	a.logger.Debug("Allocator::StringDup")

	if end := strings.IndexByte(src, 0); end >= 0 {
		src = src[:end]
	}

	h, err := a.Allocate(0, len(src)+1, nil)
	if err != nil {
		return NoHandle, err
	}

	// The payload is zeroed, so the terminator is already in place
	data, err := a.Bytes(h)
	if err != nil {
		return NoHandle, err
	}
	copy(data, src)

	return h, nil
}

// StringDupHandle allocates a copy of the string held by src. Duplicating NoHandle returns NoHandle.
func (a *Allocator) StringDupHandle(src Handle) (Handle, error) {
	if src == NoHandle {
		return NoHandle, nil
	}

	value, err := a.String(src)
	if err != nil {
		return NoHandle, err
	}

	return a.StringDup(value)
}

// String reads the string held by h up to its terminator. NoHandle reads as the empty string.
func (a *Allocator) String(h Handle) (string, error) {
	if h == NoHandle {
		return "", nil
	}

	data, err := a.Bytes(h)
	if err != nil {
		return "", err
	}

	if end := bytes.IndexByte(data, 0); end >= 0 {
		data = data[:end]
	}
	return string(data), nil
}

// StringClean releases the string in slot and clears the slot
func (a *Allocator) StringClean(slot *Handle) error {
	if slot == nil || *slot == NoHandle {
		return nil
	}

	err := a.Release(*slot)
	*slot = NoHandle
	return err
}

// StringReplace stores a copy of src in slot, releasing the string slot held before. If src is
// NoHandle the slot is cleared. If the copy cannot be allocated the slot is left unchanged. A nil
// slot returns ErrNilSlot.
func (a *Allocator) StringReplace(src Handle, slot *Handle) error {
	a.logger.Debug("Allocator::StringReplace")

	if slot == nil {
		return ErrNilSlot
	}
	if src == *slot {
		return nil
	}

	dup, err := a.StringDupHandle(src)
	if err != nil {
		return err
	}

	old := *slot
	*slot = dup
	return a.Release(old)
}

// StringSet stores a copy of value in slot, releasing the string slot held before. A nil slot
// returns ErrNilSlot.
func (a *Allocator) StringSet(slot *Handle, value string) error {
	a.logger.Debug("Allocator::StringSet")

	if slot == nil {
		return ErrNilSlot
	}

	dup, err := a.StringDup(value)
	if err != nil {
		return err
	}

	old := *slot
	*slot = dup
	return a.Release(old)
}
