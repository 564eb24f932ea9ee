// Package objman owns every object that crosses the DCPS API boundary. Objects are untyped
// zero-initialized byte payloads identified by a Handle; each may carry a destructor that tears down
// the handles it owns when it is released. Sequences and strings are built on the same mechanism.
package objman

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/dcpsmem/heap"
	"github.com/vkngwrapper/dcpsmem/internal/utils"
	"github.com/vkngwrapper/dcpsmem/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

var (
	// ErrAlreadyReleased is returned when a handle that was issued by the allocator is no longer
	// live, or is in the middle of being released
	ErrAlreadyReleased = errors.New("handle already released")
	// ErrInvalidHandle is returned when a handle was never issued by the allocator
	ErrInvalidHandle = errors.New("invalid handle")
	// ErrCorruptHeader is returned when a live handle's hidden header no longer carries its validity
	// tag, which means something wrote outside the bounds of a neighboring payload
	ErrCorruptHeader = errors.New("allocation header is corrupt")
	// ErrNilSlot is returned when a string is stored through a nil slot
	ErrNilSlot = errors.New("nil string slot")
)

// Handle identifies an allocation. Handles are plain integers, so they may be stored inside other
// payloads.
type Handle uint64

// NoHandle is the absent handle. Releasing it is a no-op.
const NoHandle Handle = 0

// Destructor is run once when the handle it was registered with is released, before the handle
// stops being live, so the payload can still be read through h. It is responsible for releasing every
// handle the payload owns.
type Destructor func(a *Allocator, h Handle) error

type record struct {
	block      heap.Block
	prefix     int
	size       int
	destructor Destructor
	releasing  bool
}

func (r *record) header() []byte {
	return r.block.Data[r.prefix : r.prefix+headerSize]
}

func (r *record) payload() []byte {
	start := r.prefix + headerSize
	return r.block.Data[start : start+r.size : start+r.size]
}

// Allocator hands out tagged allocations from a heap.Heap
type Allocator struct {
	logger      *slog.Logger
	heap        heap.Heap
	createFlags CreateFlags

	nextHandle atomic.Uint64

	mutex        utils.OptionalRWMutex
	records      *swiss.Map[Handle, *record]
	blockBytes   int
	payloadBytes int
}

// Allocate reserves a zeroed payload of payloadSize bytes, preceded by an extra prefix region of at
// least extraPrefixSize bytes, and registers destructor to run when the handle is released. A heap
// failure is returned as an error satisfying errors.Is(err, heap.ErrOutOfMemory).
func (a *Allocator) Allocate(extraPrefixSize, payloadSize int, destructor Destructor) (Handle, error) {
	a.logger.Debug("Allocator::Allocate")

	err := memutils.CheckSize(extraPrefixSize, "extraPrefixSize")
	if err != nil {
		return NoHandle, err
	}
	err = memutils.CheckSize(payloadSize, "payloadSize")
	if err != nil {
		return NoHandle, err
	}

	if extraPrefixSize > heap.MaxAllocationSize-headerSize {
		return NoHandle, errors.Wrapf(heap.ErrOutOfMemory, "a prefix of %d bytes exceeds the largest possible allocation", extraPrefixSize)
	}
	prefix := memutils.AlignUp(extraPrefixSize, memutils.DefaultAlignment)
	if payloadSize > heap.MaxAllocationSize-headerSize-prefix {
		return NoHandle, errors.Wrapf(heap.ErrOutOfMemory, "a payload of %d bytes with a %d byte prefix exceeds the largest possible allocation", payloadSize, prefix)
	}
	totalSize := prefix + headerSize + payloadSize

	handle := Handle(a.nextHandle.Add(1))
	block, err := a.heap.Alloc(totalSize, uint64(handle))
	if err != nil {
		return NoHandle, errors.Wrapf(err, "failed to allocate %d bytes for handle %d", totalSize, handle)
	}
	if len(block.Data) < totalSize {
		freeErr := a.heap.Free(block)
		return NoHandle, errors.CombineErrors(
			errors.Newf("heap returned a block of %d bytes when %d were requested", len(block.Data), totalSize),
			freeErr)
	}

	rec := &record{
		block:      block,
		prefix:     prefix,
		size:       payloadSize,
		destructor: destructor,
	}
	clear(block.Data)
	writeHeader(rec.header(), prefix, payloadSize, destructor != nil)

	a.mutex.Lock()
	defer a.mutex.Unlock()

	a.records.Put(handle, rec)
	a.blockBytes += len(block.Data)
	a.payloadBytes += payloadSize

	return handle, nil
}

// lookup must be called with the mutex held
func (a *Allocator) lookup(h Handle) (*record, error) {
	rec, ok := a.records.Get(h)
	if !ok {
		if h != NoHandle && uint64(h) <= a.nextHandle.Load() {
			return nil, errors.Wrapf(ErrAlreadyReleased, "handle %d", h)
		}
		return nil, errors.Wrapf(ErrInvalidHandle, "handle %d was never issued", h)
	}

	if readHeaderMagic(rec.header()) != headerMagic {
		return nil, errors.Wrapf(ErrCorruptHeader, "handle %d", h)
	}

	return rec, nil
}

func (a *Allocator) get(h Handle) (*record, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.lookup(h)
}

// Release runs the handle's destructor, if any, then returns its memory to the heap. Releasing
// NoHandle does nothing. Releasing a handle that is no longer live returns ErrAlreadyReleased,
// and releasing a handle that was never issued returns ErrInvalidHandle, unless the allocator was
// created with CreateLenientRelease.
//
// The memory is returned to the heap even if the destructor fails; the destructor's error is
// returned in that case.
func (a *Allocator) Release(h Handle) error {
	a.logger.Debug("Allocator::Release")

	if h == NoHandle {
		return nil
	}

	rec, err := a.beginRelease(h)
	if err != nil {
		if a.createFlags&CreateLenientRelease != 0 && !errors.Is(err, ErrCorruptHeader) {
			return nil
		}
		return err
	}

	var destructorErr error
	if rec.destructor != nil {
		destructorErr = rec.destructor(a, h)
		if destructorErr != nil {
			destructorErr = errors.Wrapf(destructorErr, "destructor for handle %d failed", h)
		}
	}

	a.finishRelease(h, rec)

	err = a.heap.Free(rec.block)
	if err != nil {
		return errors.CombineErrors(destructorErr, errors.Wrapf(err, "failed to return handle %d to the heap", h))
	}

	return destructorErr
}

func (a *Allocator) beginRelease(h Handle) (*record, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	rec, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	if rec.releasing {
		return nil, errors.Wrapf(ErrAlreadyReleased, "handle %d is already being released", h)
	}

	rec.releasing = true
	return rec, nil
}

func (a *Allocator) finishRelease(h Handle, rec *record) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	clearHeaderMagic(rec.header())
	a.records.Delete(h)
	a.blockBytes -= len(rec.block.Data)
	a.payloadBytes -= rec.size
}

// HeaderBase returns the whole block behind a live handle, starting at the extra prefix region.
// It returns false if the handle is not live.
func (a *Allocator) HeaderBase(h Handle) ([]byte, bool) {
	rec, err := a.get(h)
	if err != nil {
		return nil, false
	}

	return rec.block.Data, true
}

// Prefix returns the extra prefix region of a live handle. Its length is the requested prefix size
// rounded up to a multiple of 8.
func (a *Allocator) Prefix(h Handle) ([]byte, bool) {
	rec, err := a.get(h)
	if err != nil {
		return nil, false
	}

	return rec.block.Data[:rec.prefix:rec.prefix], true
}

// Bytes returns the payload of a live handle
func (a *Allocator) Bytes(h Handle) ([]byte, error) {
	rec, err := a.get(h)
	if err != nil {
		return nil, err
	}

	return rec.payload(), nil
}

// Size returns the payload size of a live handle
func (a *Allocator) Size(h Handle) (int, error) {
	rec, err := a.get(h)
	if err != nil {
		return 0, err
	}

	return rec.size, nil
}

// IsLive reports whether h may be used. A handle stays live while its destructor runs.
func (a *Allocator) IsLive(h Handle) bool {
	_, err := a.get(h)
	return err == nil
}

// Statistics reports the live handles. Blocks are the full heap regions, allocations are the
// payloads within them.
func (a *Allocator) Statistics() memutils.Statistics {
	a.logger.Debug("Allocator::Statistics")

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return memutils.Statistics{
		BlockCount:      a.records.Count(),
		AllocationCount: a.records.Count(),
		BlockBytes:      a.blockBytes,
		AllocationBytes: a.payloadBytes,
	}
}

func (a *Allocator) sortedHandles() []Handle {
	handles := make([]Handle, 0, a.records.Count())
	a.records.Iter(func(h Handle, _ *record) bool {
		handles = append(handles, h)
		return false
	})
	slices.Sort(handles)
	return handles
}

// BuildStatsString renders the allocator's totals and every live handle as json
func (a *Allocator) BuildStatsString() string {
	a.logger.Debug("Allocator::BuildStatsString")

	stats := a.Statistics()

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	writer := jwriter.NewWriter()
	rootObj := writer.Object()

	rootObj.Name("Flags").String(a.createFlags.String())

	total := rootObj.Name("Total").Object()
	stats.PrintJson(&total)
	total.End()

	live := rootObj.Name("Live").Array()
	for _, h := range a.sortedHandles() {
		rec, _ := a.records.Get(h)

		obj := live.Object()
		obj.Name("Handle").Float64(float64(h))
		obj.Name("Prefix").Int(rec.prefix)
		obj.Name("Size").Int(rec.size)
		obj.Name("Destructor").Bool(rec.destructor != nil)
		if rec.releasing {
			obj.Name("Releasing").Bool(true)
		}
		obj.End()
	}
	live.End()

	rootObj.End()
	return string(writer.Bytes())
}

// Validate checks that every live handle's header agrees with the allocator's own record of it
func (a *Allocator) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	blockBytes := 0
	payloadBytes := 0
	var err error
	a.records.Iter(func(h Handle, rec *record) bool {
		header := rec.header()
		switch {
		case readHeaderMagic(header) != headerMagic:
			err = errors.Wrapf(ErrCorruptHeader, "handle %d", h)
		case readHeaderPrefix(header) != rec.prefix:
			err = errors.Newf("handle %d has prefix %d in its header but %d in its record", h, readHeaderPrefix(header), rec.prefix)
		case readHeaderSize(header) != rec.size:
			err = errors.Newf("handle %d has size %d in its header but %d in its record", h, readHeaderSize(header), rec.size)
		case (readHeaderFlags(header)&headerFlagDestructor != 0) != (rec.destructor != nil):
			err = errors.Newf("handle %d has a destructor flag in its header that does not match its record", h)
		}

		blockBytes += len(rec.block.Data)
		payloadBytes += rec.size
		return err != nil
	})
	if err != nil {
		return err
	}

	if blockBytes != a.blockBytes || payloadBytes != a.payloadBytes {
		return errors.Newf("tracked totals (%d block bytes, %d payload bytes) do not match the live handles (%d, %d)", a.blockBytes, a.payloadBytes, blockBytes, payloadBytes)
	}

	return nil
}

// Destroy reports leaks. Every live handle is logged at error level and an error is returned if
// any remain. Live handles are not released.
func (a *Allocator) Destroy() error {
	a.logger.Debug("Allocator::Destroy")

	memutils.DebugValidate(a)

	a.mutex.RLock()
	defer a.mutex.RUnlock()

	count := a.records.Count()
	if count == 0 {
		return nil
	}

	for _, h := range a.sortedHandles() {
		rec, _ := a.records.Get(h)
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased handle",
			slog.Uint64("handle", uint64(h)),
			slog.Int("size", rec.size),
			slog.Bool("destructor", rec.destructor != nil),
		)
	}

	return errors.Newf("the allocator still has %d handles that remain unreleased", count)
}
