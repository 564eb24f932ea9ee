//go:build unix

package heap

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// MmapSlabs obtains slabs as anonymous private mappings, keeping arena memory outside the
// Go heap. Memory in these slabs is invisible to the garbage collector, so it must never hold
// Go pointers.
type MmapSlabs struct{}

var _ SlabSource = MmapSlabs{}

// NewMmapSlabs returns an MmapSlabs source, or an error on platforms without mmap
func NewMmapSlabs() (SlabSource, error) {
	return MmapSlabs{}, nil
}

func (MmapSlabs) AllocSlab(size int) ([]byte, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		if errors.Is(err, unix.ENOMEM) {
			return nil, errors.Wrapf(ErrOutOfMemory, "mmap of %d bytes failed", size)
		}
		return nil, errors.Wrapf(err, "mmap of %d bytes failed", size)
	}

	return data, nil
}

func (MmapSlabs) FreeSlab(slab []byte) error {
	return errors.Wrap(unix.Munmap(slab), "munmap failed")
}

func (MmapSlabs) Name() string {
	return "mmap"
}
