//go:build !unix

package heap

import "github.com/cockroachdb/errors"

// NewMmapSlabs returns an MmapSlabs source, or an error on platforms without mmap
func NewMmapSlabs() (SlabSource, error) {
	return nil, errors.New("mmap slabs are not supported on this platform")
}
