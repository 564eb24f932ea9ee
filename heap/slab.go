package heap

// SlabSource supplies the large backing regions that an Arena carves suballocations out of.
// Slabs must be zeroed and aligned to at least memutils.DefaultAlignment.
type SlabSource interface {
	AllocSlab(size int) ([]byte, error)
	FreeSlab(slab []byte) error
	// Name identifies the source in statistics output
	Name() string
}

// GoSlabs obtains slabs from the Go runtime
type GoSlabs struct{}

var _ SlabSource = GoSlabs{}

func (GoSlabs) AllocSlab(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func (GoSlabs) FreeSlab(slab []byte) error {
	return nil
}

func (GoSlabs) Name() string {
	return "go"
}
