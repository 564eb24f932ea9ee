package objman

import (
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/dcpsmem/heap"
	"github.com/vkngwrapper/dcpsmem/internal/utils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific allocator behaviors to activate or deactivate
type CreateFlags int32

var createFlagsMapping = utils.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	createFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return createFlagsMapping.FlagsToString(f)
}

const (
	// CreateExternallySynchronized ensures that the allocator's handle table will not be synchronized
	// internally. The consumer must guarantee the allocator is used from only one goroutine at a time or
	// is synchronized by some other mechanism.
	CreateExternallySynchronized CreateFlags = 1 << iota
	// CreateLenientRelease makes Release return nil for handles that were already released or never
	// issued, instead of ErrAlreadyReleased or ErrInvalidHandle. Corrupt headers are still reported.
	CreateLenientRelease

	createFlagsAll = CreateExternallySynchronized | CreateLenientRelease
)

func init() {
	CreateExternallySynchronized.Register("CreateExternallySynchronized")
	CreateLenientRelease.Register("CreateLenientRelease")
}

// CreateOptions contains optional settings when creating an Allocator. It is valid to leave every
// field blank.
type CreateOptions struct {
	Flags CreateFlags

	// Heap is the byte store that backs every allocation. If left nil, an unbounded heap.GoHeap is
	// used.
	Heap heap.Heap
}

// New creates a new Allocator. A nil logger discards all log output.
func New(logger *slog.Logger, options CreateOptions) (*Allocator, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if options.Flags&^createFlagsAll != 0 {
		return nil, errors.Newf("unknown create flags: %s", options.Flags)
	}

	backing := options.Heap
	if backing == nil {
		backing = heap.NewGoHeap(0)
	}

	return &Allocator{
		logger:      logger,
		heap:        backing,
		createFlags: options.Flags,
		mutex: utils.OptionalRWMutex{
			UseMutex: options.Flags&CreateExternallySynchronized == 0,
			Mutex:    sync.RWMutex{},
		},
		records: swiss.NewMap[Handle, *record](64),
	}, nil
}
