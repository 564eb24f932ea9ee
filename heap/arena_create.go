package heap

import (
	"io"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/dcpsmem/internal/utils"
	"github.com/vkngwrapper/dcpsmem/memutils"
	"github.com/vkngwrapper/dcpsmem/memutils/metadata"
	"golang.org/x/exp/slog"
)

// ArenaCreateFlags indicate specific arena behaviors to activate or deactivate
type ArenaCreateFlags int32

var arenaCreateFlagsMapping = utils.NewFlagStringMapping[ArenaCreateFlags]()

func (f ArenaCreateFlags) Register(str string) {
	arenaCreateFlagsMapping.Register(f, str)
}
func (f ArenaCreateFlags) String() string {
	return arenaCreateFlagsMapping.FlagsToString(f)
}

const (
	// ArenaCreateExternallySynchronized ensures that the arena will not be synchronized internally.
	// The consumer must guarantee it is used from only one goroutine at a time.
	ArenaCreateExternallySynchronized ArenaCreateFlags = 1 << iota
	// ArenaCreateMmapSlabs obtains slabs with anonymous mmap instead of from the Go runtime. It is
	// ignored when ArenaCreateOptions.Slabs is set.
	ArenaCreateMmapSlabs
	// ArenaCreateExplicitBlockSize always creates blocks of PreferredBlockSize instead of starting
	// with smaller blocks while the arena is young
	ArenaCreateExplicitBlockSize
)

func init() {
	ArenaCreateExternallySynchronized.Register("ArenaCreateExternallySynchronized")
	ArenaCreateMmapSlabs.Register("ArenaCreateMmapSlabs")
	ArenaCreateExplicitBlockSize.Register("ArenaCreateExplicitBlockSize")
}

const (
	// defaultPreferredBlockSize is used when ArenaCreateOptions.PreferredBlockSize is left at 0. It is
	// equal to 1Mb.
	defaultPreferredBlockSize int = 1024 * 1024
)

// ArenaCreateOptions contains optional settings when creating an Arena. It is valid to leave
// every field blank.
type ArenaCreateOptions struct {
	Flags ArenaCreateFlags

	// PreferredBlockSize is the size of the slabs that suballocations are carved from. Requests
	// larger than half of it receive a dedicated slab.
	PreferredBlockSize int
	// MinBlockCount blocks are created up front and never released until Destroy
	MinBlockCount int
	// MaxBlockCount caps the number of shared blocks. 0 means no cap.
	MaxBlockCount int
	// ByteLimit caps the total slab bytes held by the arena, dedicated slabs included. 0 means
	// no cap.
	ByteLimit int

	// Strategy selects how free regions are chosen within blocks
	Strategy metadata.AllocationStrategy
	// Slabs overrides the slab source
	Slabs SlabSource
}

// NewArena creates an Arena. A nil logger discards all log output.
func NewArena(logger *slog.Logger, options ArenaCreateOptions) (*Arena, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if options.PreferredBlockSize == 0 {
		options.PreferredBlockSize = defaultPreferredBlockSize
	}
	err := memutils.CheckSize(options.PreferredBlockSize, "PreferredBlockSize")
	if err != nil {
		return nil, err
	}
	if options.MinBlockCount < 0 {
		return nil, errors.Newf("MinBlockCount must not be negative, but was %d", options.MinBlockCount)
	}
	if options.MaxBlockCount == 0 {
		options.MaxBlockCount = math.MaxInt
	} else if options.MaxBlockCount < options.MinBlockCount {
		return nil, errors.Newf("MaxBlockCount %d is less than MinBlockCount %d", options.MaxBlockCount, options.MinBlockCount)
	}
	if options.ByteLimit < 0 {
		return nil, errors.Newf("ByteLimit must not be negative, but was %d", options.ByteLimit)
	}
	if options.Strategy&^metadata.AllocationStrategyMask != 0 {
		return nil, errors.Newf("unknown allocation strategy bits: %s", options.Strategy)
	}

	slabs := options.Slabs
	if slabs == nil && options.Flags&ArenaCreateMmapSlabs != 0 {
		slabs, err = NewMmapSlabs()
		if err != nil {
			return nil, err
		}
	} else if slabs == nil {
		slabs = GoSlabs{}
	}

	useMutex := options.Flags&ArenaCreateExternallySynchronized == 0
	arena := &Arena{
		logger:      logger,
		createFlags: options.Flags,
		slabs:       slabs,
		budget:      NewBudget(options.ByteLimit),
	}
	arena.blockList.Init(
		useMutex,
		logger,
		slabs,
		arena.budget,
		options.PreferredBlockSize,
		options.MinBlockCount,
		options.MaxBlockCount,
		options.Flags&ArenaCreateExplicitBlockSize != 0,
		options.Strategy,
	)
	arena.dedicatedAllocations.Init(useMutex)

	err = arena.blockList.CreateMinBlocks()
	if err != nil {
		destroyErr := arena.blockList.Destroy()
		return nil, errors.CombineErrors(err, destroyErr)
	}

	return arena, nil
}
