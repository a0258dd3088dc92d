package workload

import (
	"math/rand"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/dtu"
	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/system"
)

// ErrInvalidWorkload is wrapped by all the problems of a workload.
var ErrInvalidWorkload = errors.New("invalid workload")

// A Builder can build Drivers.
type Builder struct {
	sys         *system.System
	commands    int
	maxSize     uint64
	seed        int64
	slotSize    uint64
	slotCount   int
	abortPeriod sim.VTimeInCycle
	progress    Progress
	logger      zerolog.Logger
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		commands:  100,
		maxSize:   4096,
		seed:      1,
		slotSize:  512,
		slotCount: 4,
		logger:    zerolog.Nop(),
	}
}

// WithSystem sets the system to drive.
func (b Builder) WithSystem(s *system.System) Builder {
	b.sys = s
	return b
}

// WithCommands sets the total number of commands over all nodes.
func (b Builder) WithCommands(n int) Builder {
	b.commands = n
	return b
}

// WithMaxSize sets the largest size of reads and writes.
func (b Builder) WithMaxSize(size uint64) Builder {
	b.maxSize = size
	return b
}

// WithSeed sets the seed of the random commands.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	return b
}

// WithSlots sets the receive slots of every node. Messages fill at most one
// slot, header included.
func (b Builder) WithSlots(size uint64, count int) Builder {
	b.slotSize = size
	b.slotCount = count

	return b
}

// WithAbortPeriod makes the driver abort the local transfers of one node
// every period cycles, rotating over the nodes. 0 disables aborts.
func (b Builder) WithAbortPeriod(period sim.VTimeInCycle) Builder {
	b.abortPeriod = period
	return b
}

// WithProgress sets where the progress is reported.
func (b Builder) WithProgress(p Progress) Builder {
	b.progress = p
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

func (b Builder) validate() error {
	var result *multierror.Error

	problem := func(format string, args ...any) {
		result = multierror.Append(result,
			errors.Wrapf(ErrInvalidWorkload, format, args...))
	}

	if b.sys == nil || len(b.sys.Nodes) == 0 {
		problem("no system to drive")
	}

	if b.commands < 0 {
		problem("%d commands", b.commands)
	}

	if b.maxSize == 0 || b.maxSize > system.ExportSize {
		problem("max size %d must be in [1, %d]", b.maxSize, system.ExportSize)
	}

	if b.slotSize <= protocol.HeaderSize {
		problem("slots of %d bytes cannot hold a message", b.slotSize)
	}

	if b.slotCount < 1 {
		problem("%d slots, need at least 1", b.slotCount)
	}

	if b.slotSize*uint64(max(b.slotCount, 0)) > system.FrameBase-system.RecvBase {
		problem("%d slots of %d bytes do not fit the receive area",
			b.slotCount, b.slotSize)
	}

	return result.ErrorOrNil()
}

// Build creates a Driver and configures the endpoints of the system.
func (b Builder) Build() (*Driver, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if err := b.sys.ConnectRing(b.slotSize, b.slotCount); err != nil {
		return nil, err
	}

	return &Driver{
		sys:         b.sys,
		rand:        rand.New(rand.NewSource(b.seed)),
		total:       b.commands,
		maxSize:     b.maxSize,
		slotSize:    b.slotSize,
		abortPeriod: b.abortPeriod,
		progress:    b.progress,
		logger:      b.logger,
		nodeOf:      make(map[*dtu.Device]int),
		summary: Summary{
			ByOp:     make(map[string]int),
			ByResult: make(map[string]int),
		},
	}, nil
}
