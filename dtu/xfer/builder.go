package xfer

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/sim"
)

// A Builder can build transfer units.
type Builder struct {
	engine     sim.EventScheduler
	blockSize  uint64
	numBuffers int
	bufferSize uint64
	memory     MemoryService
	translator Translator
	network    Network
	consumer   Consumer
	metrics    *Metrics
	logger     zerolog.Logger
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		blockSize:  64,
		numBuffers: 4,
		bufferSize: 8192,
		logger:     zerolog.Nop(),
	}
}

// WithEngine sets the engine that schedules the unit's events.
func (b Builder) WithEngine(engine sim.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithBlockSize sets the size of the blocks transfers are split into. It
// must be a power of two.
func (b Builder) WithBlockSize(size uint64) Builder {
	b.blockSize = size
	return b
}

// WithNumBuffers sets the number of buffers.
func (b Builder) WithNumBuffers(n int) Builder {
	b.numBuffers = n
	return b
}

// WithBufferSize sets the capacity of each buffer in bytes.
func (b Builder) WithBufferSize(size uint64) Builder {
	b.bufferSize = size
	return b
}

// WithMemory sets the memory that serves the block requests.
func (b Builder) WithMemory(m MemoryService) Builder {
	b.memory = m
	return b
}

// WithTranslator enables address translation. At least two buffers are
// required with translation.
func (b Builder) WithTranslator(t Translator) Builder {
	b.translator = t
	return b
}

// WithNetwork sets the network that finished transfers send to.
func (b Builder) WithNetwork(n Network) Builder {
	b.network = n
	return b
}

// WithConsumer sets the consumer that is notified about finished transfers.
func (b Builder) WithConsumer(c Consumer) Builder {
	b.consumer = c
	return b
}

// WithMetrics sets the prometheus collectors to update.
func (b Builder) WithMetrics(m *Metrics) Builder {
	b.metrics = m
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
			errors.Wrapf(ErrInvalidConfig, format, args...))
	}

	if b.engine == nil {
		problem("engine is not set")
	}

	if b.memory == nil {
		problem("memory is not set")
	}

	if b.network == nil {
		problem("network is not set")
	}

	if b.consumer == nil {
		problem("consumer is not set")
	}

	if b.blockSize == 0 || b.blockSize&(b.blockSize-1) != 0 {
		problem("block size %d is not a power of two", b.blockSize)
	}

	if b.numBuffers < 1 {
		problem("%d buffers, need at least 1", b.numBuffers)
	}

	if b.translator != nil && b.numBuffers < 2 {
		problem("%d buffers, need at least 2 with translation", b.numBuffers)
	}

	if b.bufferSize == 0 {
		problem("buffer size must not be 0")
	}

	return result.ErrorOrNil()
}

// Build creates a new Unit.
func (b Builder) Build(name string) (*Unit, error) {
	if err := b.validate(); err != nil {
		return nil, errors.Wrapf(err, "building %s", name)
	}

	u := &Unit{
		ComponentBase: sim.NewComponentBase(name),
		engine:        b.engine,
		blockSize:     b.blockSize,
		translator:    b.translator,
		memory:        b.memory,
		network:       b.network,
		consumer:      b.consumer,
		logger:        b.logger.With().Str("comp", name).Logger(),
		metrics:       unitMetrics{m: b.metrics, unit: name},
		pool:          newBufferPool(b.numBuffers, b.bufferSize),
		queue:         newAdmissionQueue(),
		registry:      newAbortRegistry(),
		bound:         make(map[uint64]*Request),
	}

	return u, nil
}
