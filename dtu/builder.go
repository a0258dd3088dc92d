package dtu

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/dtu/xfer"
	"github.com/sarchlab/dtusim/noc"
	"github.com/sarchlab/dtusim/sim"
)

// A Builder can build Devices.
type Builder struct {
	engine        sim.EventScheduler
	fabric        *noc.Fabric
	node          noc.NodeID
	memory        xfer.MemoryService
	translator    xfer.Translator
	numEndpoints  int
	maxPacketSize uint64
	blockSize     uint64
	numBuffers    int
	bufferSize    uint64
	vpe           protocol.VPEID
	metrics       *xfer.Metrics
	logger        zerolog.Logger
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numEndpoints:  16,
		maxPacketSize: 1024,
		blockSize:     64,
		numBuffers:    4,
		bufferSize:    8192,
		vpe:           protocol.InvalidVPE,
		logger:        zerolog.Nop(),
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithFabric sets the network the device is attached to.
func (b Builder) WithFabric(fabric *noc.Fabric) Builder {
	b.fabric = fabric
	return b
}

// WithNode sets the network node of the device.
func (b Builder) WithNode(node noc.NodeID) Builder {
	b.node = node
	return b
}

// WithMemory sets the local memory.
func (b Builder) WithMemory(m xfer.MemoryService) Builder {
	b.memory = m
	return b
}

// WithTranslator sets the translator of local addresses. Without one, local
// addresses are physical.
func (b Builder) WithTranslator(t xfer.Translator) Builder {
	b.translator = t
	return b
}

// WithNumEndpoints sets the size of the endpoint table.
func (b Builder) WithNumEndpoints(n int) Builder {
	b.numEndpoints = n
	return b
}

// WithMaxNocPacketSize sets the largest payload of a network request.
// Longer reads and writes are split.
func (b Builder) WithMaxNocPacketSize(size uint64) Builder {
	b.maxPacketSize = size
	return b
}

// WithBlockSize sets the block size of the transfer unit.
func (b Builder) WithBlockSize(size uint64) Builder {
	b.blockSize = size
	return b
}

// WithNumBuffers sets the number of transfer buffers.
func (b Builder) WithNumBuffers(n int) Builder {
	b.numBuffers = n
	return b
}

// WithBufferSize sets the capacity of each transfer buffer.
func (b Builder) WithBufferSize(size uint64) Builder {
	b.bufferSize = size
	return b
}

// WithVPE sets the VPE the device serves initially.
func (b Builder) WithVPE(vpe protocol.VPEID) Builder {
	b.vpe = vpe
	return b
}

// WithMetrics sets the collectors of the transfer unit.
func (b Builder) WithMetrics(m *xfer.Metrics) Builder {
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

	if b.fabric == nil {
		result = multierror.Append(result,
			errors.Wrap(xfer.ErrInvalidConfig, "fabric is not set"))
	}

	if b.numEndpoints < 1 {
		result = multierror.Append(result, errors.Wrapf(xfer.ErrInvalidConfig,
			"%d endpoints, need at least 1", b.numEndpoints))
	}

	if b.maxPacketSize == 0 || b.maxPacketSize > b.bufferSize {
		result = multierror.Append(result, errors.Wrapf(xfer.ErrInvalidConfig,
			"max packet size %d must be in [1, %d]",
			b.maxPacketSize, b.bufferSize))
	}

	return result.ErrorOrNil()
}

// Build creates a Device and attaches it to the fabric.
func (b Builder) Build(name string) (*Device, error) {
	if err := b.validate(); err != nil {
		return nil, errors.Wrapf(err, "building %s", name)
	}

	logger := b.logger.With().Str("comp", name).Logger()

	d := &Device{
		ComponentBase: sim.NewComponentBase(name),
		engine:        b.engine,
		node:          b.node,
		fabric:        b.fabric,
		eps:           NewEndpointTable(b.numEndpoints),
		vpe:           b.vpe,
		maxPacketSize: b.maxPacketSize,
		logger:        logger,
	}
	d.mu = &memUnit{dev: d}

	unit, err := xfer.MakeBuilder().
		WithEngine(b.engine).
		WithBlockSize(b.blockSize).
		WithNumBuffers(b.numBuffers).
		WithBufferSize(b.bufferSize).
		WithMemory(b.memory).
		WithTranslator(b.translator).
		WithNetwork(d).
		WithConsumer(d).
		WithMetrics(b.metrics).
		WithLogger(b.logger).
		Build(name + ".Xfer")
	if err != nil {
		return nil, errors.Wrapf(err, "building %s", name)
	}

	d.xfer = unit
	b.fabric.Attach(b.node, d)

	return d, nil
}
