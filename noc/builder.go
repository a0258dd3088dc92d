package noc

import (
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/sim"
)

// Builder can help building fabrics.
type Builder struct {
	engine        sim.EventScheduler
	latency       sim.VTimeInCycle
	bytesPerCycle int
	logger        zerolog.Logger
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		latency:       10,
		bytesPerCycle: 16,
		logger:        zerolog.Nop(),
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(e sim.EventScheduler) Builder {
	b.engine = e
	return b
}

// WithLatency sets the number of cycles a message spends in flight.
func (b Builder) WithLatency(latency sim.VTimeInCycle) Builder {
	b.latency = latency
	return b
}

// WithBytesPerCycle sets the link width. Zero disables serialization delay.
func (b Builder) WithBytesPerCycle(n int) Builder {
	b.bytesPerCycle = n
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a new Fabric.
func (b Builder) Build(name string) *Fabric {
	if b.engine == nil {
		panic("engine is not set")
	}

	return &Fabric{
		ComponentBase: sim.NewComponentBase(name),
		engine:        b.engine,
		latency:       b.latency,
		bytesPerCycle: b.bytesPerCycle,
		endpoints:     make(map[NodeID]Endpoint),
		linkBusyUntil: make(map[NodeID]sim.VTimeInCycle),
		logger:        b.logger.With().Str("comp", name).Logger(),
	}
}
