package idealmemcontroller

import (
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/mem"
	"github.com/sarchlab/dtusim/sim"
)

// A Builder can build ideal memory controllers.
type Builder struct {
	engine   sim.EventScheduler
	latency  sim.VTimeInCycle
	capacity uint64
	storage  *mem.Storage
	logger   zerolog.Logger
}

// MakeBuilder returns a new Builder.
func MakeBuilder() Builder {
	return Builder{
		latency:  100,
		capacity: 4 * mem.GB,
		logger:   zerolog.Nop(),
	}
}

// WithEngine sets the engine that schedules the responses.
func (b Builder) WithEngine(engine sim.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithLatency sets the number of cycles between a request and its response.
func (b Builder) WithLatency(latency sim.VTimeInCycle) Builder {
	b.latency = latency
	return b
}

// WithNewStorage sets the capacity of the storage created by the builder.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage sets the storage of the memory controller.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

// Build builds a new Comp.
func (b Builder) Build(name string) *Comp {
	if b.engine == nil {
		panic("engine is not set")
	}

	c := &Comp{
		ComponentBase: sim.NewComponentBase(name),
		Engine:        b.engine,
		Latency:       b.latency,
		logger:        b.logger.With().Str("comp", name).Logger(),
	}

	if b.storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	return c
}
