package walker

import (
	"log"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/vm"
)

// A Builder can build Walkers.
type Builder struct {
	engine       sim.EventScheduler
	pageTable    vm.PageTable
	pid          vm.PID
	numTLBEntry  int
	walkLatency  sim.VTimeInCycle
	faultHandler FaultHandler
	logger       zerolog.Logger
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numTLBEntry: 32,
		walkLatency: 20,
		logger:      zerolog.Nop(),
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.EventScheduler) Builder {
	b.engine = engine
	return b
}

// WithPageTable sets the page table to walk.
func (b Builder) WithPageTable(pageTable vm.PageTable) Builder {
	b.pageTable = pageTable
	return b
}

// WithPID sets the initial address space.
func (b Builder) WithPID(pid vm.PID) Builder {
	b.pid = pid
	return b
}

// WithNumTLBEntry sets the number of entries of the TLB.
func (b Builder) WithNumTLBEntry(n int) Builder {
	b.numTLBEntry = n
	return b
}

// WithWalkLatency sets the number of cycles a page walk takes.
func (b Builder) WithWalkLatency(latency sim.VTimeInCycle) Builder {
	b.walkLatency = latency
	return b
}

// WithFaultHandler sets the handler that resolves page faults. Without a
// handler, faulting translations fail.
func (b Builder) WithFaultHandler(h FaultHandler) Builder {
	b.faultHandler = h
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(logger zerolog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates a new Walker.
func (b Builder) Build(name string) *Walker {
	if b.engine == nil || b.pageTable == nil {
		log.Panicf("walker %s needs an engine and a page table", name)
	}

	tlb, err := lru.New(b.numTLBEntry)
	if err != nil {
		log.Panicf("creating TLB of walker %s: %v", name, err)
	}

	return &Walker{
		ComponentBase: sim.NewComponentBase(name),
		engine:        b.engine,
		pageTable:     b.pageTable,
		pid:           b.pid,
		tlb:           tlb,
		walkLatency:   b.walkLatency,
		faultHandler:  b.faultHandler,
		logger:        b.logger.With().Str("comp", name).Logger(),
		pending:       make(map[vm.TranslationCallback]*walk),
	}
}
