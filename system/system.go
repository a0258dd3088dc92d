// Package system assembles the simulated platform: nodes that each have a
// memory, an optional page walker, and a DTU, connected by one network.
package system

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/config"
	"github.com/sarchlab/dtusim/dtu"
	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/dtu/xfer"
	"github.com/sarchlab/dtusim/mem/idealmemcontroller"
	"github.com/sarchlab/dtusim/noc"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/vm"
	"github.com/sarchlab/dtusim/vm/walker"
)

// The memory layout of every node. Frames handed out by the pager start at
// FrameBase, so they never overlap the addresses the workload uses.
const (
	LocalBase  = 0x0
	LocalSize  = 0x100000
	ExportBase = 0x100000
	ExportSize = 0x100000
	RecvBase   = 0x200000
	FrameBase  = 0x400000
)

// A Node is one processing element of the platform.
type Node struct {
	ID        noc.NodeID
	Memory    *idealmemcontroller.Comp
	PageTable vm.PageTable
	Pager     *vm.Pager
	Walker    *walker.Walker
	DTU       *dtu.Device
}

// A System is a set of nodes on a network.
type System struct {
	Engine   *sim.SerialEngine
	Fabric   *noc.Fabric
	Nodes    []*Node
	Registry *prometheus.Registry
}

// Build creates a system of numNodes nodes. Node i gets the network id i+1
// and serves the VPE i+1.
func Build(
	cfg *config.Config,
	numNodes int,
	logger zerolog.Logger,
) (*System, error) {
	if numNodes < 1 {
		return nil, errors.Errorf("cannot build a system of %d nodes", numNodes)
	}

	if cfg.VM.Translation && cfg.Memory.Capacity <= FrameBase {
		return nil, errors.Wrapf(config.ErrInvalid,
			"memory of %d bytes leaves no frames for the pager",
			cfg.Memory.Capacity)
	}

	s := &System{
		Engine:   sim.NewSerialEngine(),
		Registry: prometheus.NewRegistry(),
	}

	s.Fabric = cfg.FabricBuilder().
		WithEngine(s.Engine).
		WithLogger(logger).
		Build("NoC")

	metrics := xfer.NewMetrics(s.Registry)

	for i := 0; i < numNodes; i++ {
		node, err := s.buildNode(cfg, noc.NodeID(i+1), metrics, logger)
		if err != nil {
			return nil, err
		}

		s.Nodes = append(s.Nodes, node)
	}

	return s, nil
}

func (s *System) buildNode(
	cfg *config.Config,
	id noc.NodeID,
	metrics *xfer.Metrics,
	logger zerolog.Logger,
) (*Node, error) {
	name := fmt.Sprintf("Node%d", id)
	node := &Node{ID: id}

	node.Memory = cfg.MemoryBuilder().
		WithEngine(s.Engine).
		WithLogger(logger).
		Build(name + ".Mem")

	b := cfg.DTUBuilder().
		WithEngine(s.Engine).
		WithFabric(s.Fabric).
		WithNode(id).
		WithMemory(node.Memory).
		WithVPE(protocol.VPEID(id)).
		WithMetrics(metrics).
		WithLogger(logger)

	if cfg.VM.Translation {
		node.PageTable = vm.NewPageTable(cfg.VM.Log2PageSize)
		node.Pager = vm.NewPager(node.PageTable,
			FrameBase, cfg.Memory.Capacity,
			vm.AccessRead|vm.AccessWrite|vm.AccessInternal)
		node.Walker = cfg.WalkerBuilder().
			WithEngine(s.Engine).
			WithPageTable(node.PageTable).
			WithPID(vm.PID(id)).
			WithFaultHandler(node.Pager).
			WithLogger(logger).
			Build(name + ".Walker")

		b = b.WithTranslator(node.Walker)
	}

	d, err := b.Build(name + ".DTU")
	if err != nil {
		return nil, err
	}

	node.DTU = d

	return node, nil
}

// The endpoints every node gets from ConnectRing.
const (
	MemEP  = 0
	SendEP = 1
	RecvEP = 2
)

// ConnectRing configures the endpoints so that each node can access the
// exported memory of the next node and send messages to it.
func (s *System) ConnectRing(slotSize uint64, slotCount int) error {
	for i, n := range s.Nodes {
		peer := s.Nodes[(i+1)%len(s.Nodes)]
		eps := n.DTU.Endpoints()

		err := eps.ConfigureMemory(MemEP, dtu.MemEndpoint{
			TargetNode: peer.ID,
			RemoteAddr: ExportBase,
			RemoteSize: ExportSize,
			Perm:       dtu.PermRead | dtu.PermWrite,
			VPE:        peer.DTU.VPE(),
		})
		if err != nil {
			return errors.Wrapf(err, "configuring %s", n.DTU.Name())
		}

		err = eps.ConfigureSend(SendEP, dtu.SendEndpoint{
			TargetNode: peer.ID,
			TargetEP:   RecvEP,
			Label:      uint64(n.ID),
			MaxMsgSize: slotSize,
			VPE:        peer.DTU.VPE(),
		})
		if err != nil {
			return errors.Wrapf(err, "configuring %s", n.DTU.Name())
		}

		err = eps.ConfigureRecv(RecvEP, dtu.RecvEndpoint{
			BufAddr:   RecvBase,
			SlotSize:  slotSize,
			SlotCount: slotCount,
		})
		if err != nil {
			return errors.Wrapf(err, "configuring %s", n.DTU.Name())
		}
	}

	return nil
}

// Peer returns the node that node i sends to.
func (s *System) Peer(i int) *Node {
	return s.Nodes[(i+1)%len(s.Nodes)]
}
