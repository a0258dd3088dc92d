package noc

import (
	"log"
	"reflect"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/tracing"
)

// ErrUnknownNode is returned when a message is sent to a node that has no
// endpoint attached.
var ErrUnknownNode = errors.New("unknown node")

type deliverEvent struct {
	sim.EventBase
	msg Msg
}

// A Fabric delivers messages after a fixed latency plus the time it takes to
// serialize the message at the configured width. Messages sent in the same
// cycle to the same node arrive in send order.
type Fabric struct {
	*sim.ComponentBase

	engine        sim.EventScheduler
	latency       sim.VTimeInCycle
	bytesPerCycle int
	endpoints     map[NodeID]Endpoint
	linkBusyUntil map[NodeID]sim.VTimeInCycle
	logger        zerolog.Logger

	numMsgs  uint64
	numBytes uint64
}

// Attach connects an endpoint to a node.
func (f *Fabric) Attach(node NodeID, ep Endpoint) {
	if _, found := f.endpoints[node]; found {
		log.Panicf("node %d is already attached", node)
	}

	f.endpoints[node] = ep
}

// Send injects a message into the network.
func (f *Fabric) Send(msg Msg) error {
	meta := msg.Meta()
	if _, found := f.endpoints[meta.Dst]; !found {
		return errors.Wrapf(ErrUnknownNode, "sending %s to node %d",
			meta.ID, meta.Dst)
	}

	now := f.engine.CurrentTime()
	start := now
	if busy := f.linkBusyUntil[meta.Src]; busy > start {
		start = busy
	}

	serialization := sim.VTimeInCycle(0)
	if f.bytesPerCycle > 0 {
		serialization = sim.VTimeInCycle(
			(meta.TrafficBytes + f.bytesPerCycle - 1) / f.bytesPerCycle)
	}

	f.linkBusyUntil[meta.Src] = start + serialization

	tracing.StartTask(meta.ID, "", f, "noc", reflect.TypeOf(msg).String())

	f.engine.Schedule(&deliverEvent{
		EventBase: sim.MakeEventBase(start+serialization+f.latency, f),
		msg:       msg,
	})

	f.numMsgs++
	f.numBytes += uint64(meta.TrafficBytes)

	f.logger.Debug().
		Str("msg", meta.ID).
		Uint32("src", uint32(meta.Src)).
		Uint32("dst", uint32(meta.Dst)).
		Int("bytes", meta.TrafficBytes).
		Msg("noc send")

	return nil
}

// Handle defines how the Fabric handles events.
func (f *Fabric) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *deliverEvent:
		meta := e.msg.Meta()
		tracing.EndTask(meta.ID, f)
		f.endpoints[meta.Dst].RecvMsg(e.msg)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

// NumMsgs returns the number of messages sent.
func (f *Fabric) NumMsgs() uint64 {
	return f.numMsgs
}

// NumBytes returns the number of bytes sent.
func (f *Fabric) NumBytes() uint64 {
	return f.numBytes
}
