// Package idealmemcontroller provides a memory controller that serves block
// requests after a fixed latency.
package idealmemcontroller

import (
	"log"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/mem"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/tracing"
)

type respondEvent struct {
	sim.EventBase
	req *mem.BlockRequest
}

func newRespondEvent(
	time sim.VTimeInCycle,
	handler sim.Handler,
	req *mem.BlockRequest,
) *respondEvent {
	return &respondEvent{sim.MakeEventBase(time, handler), req}
}

// A Comp is an ideal memory controller. It always responds to a request a
// fixed number of cycles after the request is issued. There is no limitation
// on the concurrency of this unit, and requests issued in the same cycle are
// served in issue order.
type Comp struct {
	*sim.ComponentBase

	Engine  sim.EventScheduler
	Storage *mem.Storage
	Latency sim.VTimeInCycle

	logger      zerolog.Logger
	numRead     uint64
	numWrite    uint64
	numInflight int
}

// IssueBlockRequest accepts a block request. The response is delivered to
// the requester after the latency.
func (c *Comp) IssueBlockRequest(req *mem.BlockRequest) {
	if req.Requester == nil {
		log.Panicf("block request %s has no requester", req.ID)
	}

	tracing.StartTask(req.ID, "", c, "mem", req.Kind.String())

	c.numInflight++
	c.Engine.Schedule(
		newRespondEvent(c.Engine.CurrentTime()+c.Latency, c, req))
}

// Handle defines how the Comp handles events.
func (c *Comp) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *respondEvent:
		c.respond(e.req)
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (c *Comp) respond(req *mem.BlockRequest) {
	var rsp *mem.BlockResponse

	switch req.Kind {
	case mem.AccessRead:
		data, err := c.Storage.Read(req.Addr, req.Size)
		rsp = req.GenerateRsp(data, err)
		c.numRead++
	default:
		err := c.Storage.Write(req.Addr, req.Data)
		rsp = req.GenerateRsp(nil, err)
		c.numWrite++
	}

	if rsp.Err != nil {
		c.logger.Warn().
			Err(rsp.Err).
			Str("req", req.ID).
			Uint64("addr", req.Addr).
			Msg("memory access failed")
	}

	c.numInflight--
	tracing.EndTask(req.ID, c)
	req.Requester.RecvBlockResponse(rsp)
}

// NumRead returns the number of read requests served.
func (c *Comp) NumRead() uint64 {
	return c.numRead
}

// NumWrite returns the number of write requests served.
func (c *Comp) NumWrite() uint64 {
	return c.numWrite
}

// NumInflight returns the number of requests that are not responded yet.
func (c *Comp) NumInflight() int {
	return c.numInflight
}
