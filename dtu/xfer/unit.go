package xfer

import (
	"fmt"
	"log"
	"reflect"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/mem"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/tracing"
	"github.com/sarchlab/dtusim/vm"
)

type startEvent struct {
	sim.EventBase
	req *Request
}

type processEvent struct {
	sim.EventBase
	req *Request
}

type admitEvent struct {
	sim.EventBase
}

// Stats are the counters a Unit keeps about its transfers. Aborts counts
// every aborted transfer, page faults included; PageFaultAborts counts the
// page-fault share of it.
type Stats struct {
	BytesRead       uint64
	BytesWritten    uint64
	Reads           uint64
	Writes          uint64
	Delays          uint64
	PageFaults      uint64
	PageFaultAborts uint64
	Aborts          uint64
}

// A Unit runs transfers. All its methods must be called from event handlers
// of the engine it was built with.
type Unit struct {
	*sim.ComponentBase

	engine     sim.EventScheduler
	blockSize  uint64
	translator Translator
	memory     MemoryService
	network    Network
	consumer   Consumer
	logger     zerolog.Logger
	metrics    unitMetrics

	pool     *bufferPool
	queue    *admissionQueue
	registry *abortRegistry
	bound    map[uint64]*Request

	nextID         uint64
	admitScheduled bool
	stats          Stats
}

// StartTransfer submits a transfer. It tries to get a buffer delay+1 cycles
// later and waits in the admission queue if none is free.
func (u *Unit) StartTransfer(req *Request, delay sim.VTimeInCycle) error {
	if err := u.validate(req); err != nil {
		return err
	}

	now := u.engine.CurrentTime()

	u.nextID++
	req.id = u.nextID
	req.state = Created
	req.startTime = now
	req.taskID = sim.GetIDGenerator().Generate()

	if req.kind.IsWrite() {
		u.stats.BytesWritten += req.size
	} else {
		u.stats.BytesRead += req.size
	}

	u.metrics.addBytes(req.kind, req.size)

	parentID := ""
	if req.nocReq != nil {
		parentID = req.nocReq.ID
	}

	tracing.StartTask(req.taskID, parentID, u, "xfer", req.kind.String())

	u.logger.Debug().
		Uint64("xfer", req.id).
		Stringer("kind", req.kind).
		Uint64("addr", req.localAddr).
		Uint64("size", req.size).
		Stringer("flags", req.flags).
		Msg("transfer submitted")

	u.engine.Schedule(&startEvent{
		EventBase: sim.MakeEventBase(now+delay+1, u),
		req:       req,
	})

	return nil
}

func (u *Unit) validate(req *Request) error {
	if req.id != 0 {
		return errors.Wrapf(ErrAlreadySubmitted, "transfer %d", req.id)
	}

	if req.size == 0 {
		return errors.Wrapf(ErrEmptyTransfer, "%s @ %#x", req.kind, req.localAddr)
	}

	if req.kind.IsWrite() && uint64(len(req.data)) != req.size {
		return errors.Wrapf(ErrInvalidRequest,
			"%s of %d bytes carries %d bytes of data",
			req.kind, req.size, len(req.data))
	}

	if req.kind.IsWrite() && len(req.header) > 0 {
		return errors.Wrapf(ErrInvalidRequest,
			"%s cannot carry a message header", req.kind)
	}

	if req.kind.IsRemote() && req.nocReq == nil {
		return errors.Wrapf(ErrInvalidRequest,
			"%s needs a network request", req.kind)
	}

	need := req.size + uint64(len(req.header))
	if need > u.pool.capacity() {
		return errors.Wrapf(ErrTransferTooLarge,
			"%d bytes, buffer capacity %d", need, u.pool.capacity())
	}

	return nil
}

// Handle defines how the Unit handles events.
func (u *Unit) Handle(e sim.Event) error {
	switch e := e.(type) {
	case *startEvent:
		u.tryStart(e.req)
	case *processEvent:
		if e.req.state == Transferring && !e.req.blockInflight {
			u.process(e.req)
		}
	case *admitEvent:
		u.admitQueued()
	default:
		log.Panicf("cannot handle event of %s", reflect.TypeOf(e))
	}

	return nil
}

func (u *Unit) tryStart(req *Request) {
	if u.allocate(req) {
		u.onBound(req)
		return
	}

	req.state = AwaitingBuffer
	u.stats.Delays++
	u.metrics.incDelays()
	u.queue.push(req)

	tracing.TagTask(req.taskID, u, "delayed", "")
	u.logger.Debug().
		Uint64("xfer", req.id).
		Int("queued", u.queue.len()).
		Msg("no free buffer, transfer delayed")
}

func (u *Unit) firstBuffer(req *Request) int {
	if u.translator == nil || req.flags&(FlagNoTranslate|FlagNoPageFault) != 0 {
		return 0
	}

	return 1
}

func (u *Unit) allocate(req *Request) bool {
	buf := u.pool.allocate(req.id, req.flags&FlagMsgRecv != 0, u.firstBuffer(req))
	if buf == nil {
		return false
	}

	req.bufIdx = buf.id
	u.bound[req.id] = req
	u.metrics.setBusyBuffers(u.pool.numBusy())

	return true
}

func (u *Unit) onBound(req *Request) {
	buf := u.pool.get(req.bufIdx)

	u.logger.Debug().
		Uint64("xfer", req.id).
		Int("buf", buf.id).
		Msg("buffer bound")

	if u.registry.consume(req.origin) {
		u.abort(req, AbortCauseRegistry)
		return
	}

	if u.translator != nil && req.flags&FlagNoTranslate == 0 {
		req.bridge = newTranslationBridge(u, req.id, u.translator)
	}

	switch {
	case len(req.header) > 0:
		copy(buf.bytes, req.header)
		buf.offset = uint64(len(req.header))
		req.flags |= FlagMessage
	case req.kind.IsWrite():
		copy(buf.bytes, req.data)
	}

	req.state = Transferring

	u.engine.Schedule(&processEvent{
		EventBase: sim.MakeEventBase(u.engine.CurrentTime()+1, u),
		req:       req,
	})
}

func (u *Unit) accessKind(req *Request) vm.AccessKind {
	access := vm.AccessRead
	if req.kind.IsWrite() {
		access = vm.AccessWrite
	}

	if !req.kind.IsRemote() {
		access |= vm.AccessInternal
	}

	if req.flags&FlagNoPageFault != 0 {
		access |= vm.AccessNoFault
	}

	return access
}

// process moves the next block, translating its address first if needed.
func (u *Unit) process(req *Request) {
	if req.bridge == nil {
		u.issueBlock(req, req.localAddr)
		return
	}

	access := u.accessKind(req)

	phys, res := u.translator.Lookup(req.localAddr, access)
	if res == vm.Hit {
		u.issueBlock(req, phys)
		return
	}

	if res == vm.PageFault {
		u.stats.PageFaults++
		u.metrics.incPagefaults()
		tracing.TagTask(req.taskID, u, "pagefault", fmt.Sprintf("%#x", req.localAddr))

		if req.flags&FlagNoPageFault != 0 {
			u.pagefault(req)
			return
		}
	}

	u.logger.Debug().
		Uint64("xfer", req.id).
		Stringer("lookup", res).
		Uint64("addr", req.localAddr).
		Msg("translating")

	req.state = Translating
	req.bridge.start(req.localAddr, access)
}

func (u *Unit) translateDone(id uint64, success bool, phys uint64) {
	req, ok := u.bound[id]
	if !ok || req.state != Translating {
		return
	}

	if !success {
		u.pagefault(req)
		return
	}

	u.issueBlock(req, phys)
}

func (u *Unit) pagefault(req *Request) {
	u.stats.Aborts++
	u.stats.PageFaultAborts++
	u.metrics.incAborts(AbortCausePageFault)

	u.logger.Debug().
		Uint64("xfer", req.id).
		Uint64("addr", req.localAddr).
		Msg("translation failed, aborting transfer")

	req.setResult(protocol.ErrPageFault)
	req.state = Aborted
	req.remaining = 0
	u.finalize(req)
}

func (u *Unit) issueBlock(req *Request, phys uint64) {
	buf := u.pool.get(req.bufIdx)

	inBlock := req.localAddr & (u.blockSize - 1)
	size := min(req.remaining, u.blockSize-inBlock)

	var blk *mem.BlockRequest
	if req.kind.IsWrite() {
		if buf.offset+size > uint64(len(buf.bytes)) {
			log.Panicf("buffer %d overrun: %d+%d bytes", buf.id, buf.offset, size)
		}

		data := make([]byte, size)
		copy(data, buf.bytes[buf.offset:buf.offset+size])
		buf.offset += size

		blk = mem.NewWriteBlockRequest(phys, data, buf.id, u)
	} else {
		blk = mem.NewReadBlockRequest(phys, size, buf.id, u)
	}

	u.logger.Debug().
		Uint64("xfer", req.id).
		Int("buf", buf.id).
		Uint64("addr", req.localAddr).
		Uint64("phys", phys).
		Uint64("size", size).
		Msg("block issued")

	req.state = Transferring
	req.localAddr += size
	req.remaining -= size
	req.blockInflight = true

	u.memory.IssueBlockRequest(blk)
}

// RecvBlockResponse receives the response of a block request issued by the
// unit.
func (u *Unit) RecvBlockResponse(rsp *mem.BlockResponse) {
	buf := u.pool.get(rsp.BufID)

	req, ok := u.bound[buf.owner]
	if buf.isFree() || !ok || !req.blockInflight {
		log.Panicf("block response to buffer %d without a block in flight",
			rsp.BufID)
	}

	req.blockInflight = false

	if req.state == Aborted {
		u.finalize(req)
		return
	}

	if rsp.Err != nil {
		u.logger.Warn().
			Err(rsp.Err).
			Uint64("xfer", req.id).
			Msg("block request failed")
		u.abort(req, AbortCauseMemory)

		return
	}

	if !req.kind.IsWrite() {
		n := uint64(len(rsp.Data))
		if buf.offset+n > uint64(len(buf.bytes)) {
			log.Panicf("buffer %d overrun: %d+%d bytes", buf.id, buf.offset, n)
		}

		copy(buf.bytes[buf.offset:], rsp.Data)
		buf.offset += n
	}

	if req.remaining == 0 {
		u.finalize(req)
		return
	}

	u.process(req)
}

// finalize runs the kind-specific completion, reports the transfer as
// finished, releases its buffer, and admits the next waiting transfer.
func (u *Unit) finalize(req *Request) {
	buf := u.pool.get(req.bufIdx)

	req.state = Finalizing
	finalizers[req.kind](u, req, buf)

	duration := uint64(u.engine.CurrentTime() - req.startTime)
	u.metrics.observeDuration(req.kind, duration)

	if req.kind.IsWrite() {
		u.stats.Writes++
	} else {
		u.stats.Reads++
	}

	req.state = Done

	if !req.result.Ok() {
		tracing.TagTask(req.taskID, u, "result", req.result.Error())
	}

	tracing.EndTask(req.taskID, u)

	u.logger.Debug().
		Uint64("xfer", req.id).
		Int("buf", buf.id).
		Stringer("result", req.result).
		Uint64("cycles", duration).
		Msg("transfer done")

	u.consumer.TransferFinished(req)

	delete(u.bound, req.id)
	req.bufIdx = -1
	req.bridge = nil
	u.pool.release(buf)
	u.metrics.setBusyBuffers(u.pool.numBusy())

	u.scheduleAdmit()
}

func (u *Unit) scheduleAdmit() {
	if u.queue.len() == 0 || u.admitScheduled {
		return
	}

	u.admitScheduled = true
	u.engine.Schedule(&admitEvent{
		EventBase: sim.MakeEventBase(u.engine.CurrentTime()+1, u),
	})
}

// admitQueued binds buffers to waiting transfers in arrival order. It stops
// at the first transfer that cannot get a buffer.
func (u *Unit) admitQueued() {
	u.admitScheduled = false

	for u.queue.len() > 0 {
		head := u.queue.peek()
		if !u.allocate(head) {
			return
		}

		u.queue.pop()
		u.onBound(head)
	}
}

// SetConsumer replaces the consumer of the unit.
func (u *Unit) SetConsumer(c Consumer) {
	u.consumer = c
}

// Stats returns the counters of the unit.
func (u *Unit) Stats() Stats {
	return u.stats
}

// BlockSize returns the block size of the unit.
func (u *Unit) BlockSize() uint64 {
	return u.blockSize
}

// BufferSize returns the capacity of each buffer.
func (u *Unit) BufferSize() uint64 {
	return u.pool.capacity()
}

// NumBuffers returns the number of buffers.
func (u *Unit) NumBuffers() int {
	return u.pool.size()
}

// BufferStatus describes a buffer and the transfer that owns it. It is the
// JSON shape the monitoring API serves for each buffer.
type BufferStatus struct {
	Index     int    `json:"index"`
	Owner     uint64 `json:"owner"`
	Kind      string `json:"kind,omitempty"`
	State     string `json:"state,omitempty"`
	Offset    uint64 `json:"offset"`
	Remaining uint64 `json:"remaining"`
}

// Buffers reports the status of all the buffers.
func (u *Unit) Buffers() []BufferStatus {
	l := make([]BufferStatus, u.pool.size())
	for i := range l {
		buf := u.pool.get(i)
		l[i] = BufferStatus{Index: i, Owner: buf.owner, Offset: buf.offset}

		if req, ok := u.bound[buf.owner]; ok {
			l[i].Kind = req.kind.String()
			l[i].State = req.state.String()
			l[i].Remaining = req.remaining
		}
	}

	return l
}

// QueuedIDs returns the ids of the transfers waiting for a buffer, oldest
// first.
func (u *Unit) QueuedIDs() []uint64 {
	return u.queue.ids()
}

// PendingAborts returns the origins whose next transfer will be aborted.
func (u *Unit) PendingAborts() []protocol.VPEID {
	return u.registry.list()
}
