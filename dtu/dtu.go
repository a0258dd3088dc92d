// Package dtu models a data transfer unit: the device that moves data between
// the local memory of a node and the other nodes of the network on behalf of
// the local core.
package dtu

import (
	"log"
	"reflect"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/dtu/xfer"
	"github.com/sarchlab/dtusim/noc"
	"github.com/sarchlab/dtusim/sim"
	"github.com/sarchlab/dtusim/tracing"
)

// Stats are the counters a Device keeps.
type Stats struct {
	Commands      uint64
	CommandErrors uint64
	ReadBytes     uint64
	WrittenBytes  uint64
	ReceivedBytes uint64
	WrongVPE      uint64
	MsgsReceived  uint64
	MsgsDropped   uint64
}

// A Device executes the commands of the local core and serves the requests
// of other nodes. It runs one command at a time.
type Device struct {
	*sim.ComponentBase

	engine        sim.EventScheduler
	node          noc.NodeID
	fabric        *noc.Fabric
	xfer          *xfer.Unit
	mu            *memUnit
	eps           *EndpointTable
	vpe           protocol.VPEID
	maxPacketSize uint64
	logger        zerolog.Logger

	cmd   *command
	stats Stats
}

// ExecCommand starts a command. It fails if another command is running or if
// the command does not fit its endpoint. The outcome is reported at
// HookPosCommandDone.
func (d *Device) ExecCommand(c Command) error {
	if d.cmd != nil {
		return ErrBusy
	}

	cmd := &command{
		Command:   c,
		taskID:    sim.GetIDGenerator().Generate(),
		startTime: d.engine.CurrentTime(),
	}
	d.cmd = cmd

	tracing.StartTask(cmd.taskID, "", d, "cmd", c.Op.String())

	var err error

	switch c.Op {
	case CmdRead:
		err = d.mu.startRead(cmd)
	case CmdWrite:
		err = d.mu.startWrite(cmd)
	case CmdSend:
		err = d.mu.sendMessage(cmd)
	default:
		err = errors.Wrapf(ErrInvalidCommand, "opcode %d", c.Op)
	}

	if err != nil {
		d.cmd = nil
		tracing.TagTask(cmd.taskID, d, "rejected", err.Error())
		tracing.EndTask(cmd.taskID, d)

		return errors.Wrapf(err, "%s on endpoint %d", c.Op, c.EP)
	}

	d.logger.Debug().
		Stringer("op", c.Op).
		Int("ep", c.EP).
		Uint64("local", c.LocalAddr).
		Uint64("size", c.Size).
		Msg("command started")

	if c.Size == 0 {
		d.finish(protocol.ErrNone)
	}

	return nil
}

// finish completes the running command.
func (d *Device) finish(result protocol.Error) {
	cmd := d.cmd
	if cmd == nil {
		d.logger.Warn().Stringer("result", result).Msg("no command to finish")
		return
	}

	d.cmd = nil
	d.stats.Commands++

	if !result.Ok() {
		d.stats.CommandErrors++
		tracing.TagTask(cmd.taskID, d, "result", result.Error())
	}

	tracing.EndTask(cmd.taskID, d)

	done := CommandDone{
		Command: cmd.Command,
		Result:  result,
		Cycles:  d.engine.CurrentTime() - cmd.startTime,
	}

	d.logger.Debug().
		Stringer("op", cmd.Op).
		Stringer("result", result).
		Uint64("cycles", uint64(done.Cycles)).
		Msg("command done")

	d.InvokeHook(sim.HookCtx{
		Domain: d,
		Pos:    HookPosCommandDone,
		Item:   done,
	})
}

// Busy returns true while a command is running.
func (d *Device) Busy() bool {
	return d.cmd != nil
}

// Abort aborts transfers of the device, see xfer.Unit.RequestAbort.
func (d *Device) Abort(
	kind xfer.AbortKind,
	origin protocol.VPEID,
	all bool,
) int {
	n := d.xfer.RequestAbort(kind, origin, all)

	d.logger.Debug().
		Stringer("kind", kind).
		Uint16("origin", uint16(origin)).
		Bool("all", all).
		Int("aborted", n).
		Msg("abort requested")

	return n
}

// SetVPE switches the VPE the device serves.
func (d *Device) SetVPE(vpe protocol.VPEID) {
	d.vpe = vpe
}

// VPE returns the VPE the device serves.
func (d *Device) VPE() protocol.VPEID {
	return d.vpe
}

// Node returns the network node of the device.
func (d *Device) Node() noc.NodeID {
	return d.node
}

// Endpoints returns the endpoint table of the device.
func (d *Device) Endpoints() *EndpointTable {
	return d.eps
}

// Xfer returns the transfer unit of the device.
func (d *Device) Xfer() *xfer.Unit {
	return d.xfer
}

// Stats returns the counters of the device.
func (d *Device) Stats() Stats {
	return d.stats
}

// FetchMessage returns the local address of the oldest unread message of a
// receive endpoint.
func (d *Device) FetchMessage(ep int) (uint64, error) {
	rep, err := d.eps.receiver(ep)
	if err != nil {
		return 0, err
	}

	if rep.unread.Length() == 0 {
		return 0, ErrNoMessage
	}

	slot := rep.unread.Remove().(int)

	return rep.BufAddr + uint64(slot)*rep.SlotSize, nil
}

// AckMessage frees the slot of a fetched message.
func (d *Device) AckMessage(ep int, addr uint64) error {
	rep, err := d.eps.receiver(ep)
	if err != nil {
		return err
	}

	if !rep.contains(addr) {
		return errors.Wrapf(ErrOutOfBounds, "%#x is not in endpoint %d", addr, ep)
	}

	rep.release(addr)

	return nil
}

// SendNocRequest sends what a finished local transfer produced.
func (d *Device) SendNocRequest(
	t protocol.NocPacketType,
	dst protocol.NocAddr,
	payload []byte,
	vpe protocol.VPEID,
	flags protocol.NocFlags,
) {
	req := protocol.NewNocRequest(t, d.node, dst,
		uint64(len(payload)), payload, vpe, flags)
	d.sendNocRequest(req)
}

func (d *Device) sendNocRequest(req *protocol.NocRequest) {
	if d.cmd != nil {
		d.cmd.pending = req.ID
	}

	if err := d.fabric.Send(req); err != nil {
		d.logger.Warn().Err(err).Msg("cannot send request")
		d.finish(protocol.ErrDestinationGone)
	}
}

// SendNocResponse answers a request of another node. Errors are reported as
// ErrDestinationGone while the device serves no VPE.
func (d *Device) SendNocResponse(
	req *protocol.NocRequest,
	result protocol.Error,
	payload []byte,
) {
	if !result.Ok() && d.vpe == protocol.InvalidVPE {
		result = protocol.ErrDestinationGone
	}

	rsp := req.GenerateRsp(result, payload)
	if err := d.fabric.Send(rsp); err != nil {
		d.logger.Warn().Err(err).Msg("cannot send response")
	}
}

// RecvMsg receives the messages the network delivers to the device.
func (d *Device) RecvMsg(msg noc.Msg) {
	switch msg := msg.(type) {
	case *protocol.NocRequest:
		d.mu.recvFromNoc(msg)
	case *protocol.NocResponse:
		d.recvResponse(msg)
	default:
		log.Panicf("cannot handle message of %s", reflect.TypeOf(msg))
	}
}

func (d *Device) recvResponse(rsp *protocol.NocResponse) {
	cmd := d.cmd
	if cmd == nil || cmd.pending != rsp.RespondTo {
		d.logger.Debug().Str("rsp", rsp.ID).Msg("response without command")
		return
	}

	cmd.pending = ""

	if rsp.Type == protocol.NocReadReq {
		d.mu.readComplete(cmd, rsp)
		return
	}

	d.mu.writeComplete(cmd, rsp)
}

// TransferFinished continues multi-part reads and frees the receive slots of
// failed message receives.
func (d *Device) TransferFinished(req *xfer.Request) {
	if req.Flags()&xfer.FlagMsgRecv != 0 && !req.Result().Ok() {
		if rep := d.eps.receiverOf(req.StartAddr()); rep != nil {
			rep.release(req.StartAddr())
		}

		return
	}

	if req.Kind() == xfer.LocalWrite && req.Result().Ok() &&
		req.Flags()&xfer.FlagLast == 0 && d.cmd != nil {
		d.mu.readContinue(d.cmd)
	}
}

// MessageReceived makes a received message available to FetchMessage.
func (d *Device) MessageReceived(localOffset uint64) {
	rep := d.eps.receiverOf(localOffset)
	if rep == nil {
		log.Panicf("message at %#x outside of all receive endpoints",
			localOffset)
	}

	rep.unread.Add(rep.slot(localOffset))
	d.stats.MsgsReceived++

	d.logger.Debug().Uint64("addr", localOffset).Msg("message received")
}

// CommandFinished completes the running command.
func (d *Device) CommandFinished(result protocol.Error) {
	d.finish(result)
}
