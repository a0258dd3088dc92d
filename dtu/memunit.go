package dtu

import (
	"github.com/pkg/errors"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/dtu/xfer"
)

// memUnit turns commands and network requests into transfers.
type memUnit struct {
	dev *Device
}

func (m *memUnit) xferFlags(cmd *command) xfer.Flags {
	if cmd.Flags&CmdNoPageFault != 0 {
		return xfer.FlagNoPageFault
	}

	return 0
}

func (m *memUnit) nocFlags(cmd *command) protocol.NocFlags {
	if cmd.Flags&CmdNoPageFault != 0 {
		return protocol.NocNoPageFault
	}

	return 0
}

func (m *memUnit) chunkSize(cmd *command) uint64 {
	return min(m.dev.maxPacketSize, cmd.Size-cmd.done)
}

// startRead asks the target node for the first part of the data.
func (m *memUnit) startRead(cmd *command) error {
	ep, err := m.dev.eps.memory(cmd.EP)
	if err != nil {
		return err
	}

	if _, err := ep.window(cmd.Offset, cmd.Size, PermRead); err != nil {
		return err
	}

	cmd.mem = *ep
	m.dev.stats.ReadBytes += cmd.Size

	if cmd.Size > 0 {
		m.sendReadRequest(cmd)
	}

	return nil
}

func (m *memUnit) sendReadRequest(cmd *command) {
	cmd.chunk = m.chunkSize(cmd)
	dst, _ := cmd.mem.window(cmd.Offset+cmd.done, cmd.chunk, PermRead)

	m.dev.logger.Debug().
		Stringer("dst", dst).
		Uint64("local", cmd.LocalAddr+cmd.done).
		Uint64("size", cmd.chunk).
		Msg("read request")

	req := protocol.NewNocRequest(protocol.NocReadReq, m.dev.node, dst,
		cmd.chunk, nil, cmd.mem.VPE, m.nocFlags(cmd))
	m.dev.sendNocRequest(req)
}

// readComplete writes the data of a read response into local memory.
func (m *memUnit) readComplete(cmd *command, rsp *protocol.NocResponse) {
	if !rsp.Result.Ok() {
		m.dev.finish(rsp.Result)
		return
	}

	size := uint64(len(rsp.Data))
	flags := m.xferFlags(cmd)
	if cmd.done+size >= cmd.Size {
		flags |= xfer.FlagLast
	}

	req := xfer.MakeRequestBuilder().
		WithKind(xfer.LocalWrite).
		WithFlags(flags).
		WithLocalAddr(cmd.LocalAddr + cmd.done).
		WithSize(size).
		WithData(rsp.Data).
		WithOrigin(cmd.mem.VPE).
		Build()
	cmd.done += size

	m.startTransfer(req)
}

// readContinue requests the next part of a read once the previous part is
// in local memory.
func (m *memUnit) readContinue(cmd *command) {
	m.sendReadRequest(cmd)
}

// startWrite moves the first part of the data out of local memory.
func (m *memUnit) startWrite(cmd *command) error {
	ep, err := m.dev.eps.memory(cmd.EP)
	if err != nil {
		return err
	}

	if _, err := ep.window(cmd.Offset, cmd.Size, PermWrite); err != nil {
		return err
	}

	cmd.mem = *ep
	m.dev.stats.WrittenBytes += cmd.Size

	if cmd.Size > 0 {
		m.startWriteTransfer(cmd)
	}

	return nil
}

func (m *memUnit) startWriteTransfer(cmd *command) {
	cmd.chunk = m.chunkSize(cmd)
	dst, _ := cmd.mem.window(cmd.Offset+cmd.done, cmd.chunk, PermWrite)

	req := xfer.MakeRequestBuilder().
		WithKind(xfer.LocalRead).
		WithFlags(m.xferFlags(cmd)).
		WithLocalAddr(cmd.LocalAddr + cmd.done).
		WithSize(cmd.chunk).
		WithRemoteAddr(dst).
		WithOrigin(cmd.mem.VPE).
		Build()

	m.startTransfer(req)
}

// writeComplete finishes the command on an error or after the last part,
// and starts the next part otherwise.
func (m *memUnit) writeComplete(cmd *command, rsp *protocol.NocResponse) {
	if !rsp.Result.Ok() || cmd.Op == CmdSend {
		m.dev.finish(rsp.Result)
		return
	}

	cmd.done += cmd.chunk
	if cmd.done >= cmd.Size {
		m.dev.finish(protocol.ErrNone)
		return
	}

	m.startWriteTransfer(cmd)
}

// sendMessage moves the message out of local memory with the header in
// front of it.
func (m *memUnit) sendMessage(cmd *command) error {
	ep, err := m.dev.eps.sender(cmd.EP)
	if err != nil {
		return err
	}

	if cmd.Size == 0 {
		return errors.Wrap(ErrInvalidCommand, "empty message")
	}

	total := cmd.Size + protocol.HeaderSize
	if total > ep.MaxMsgSize || total > m.dev.maxPacketSize {
		return errors.Wrapf(ErrMsgTooLarge, "%d bytes with header", total)
	}

	header := protocol.MessageHeader{
		SenderNode: uint16(m.dev.node),
		SenderEP:   uint8(cmd.EP),
		ReplyEP:    uint8(cmd.ReplyEP),
		Length:     uint16(cmd.Size),
		Label:      ep.Label,
		ReplyLabel: cmd.Label,
	}

	m.dev.stats.WrittenBytes += cmd.Size
	cmd.chunk = cmd.Size

	req := xfer.MakeRequestBuilder().
		WithKind(xfer.LocalRead).
		WithFlags(m.xferFlags(cmd)).
		WithLocalAddr(cmd.LocalAddr).
		WithSize(cmd.Size).
		WithHeader(header.Bytes()).
		WithRemoteAddr(protocol.NocAddr{
			Node:   ep.TargetNode,
			Offset: uint64(ep.TargetEP),
		}).
		WithOrigin(ep.VPE).
		Build()

	m.startTransfer(req)

	return nil
}

func (m *memUnit) startTransfer(req *xfer.Request) {
	if err := m.dev.xfer.StartTransfer(req, 0); err != nil {
		m.dev.logger.Warn().Err(err).Msg("cannot start transfer")
		m.dev.finish(protocol.ErrAbort)
	}
}

// recvFromNoc serves a request of another node.
func (m *memUnit) recvFromNoc(req *protocol.NocRequest) {
	dev := m.dev

	size := req.Size
	if req.Type.IsWrite() {
		size = uint64(len(req.Data))
	}

	dev.stats.ReceivedBytes += size

	if req.VPE != dev.vpe {
		dev.stats.WrongVPE++
		dev.logger.Debug().
			Uint16("vpe", uint16(req.VPE)).
			Uint16("running", uint16(dev.vpe)).
			Msg("request for another VPE")

		m.reject(req, protocol.ErrDestinationGone)

		return
	}

	var flags xfer.Flags
	if req.Flags&protocol.NocNoPageFault != 0 {
		flags |= xfer.FlagNoPageFault
	}

	kind := xfer.RemoteRead
	addr := req.Addr.Offset

	switch req.Type {
	case protocol.NocWriteReq:
		kind = xfer.RemoteWrite
	case protocol.NocMessage:
		slot, err := m.reserveSlot(req)
		if err != nil {
			dev.stats.MsgsDropped++
			dev.logger.Debug().Err(err).Msg("message dropped")
			m.reject(req, protocol.ErrAbort)

			return
		}

		kind = xfer.RemoteWrite
		flags |= xfer.FlagMsgRecv
		addr = slot
	}

	xreq := xfer.MakeRequestBuilder().
		WithKind(kind).
		WithFlags(flags).
		WithLocalAddr(addr).
		WithSize(size).
		WithNocRequest(req).
		WithOrigin(req.VPE).
		Build()

	if err := dev.xfer.StartTransfer(xreq, 0); err != nil {
		dev.logger.Warn().Err(err).Msg("cannot serve request")

		if flags&xfer.FlagMsgRecv != 0 {
			dev.eps.receiverOf(addr).release(addr)
		}

		m.reject(req, protocol.ErrAbort)
	}
}

func (m *memUnit) reserveSlot(req *protocol.NocRequest) (uint64, error) {
	rep, err := m.dev.eps.receiver(int(req.Addr.Offset))
	if err != nil {
		return 0, err
	}

	header, err := protocol.DecodeMessageHeader(req.Data)
	if err != nil {
		return 0, err
	}

	if int(header.Length)+protocol.HeaderSize != len(req.Data) {
		return 0, errors.Errorf("header announces %d bytes, message has %d",
			header.Length, len(req.Data)-protocol.HeaderSize)
	}

	if uint64(len(req.Data)) > rep.SlotSize {
		return 0, errors.Wrapf(ErrMsgTooLarge,
			"%d bytes for slots of %d bytes", len(req.Data), rep.SlotSize)
	}

	addr, ok := rep.reserve()
	if !ok {
		return 0, errors.New("no free slot")
	}

	return addr, nil
}

func (m *memUnit) reject(req *protocol.NocRequest, result protocol.Error) {
	if req.NeedsResponse {
		m.dev.SendNocResponse(req, result, nil)
	}
}
