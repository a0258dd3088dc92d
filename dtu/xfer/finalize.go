package xfer

import "github.com/sarchlab/dtusim/dtu/protocol"

type finalizeFunc func(u *Unit, req *Request, buf *buffer)

// finalizers holds the kind-specific completion of transfers. Each entry
// handles both the success and the error outcome.
var finalizers = [numKinds]finalizeFunc{
	RemoteRead:  finalizeRemote,
	RemoteWrite: finalizeRemote,
	LocalRead:   finalizeLocalRead,
	LocalWrite:  finalizeLocalWrite,
}

// finalizeLocalRead sends the buffered data to the remote address.
func finalizeLocalRead(u *Unit, req *Request, buf *buffer) {
	if !req.result.Ok() {
		u.consumer.CommandFinished(req.result)
		return
	}

	pktType := protocol.NocWriteReq
	if req.flags&FlagMessage != 0 {
		pktType = protocol.NocMessage
	}

	var flags protocol.NocFlags
	if req.flags&FlagNoPageFault != 0 {
		flags |= protocol.NocNoPageFault
	}

	payload := make([]byte, buf.offset)
	copy(payload, buf.bytes[:buf.offset])

	u.network.SendNocRequest(pktType, req.remoteAddr, payload, req.origin, flags)
}

// finalizeLocalWrite completes the command with its last part and announces
// messages written into a receive buffer.
func finalizeLocalWrite(u *Unit, req *Request, _ *buffer) {
	if !req.result.Ok() {
		u.consumer.CommandFinished(req.result)
		return
	}

	if req.flags&FlagMsgRecv != 0 {
		u.consumer.MessageReceived(req.startAddr)
	}

	if req.flags&FlagLast != 0 {
		u.consumer.CommandFinished(protocol.ErrNone)
	}
}

// finalizeRemote answers the network request that started the transfer.
func finalizeRemote(u *Unit, req *Request, buf *buffer) {
	if req.result.Ok() && req.flags&FlagMsgRecv != 0 {
		u.consumer.MessageReceived(req.startAddr)
	}

	if req.nocReq == nil || !req.nocReq.NeedsResponse {
		return
	}

	var payload []byte
	if req.kind == RemoteRead && req.result.Ok() {
		payload = make([]byte, buf.offset)
		copy(payload, buf.bytes[:buf.offset])
	}

	u.network.SendNocResponse(req.nocReq, req.result, payload)
}
