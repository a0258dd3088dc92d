// Package xfer implements the transfer unit of a DTU. The unit stages
// transfers between local memory and the network through a small pool of
// buffers, one block at a time, translating local addresses on the way.
package xfer

import (
	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/mem"
	"github.com/sarchlab/dtusim/vm"
)

// MemoryService serves the block requests of the unit. Responses go to the
// requester of each block request and carry the buffer id back.
type MemoryService interface {
	IssueBlockRequest(req *mem.BlockRequest)
}

// Translator resolves local virtual addresses into physical addresses.
type Translator interface {
	Lookup(vAddr uint64, access vm.AccessKind) (uint64, vm.LookupResult)
	StartTranslate(vAddr uint64, access vm.AccessKind, cb vm.TranslationCallback)
	AbortTranslate(cb vm.TranslationCallback)
}

// Network sends what finished transfers produce.
type Network interface {
	SendNocRequest(
		t protocol.NocPacketType,
		dst protocol.NocAddr,
		payload []byte,
		vpe protocol.VPEID,
		flags protocol.NocFlags,
	)
	SendNocResponse(
		req *protocol.NocRequest,
		result protocol.Error,
		payload []byte,
	)
}

// Consumer is notified about the outcome of transfers.
type Consumer interface {
	// TransferFinished is called exactly once per submitted transfer, after
	// its kind-specific completion and before its buffer is released.
	TransferFinished(req *Request)

	// MessageReceived is called when a message receive completes.
	MessageReceived(localOffset uint64)

	// CommandFinished is called when a transfer completes the command that
	// started it, or fails it.
	CommandFinished(result protocol.Error)
}
