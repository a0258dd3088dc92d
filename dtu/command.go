package dtu

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/sim"
)

// Command errors.
var (
	ErrBusy           = errors.New("a command is in progress")
	ErrMsgTooLarge    = errors.New("message too large")
	ErrInvalidCommand = errors.New("invalid command")
	ErrNoMessage      = errors.New("no message")
)

// Opcode selects what a command does.
type Opcode uint8

// The command opcodes.
const (
	CmdRead Opcode = iota
	CmdWrite
	CmdSend
)

func (o Opcode) String() string {
	switch o {
	case CmdRead:
		return "read"
	case CmdWrite:
		return "write"
	case CmdSend:
		return "send"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(o))
	}
}

// CmdFlags modify how a command runs.
type CmdFlags uint8

// CmdNoPageFault fails the command on a page fault instead of resolving it.
const CmdNoPageFault CmdFlags = 1

// A Command is issued by the local core. Reads copy Size bytes at Offset of
// the memory endpoint EP into LocalAddr, writes copy them the other way.
// Sends transfer Size bytes at LocalAddr as a message through the send
// endpoint EP.
type Command struct {
	Op        Opcode
	EP        int
	LocalAddr uint64
	Size      uint64
	Offset    uint64
	Flags     CmdFlags
	ReplyEP   int
	Label     uint64
}

type command struct {
	Command

	taskID    string
	startTime sim.VTimeInCycle
	mem       MemEndpoint
	done      uint64
	chunk     uint64
	pending   string
}

// HookPosCommandDone marks the completion of a command. The item is a
// CommandDone.
var HookPosCommandDone = &sim.HookPos{Name: "CommandDone"}

// CommandDone reports the outcome of a command.
type CommandDone struct {
	Command Command
	Result  protocol.Error
	Cycles  sim.VTimeInCycle
}
