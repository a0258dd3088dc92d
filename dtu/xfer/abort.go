package xfer

import (
	"fmt"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/tracing"
)

// AbortKind selects which transfers an abort request targets.
type AbortKind uint8

// The kinds of abort requests.
const (
	// AbortLocal aborts every bound transfer started by a local command.
	AbortLocal AbortKind = iota
	// AbortRemote aborts the bound transfers started by the network.
	AbortRemote
	// AbortCancelPending forgets a remembered abort.
	AbortCancelPending
)

func (k AbortKind) String() string {
	switch k {
	case AbortLocal:
		return "local"
	case AbortRemote:
		return "remote"
	case AbortCancelPending:
		return "cancel-pending"
	default:
		return fmt.Sprintf("AbortKind(%d)", uint8(k))
	}
}

// AbortCause tells why a transfer was aborted.
type AbortCause uint8

// The abort causes.
const (
	AbortCauseLocal AbortCause = iota
	AbortCauseRemote
	AbortCauseRegistry
	AbortCausePageFault
	AbortCauseMemory
)

func (c AbortCause) String() string {
	switch c {
	case AbortCauseLocal:
		return "local"
	case AbortCauseRemote:
		return "remote"
	case AbortCauseRegistry:
		return "registry"
	case AbortCausePageFault:
		return "pagefault"
	case AbortCauseMemory:
		return "memory"
	default:
		return fmt.Sprintf("AbortCause(%d)", uint8(c))
	}
}

// RequestAbort aborts the bound transfers selected by kind and returns how
// many transfers were aborted, or 1 if a remembered abort was cancelled.
// When an abort for a specific origin matches no bound transfer, not even an
// already aborted one, the origin is remembered and its next transfer is
// aborted as soon as it gets a buffer.
// Transfers that still wait for a buffer are never aborted here.
func (u *Unit) RequestAbort(
	kind AbortKind,
	origin protocol.VPEID,
	matchAll bool,
) int {
	if kind == AbortCancelPending {
		if u.registry.consume(origin) {
			return 1
		}

		return 0
	}

	var victims []*Request

	for i := 0; i < u.pool.size(); i++ {
		req, ok := u.bound[u.pool.get(i).owner]
		if !ok {
			continue
		}

		switch kind {
		case AbortLocal:
			if !req.kind.IsRemote() {
				victims = append(victims, req)
			}
		case AbortRemote:
			if req.kind.IsRemote() && (matchAll || req.origin == origin) {
				victims = append(victims, req)
			}
		}
	}

	cause := AbortCauseLocal
	if kind == AbortRemote {
		cause = AbortCauseRemote
	}

	count := 0
	for _, req := range victims {
		if u.abort(req, cause) {
			count++
		}
	}

	if len(victims) == 0 && !matchAll {
		u.registry.register(origin)
		u.logger.Debug().
			Uint16("origin", uint16(origin)).
			Stringer("kind", kind).
			Msg("nothing to abort, abort remembered")
	}

	return count
}

// abort stops a transfer. The transfer finishes right away unless a block
// request is in flight, in which case it finishes when the response arrives.
func (u *Unit) abort(req *Request, cause AbortCause) bool {
	if req.state == Aborted || req.state == Finalizing || req.state == Done {
		return false
	}

	req.setResult(protocol.ErrAbort)
	req.state = Aborted
	req.remaining = 0

	if req.bridge != nil {
		req.bridge.abort()
	}

	u.stats.Aborts++
	u.metrics.incAborts(cause)
	tracing.TagTask(req.taskID, u, "abort", cause.String())

	u.logger.Debug().
		Uint64("xfer", req.id).
		Stringer("cause", cause).
		Bool("block_inflight", req.blockInflight).
		Msg("transfer aborted")

	if !req.blockInflight {
		u.finalize(req)
	}

	return true
}
