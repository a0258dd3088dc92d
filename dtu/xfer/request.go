package xfer

import (
	"fmt"
	"strings"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/sim"
)

// Kind tells where the data of a transfer comes from and where it goes.
type Kind uint8

// The kinds of transfers.
const (
	// RemoteRead serves a read request from the network out of local memory.
	RemoteRead Kind = iota
	// RemoteWrite serves a write request from the network into local memory.
	RemoteWrite
	// LocalRead reads local memory and sends the data over the network.
	LocalRead
	// LocalWrite writes data received from the network into local memory.
	LocalWrite

	numKinds
)

// IsWrite returns true if the transfer writes local memory.
func (k Kind) IsWrite() bool {
	return k == RemoteWrite || k == LocalWrite
}

// IsRemote returns true if the transfer is originated by the network.
func (k Kind) IsRemote() bool {
	return k == RemoteRead || k == RemoteWrite
}

func (k Kind) String() string {
	switch k {
	case RemoteRead:
		return "remote-read"
	case RemoteWrite:
		return "remote-write"
	case LocalRead:
		return "local-read"
	case LocalWrite:
		return "local-write"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Flags modify how a transfer is staged and finished.
type Flags uint8

// The transfer flags.
const (
	// FlagMessage sends the buffered data as a message.
	FlagMessage Flags = 1 << iota
	// FlagLast marks the final part of a multi-part local write.
	FlagLast
	// FlagMsgRecv marks a message receive. Only one can hold a buffer.
	FlagMsgRecv
	// FlagNoPageFault aborts the transfer instead of resolving page faults.
	FlagNoPageFault
	// FlagNoTranslate uses the local address as a physical address.
	FlagNoTranslate
)

func (f Flags) String() string {
	names := []string{"msg", "last", "recv", "nopf", "notrans"}

	var set []string
	for i, n := range names {
		if f&(1<<i) != 0 {
			set = append(set, n)
		}
	}

	return "[" + strings.Join(set, ",") + "]"
}

// State is the stage of the life cycle a transfer is in.
type State uint8

// The transfer states.
const (
	Created State = iota
	AwaitingBuffer
	Translating
	Transferring
	Aborted
	Finalizing
	Done
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case AwaitingBuffer:
		return "awaiting-buffer"
	case Translating:
		return "translating"
	case Transferring:
		return "transferring"
	case Aborted:
		return "aborted"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// A Request describes one transfer and tracks its progress. Requests are
// created with a RequestBuilder and only mutated by the Unit that runs them.
type Request struct {
	id    uint64
	kind  Kind
	flags Flags

	startAddr  uint64
	localAddr  uint64
	remaining  uint64
	size       uint64
	remoteAddr protocol.NocAddr
	header     []byte
	data       []byte
	nocReq     *protocol.NocRequest
	origin     protocol.VPEID

	result protocol.Error
	state  State

	bufIdx        int
	blockInflight bool
	bridge        *translationBridge
	startTime     sim.VTimeInCycle
	taskID        string
}

// ID returns the id the unit assigned at submission, or 0 before that.
func (r *Request) ID() uint64 {
	return r.id
}

// Kind returns the kind of the transfer.
func (r *Request) Kind() Kind {
	return r.kind
}

// Flags returns the flags of the transfer.
func (r *Request) Flags() Flags {
	return r.flags
}

// StartAddr returns the local address the transfer starts at.
func (r *Request) StartAddr() uint64 {
	return r.startAddr
}

// LocalAddr returns the local address of the next block.
func (r *Request) LocalAddr() uint64 {
	return r.localAddr
}

// Remaining returns the number of bytes not yet transferred.
func (r *Request) Remaining() uint64 {
	return r.remaining
}

// Size returns the total number of bytes of the transfer.
func (r *Request) Size() uint64 {
	return r.size
}

// RemoteAddr returns where a local read sends its data.
func (r *Request) RemoteAddr() protocol.NocAddr {
	return r.remoteAddr
}

// NocRequest returns the network request that originated the transfer.
func (r *Request) NocRequest() *protocol.NocRequest {
	return r.nocReq
}

// Origin returns the execution context the transfer belongs to.
func (r *Request) Origin() protocol.VPEID {
	return r.origin
}

// Result returns the latched result code.
func (r *Request) Result() protocol.Error {
	return r.result
}

// State returns the current state of the transfer.
func (r *Request) State() State {
	return r.state
}

// setResult latches the first error.
func (r *Request) setResult(e protocol.Error) {
	if r.result == protocol.ErrNone {
		r.result = e
	}
}

// RequestBuilder can build transfer requests.
type RequestBuilder struct {
	kind       Kind
	flags      Flags
	localAddr  uint64
	size       uint64
	remoteAddr protocol.NocAddr
	header     []byte
	data       []byte
	nocReq     *protocol.NocRequest
	origin     protocol.VPEID
}

// MakeRequestBuilder returns a new RequestBuilder.
func MakeRequestBuilder() RequestBuilder {
	return RequestBuilder{}
}

// WithKind sets the kind of the transfer.
func (b RequestBuilder) WithKind(kind Kind) RequestBuilder {
	b.kind = kind
	return b
}

// WithFlags sets the flags of the transfer.
func (b RequestBuilder) WithFlags(flags Flags) RequestBuilder {
	b.flags = flags
	return b
}

// WithLocalAddr sets the local address the transfer starts at.
func (b RequestBuilder) WithLocalAddr(addr uint64) RequestBuilder {
	b.localAddr = addr
	return b
}

// WithSize sets the number of bytes to move between local memory and the
// buffer.
func (b RequestBuilder) WithSize(size uint64) RequestBuilder {
	b.size = size
	return b
}

// WithRemoteAddr sets where a local read sends its data.
func (b RequestBuilder) WithRemoteAddr(addr protocol.NocAddr) RequestBuilder {
	b.remoteAddr = addr
	return b
}

// WithHeader sets the message header that is put in front of the data.
func (b RequestBuilder) WithHeader(header []byte) RequestBuilder {
	b.header = header
	return b
}

// WithData sets the bytes a write transfer puts into local memory.
func (b RequestBuilder) WithData(data []byte) RequestBuilder {
	b.data = data
	return b
}

// WithNocRequest attaches the network request that originated the transfer.
// The data of write requests becomes the data of the transfer.
func (b RequestBuilder) WithNocRequest(req *protocol.NocRequest) RequestBuilder {
	b.nocReq = req
	return b
}

// WithOrigin sets the execution context the transfer belongs to.
func (b RequestBuilder) WithOrigin(origin protocol.VPEID) RequestBuilder {
	b.origin = origin
	return b
}

// Build creates the request.
func (b RequestBuilder) Build() *Request {
	r := &Request{
		kind:       b.kind,
		flags:      b.flags,
		startAddr:  b.localAddr,
		localAddr:  b.localAddr,
		remaining:  b.size,
		size:       b.size,
		remoteAddr: b.remoteAddr,
		header:     b.header,
		data:       b.data,
		nocReq:     b.nocReq,
		origin:     b.origin,
		bufIdx:     -1,
	}

	if r.data == nil && r.nocReq != nil && r.kind.IsWrite() {
		r.data = r.nocReq.Data
	}

	return r
}
