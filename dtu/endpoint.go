package dtu

import (
	"fmt"

	"github.com/eapache/queue"
	"github.com/pkg/errors"

	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/noc"
)

// Endpoint errors.
var (
	ErrInvalidEndpoint = errors.New("invalid endpoint")
	ErrNoPermission    = errors.New("no permission")
	ErrOutOfBounds     = errors.New("out of bounds")
)

// MemPerm are the permissions a memory endpoint grants.
type MemPerm uint8

// The memory endpoint permissions.
const (
	PermRead MemPerm = 1 << iota
	PermWrite
)

// A MemEndpoint grants access to a window of the memory of another node.
type MemEndpoint struct {
	TargetNode noc.NodeID
	RemoteAddr uint64
	RemoteSize uint64
	Perm       MemPerm
	VPE        protocol.VPEID
}

// window returns the remote address of [offset, offset+size) after checking
// the bounds and the permission.
func (ep *MemEndpoint) window(
	offset, size uint64,
	perm MemPerm,
) (protocol.NocAddr, error) {
	if ep.Perm&perm != perm {
		return protocol.NocAddr{}, ErrNoPermission
	}

	if offset+size < offset || offset+size > ep.RemoteSize {
		return protocol.NocAddr{}, errors.Wrapf(ErrOutOfBounds,
			"%#x+%#x in window of %#x bytes", offset, size, ep.RemoteSize)
	}

	return protocol.NocAddr{
		Node:   ep.TargetNode,
		Offset: ep.RemoteAddr + offset,
	}, nil
}

// A SendEndpoint sends messages to a receive endpoint of another node.
type SendEndpoint struct {
	TargetNode noc.NodeID
	TargetEP   int
	Label      uint64
	MaxMsgSize uint64
	VPE        protocol.VPEID
}

// A RecvEndpoint receives messages into a ring of equally sized slots in
// local memory.
type RecvEndpoint struct {
	BufAddr   uint64
	SlotSize  uint64
	SlotCount int
}

type recvState struct {
	RecvEndpoint

	occupied []bool
	unread   *queue.Queue
}

func (r *recvState) contains(addr uint64) bool {
	return addr >= r.BufAddr &&
		addr < r.BufAddr+r.SlotSize*uint64(r.SlotCount)
}

func (r *recvState) slot(addr uint64) int {
	return int((addr - r.BufAddr) / r.SlotSize)
}

// reserve takes a free slot for an incoming message.
func (r *recvState) reserve() (uint64, bool) {
	for i, used := range r.occupied {
		if !used {
			r.occupied[i] = true
			return r.BufAddr + uint64(i)*r.SlotSize, true
		}
	}

	return 0, false
}

func (r *recvState) release(addr uint64) {
	r.occupied[r.slot(addr)] = false
}

type epKind uint8

const (
	epInvalid epKind = iota
	epMemory
	epSend
	epRecv
)

func (k epKind) String() string {
	switch k {
	case epInvalid:
		return "invalid"
	case epMemory:
		return "memory"
	case epSend:
		return "send"
	case epRecv:
		return "receive"
	default:
		return fmt.Sprintf("epKind(%d)", uint8(k))
	}
}

type endpoint struct {
	kind epKind
	mem  MemEndpoint
	send SendEndpoint
	recv *recvState
}

// An EndpointTable holds the endpoints of a device.
type EndpointTable struct {
	eps []endpoint
}

// NewEndpointTable creates a table of n invalid endpoints.
func NewEndpointTable(n int) *EndpointTable {
	return &EndpointTable{eps: make([]endpoint, n)}
}

// NumEndpoints returns the size of the table.
func (t *EndpointTable) NumEndpoints() int {
	return len(t.eps)
}

func (t *EndpointTable) mustExist(id int) error {
	if id < 0 || id >= len(t.eps) {
		return errors.Wrapf(ErrInvalidEndpoint, "endpoint %d of %d", id, len(t.eps))
	}

	return nil
}

func (t *EndpointTable) get(id int, kind epKind) (*endpoint, error) {
	if err := t.mustExist(id); err != nil {
		return nil, err
	}

	ep := &t.eps[id]
	if ep.kind != kind {
		return nil, errors.Wrapf(ErrInvalidEndpoint,
			"endpoint %d is a %s endpoint, not a %s endpoint", id, ep.kind, kind)
	}

	return ep, nil
}

// ConfigureMemory turns an endpoint into a memory endpoint.
func (t *EndpointTable) ConfigureMemory(id int, ep MemEndpoint) error {
	if err := t.mustExist(id); err != nil {
		return err
	}

	t.eps[id] = endpoint{kind: epMemory, mem: ep}

	return nil
}

// ConfigureSend turns an endpoint into a send endpoint.
func (t *EndpointTable) ConfigureSend(id int, ep SendEndpoint) error {
	if err := t.mustExist(id); err != nil {
		return err
	}

	t.eps[id] = endpoint{kind: epSend, send: ep}

	return nil
}

// ConfigureRecv turns an endpoint into a receive endpoint. Pending messages
// of a previous configuration are dropped.
func (t *EndpointTable) ConfigureRecv(id int, ep RecvEndpoint) error {
	if err := t.mustExist(id); err != nil {
		return err
	}

	if ep.SlotCount < 1 || ep.SlotSize < protocol.HeaderSize {
		return errors.Wrapf(ErrInvalidEndpoint,
			"%d slots of %d bytes", ep.SlotCount, ep.SlotSize)
	}

	t.eps[id] = endpoint{
		kind: epRecv,
		recv: &recvState{
			RecvEndpoint: ep,
			occupied:     make([]bool, ep.SlotCount),
			unread:       queue.New(),
		},
	}

	return nil
}

// Invalidate turns an endpoint back into an invalid endpoint.
func (t *EndpointTable) Invalidate(id int) error {
	if err := t.mustExist(id); err != nil {
		return err
	}

	t.eps[id] = endpoint{}

	return nil
}

func (t *EndpointTable) memory(id int) (*MemEndpoint, error) {
	ep, err := t.get(id, epMemory)
	if err != nil {
		return nil, err
	}

	return &ep.mem, nil
}

func (t *EndpointTable) sender(id int) (*SendEndpoint, error) {
	ep, err := t.get(id, epSend)
	if err != nil {
		return nil, err
	}

	return &ep.send, nil
}

func (t *EndpointTable) receiver(id int) (*recvState, error) {
	ep, err := t.get(id, epRecv)
	if err != nil {
		return nil, err
	}

	return ep.recv, nil
}

// receiverOf finds the receive endpoint whose buffer holds addr.
func (t *EndpointTable) receiverOf(addr uint64) *recvState {
	for i := range t.eps {
		ep := &t.eps[i]
		if ep.kind == epRecv && ep.recv.contains(addr) {
			return ep.recv
		}
	}

	return nil
}
