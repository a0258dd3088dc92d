package protocol

import (
	"fmt"

	"github.com/sarchlab/dtusim/noc"
	"github.com/sarchlab/dtusim/sim"
)

// VPEID identifies the execution context a device currently serves.
type VPEID uint16

// InvalidVPE marks a device that serves no execution context.
const InvalidVPE VPEID = 0xFFFF

// NocAddr addresses memory on another node of the network.
type NocAddr struct {
	Node   noc.NodeID
	Offset uint64
}

func (a NocAddr) String() string {
	return fmt.Sprintf("%d:%#x", a.Node, a.Offset)
}

// NocPacketType tells what a network request asks for.
type NocPacketType uint8

// The network request types.
const (
	NocReadReq NocPacketType = iota
	NocWriteReq
	NocMessage
)

func (t NocPacketType) String() string {
	switch t {
	case NocReadReq:
		return "read"
	case NocWriteReq:
		return "write"
	case NocMessage:
		return "message"
	default:
		return fmt.Sprintf("NocPacketType(%d)", uint8(t))
	}
}

// IsWrite returns true if the request carries data to the target.
func (t NocPacketType) IsWrite() bool {
	return t != NocReadReq
}

// NocFlags are the command flags that travel with a network request.
type NocFlags uint8

// NocNoPageFault asks the target to fail instead of resolving page faults.
const NocNoPageFault NocFlags = 1

// A NocRequest asks another node to read, write, or receive a message.
type NocRequest struct {
	noc.MsgMeta

	Type          NocPacketType
	Addr          NocAddr
	Size          uint64
	Data          []byte
	VPE           VPEID
	Flags         NocFlags
	NeedsResponse bool
}

// Meta returns the meta data of the request.
func (r *NocRequest) Meta() *noc.MsgMeta {
	return &r.MsgMeta
}

// NewNocRequest creates a request from the src node. Write and message
// requests carry data, read requests carry the size to read.
func NewNocRequest(
	t NocPacketType,
	src noc.NodeID,
	dst NocAddr,
	size uint64,
	data []byte,
	vpe VPEID,
	flags NocFlags,
) *NocRequest {
	req := &NocRequest{
		MsgMeta: noc.MsgMeta{
			ID:  sim.GetIDGenerator().Generate(),
			Src: src,
			Dst: dst.Node,
		},
		Type:          t,
		Addr:          dst,
		Size:          size,
		Data:          data,
		VPE:           vpe,
		Flags:         flags,
		NeedsResponse: true,
	}

	if t.IsWrite() {
		req.Size = uint64(len(data))
		req.TrafficBytes = HeaderSize + len(data)
	} else {
		req.TrafficBytes = HeaderSize
	}

	return req
}

// GenerateRsp creates the response to the request.
func (r *NocRequest) GenerateRsp(result Error, data []byte) *NocResponse {
	return &NocResponse{
		MsgMeta: noc.MsgMeta{
			ID:           sim.GetIDGenerator().Generate(),
			Src:          r.Dst,
			Dst:          r.Src,
			TrafficBytes: HeaderSize + len(data),
		},
		RespondTo: r.ID,
		Type:      r.Type,
		Result:    result,
		Data:      data,
	}
}

// A NocResponse answers a NocRequest.
type NocResponse struct {
	noc.MsgMeta

	RespondTo string
	Type      NocPacketType
	Result    Error
	Data      []byte
}

// Meta returns the meta data of the response.
func (r *NocResponse) Meta() *noc.MsgMeta {
	return &r.MsgMeta
}
