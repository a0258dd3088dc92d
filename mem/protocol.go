// Package mem models the backend memory that the transfer engine reads from
// and writes to one block at a time.
package mem

import (
	"fmt"

	"github.com/sarchlab/dtusim/sim"
)

// Size units.
const (
	KB uint64 = 1 << 10
	MB uint64 = 1 << 20
	GB uint64 = 1 << 30
)

// AccessKind tells if a block request reads or writes memory.
type AccessKind uint8

// The kinds of block accesses.
const (
	AccessRead AccessKind = iota
	AccessWrite
)

func (k AccessKind) String() string {
	switch k {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	default:
		return fmt.Sprintf("AccessKind(%d)", uint8(k))
	}
}

// A BlockResponder receives the responses of the block requests it issued.
type BlockResponder interface {
	RecvBlockResponse(rsp *BlockResponse)
}

// A BlockRequest asks the memory to read or write one block. BufID is opaque
// to the memory and is echoed back so that the requester can route the
// response to the staging buffer that issued the request.
type BlockRequest struct {
	ID        string
	Addr      uint64
	Size      uint64
	Kind      AccessKind
	Data      []byte
	BufID     int
	Requester BlockResponder
}

// NewReadBlockRequest creates a request that reads size bytes at addr.
func NewReadBlockRequest(
	addr, size uint64,
	bufID int,
	requester BlockResponder,
) *BlockRequest {
	return &BlockRequest{
		ID:        sim.GetIDGenerator().Generate(),
		Addr:      addr,
		Size:      size,
		Kind:      AccessRead,
		BufID:     bufID,
		Requester: requester,
	}
}

// NewWriteBlockRequest creates a request that writes data at addr. The
// request takes ownership of data.
func NewWriteBlockRequest(
	addr uint64,
	data []byte,
	bufID int,
	requester BlockResponder,
) *BlockRequest {
	return &BlockRequest{
		ID:        sim.GetIDGenerator().Generate(),
		Addr:      addr,
		Size:      uint64(len(data)),
		Kind:      AccessWrite,
		Data:      data,
		BufID:     bufID,
		Requester: requester,
	}
}

// GenerateRsp creates the response of the request. Data is only meaningful
// for reads.
func (r *BlockRequest) GenerateRsp(data []byte, err error) *BlockResponse {
	return &BlockResponse{
		RespondTo: r.ID,
		BufID:     r.BufID,
		Kind:      r.Kind,
		Data:      data,
		Err:       err,
	}
}

// A BlockResponse carries the data of a read or the acknowledgement of a
// write.
type BlockResponse struct {
	RespondTo string
	BufID     int
	Kind      AccessKind
	Data      []byte
	Err       error
}
