package protocol

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// HeaderSize is the number of bytes a message header occupies in front of
// the message payload.
const HeaderSize = 24

// ErrShortHeader is returned when decoding fewer bytes than a header needs.
var ErrShortHeader = errors.New("short message header")

// The header flags.
const (
	HeaderReply        uint8 = 1
	HeaderGrantCredits uint8 = 2
)

// A MessageHeader precedes every message in the receive buffer.
type MessageHeader struct {
	Flags      uint8
	SenderNode uint16
	SenderEP   uint8
	ReplyEP    uint8
	Length     uint16
	Label      uint64
	ReplyLabel uint64
}

// Bytes encodes the header in little endian.
func (h MessageHeader) Bytes() []byte {
	b := make([]byte, HeaderSize)
	b[0] = h.Flags
	binary.LittleEndian.PutUint16(b[1:3], h.SenderNode)
	b[3] = h.SenderEP
	b[4] = h.ReplyEP
	binary.LittleEndian.PutUint16(b[5:7], h.Length)
	binary.LittleEndian.PutUint64(b[8:16], h.Label)
	binary.LittleEndian.PutUint64(b[16:24], h.ReplyLabel)

	return b
}

// DecodeMessageHeader decodes a header from the start of b.
func DecodeMessageHeader(b []byte) (MessageHeader, error) {
	if len(b) < HeaderSize {
		return MessageHeader{}, errors.Wrapf(ErrShortHeader,
			"%d bytes", len(b))
	}

	return MessageHeader{
		Flags:      b[0],
		SenderNode: binary.LittleEndian.Uint16(b[1:3]),
		SenderEP:   b[3],
		ReplyEP:    b[4],
		Length:     binary.LittleEndian.Uint16(b[5:7]),
		Label:      binary.LittleEndian.Uint64(b[8:16]),
		ReplyLabel: binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}
