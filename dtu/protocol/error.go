// Package protocol defines what the devices exchange over the network: the
// packets, their addresses, the message header, and the result codes.
package protocol

import "fmt"

// Error is the result code of a command or a transfer.
type Error uint8

// The result codes.
const (
	ErrNone Error = iota
	ErrPageFault
	ErrAbort
	ErrDestinationGone
)

func (e Error) Error() string {
	switch e {
	case ErrNone:
		return "none"
	case ErrPageFault:
		return "page fault"
	case ErrAbort:
		return "aborted"
	case ErrDestinationGone:
		return "destination gone"
	default:
		return fmt.Sprintf("error %d", uint8(e))
	}
}

func (e Error) String() string {
	return e.Error()
}

// Ok returns true if the code reports success.
func (e Error) Ok() bool {
	return e == ErrNone
}

// AsError converts the code into an error value, nil on success.
func (e Error) AsError() error {
	if e == ErrNone {
		return nil
	}

	return e
}
