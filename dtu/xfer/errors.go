package xfer

import "github.com/pkg/errors"

// The errors returned by the unit.
var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrEmptyTransfer    = errors.New("transfer has no data")
	ErrTransferTooLarge = errors.New("transfer does not fit into a buffer")
	ErrAlreadySubmitted = errors.New("transfer already submitted")
	ErrInvalidRequest   = errors.New("invalid transfer request")
)
