package mem

import (
	"github.com/pkg/errors"
)

// ErrOutOfRange is returned when an access touches bytes beyond the storage
// capacity.
var ErrOutOfRange = errors.New("access beyond storage capacity")

// A Storage keeps the data of the simulated memory.
//
// The storage manages its bytes in units, similar to the concept of pages.
// Units that are never touched by Read or Write are never allocated, and read
// as zeros.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity.
func NewStorage(capacity uint64) *Storage {
	return NewStorageWithUnitSize(capacity, 4*KB)
}

// NewStorageWithUnitSize creates a storage that allocates its bytes in units
// of the given size.
func NewStorageWithUnitSize(capacity, unitSize uint64) *Storage {
	if unitSize == 0 {
		panic("storage unit size must not be 0")
	}

	return &Storage{
		unitSize: unitSize,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the number of bytes the storage can hold.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) mustBeInRange(address, length uint64) error {
	if address+length < address || address+length > s.capacity {
		return errors.Wrapf(ErrOutOfRange,
			"%d bytes @ %#x, capacity %#x", length, address, s.capacity)
	}

	return nil
}

func (s *Storage) unit(address uint64) []byte {
	baseAddr, _ := s.parseAddress(address)

	unit, ok := s.data[baseAddr]
	if !ok {
		unit = make([]byte, s.unitSize)
		s.data[baseAddr] = unit
	}

	return unit
}

func (s *Storage) parseAddress(addr uint64) (baseAddr, inUnitAddr uint64) {
	inUnitAddr = addr % s.unitSize
	baseAddr = addr - inUnitAddr

	return baseAddr, inUnitAddr
}

// Read returns a copy of length bytes starting at address.
func (s *Storage) Read(address, length uint64) ([]byte, error) {
	if err := s.mustBeInRange(address, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)
	done := uint64(0)

	for done < length {
		curr := address + done
		_, inUnitAddr := s.parseAddress(curr)
		n := min(length-done, s.unitSize-inUnitAddr)

		copy(res[done:done+n], s.unit(curr)[inUnitAddr:inUnitAddr+n])
		done += n
	}

	return res, nil
}

// Write stores data starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.mustBeInRange(address, length); err != nil {
		return err
	}

	done := uint64(0)

	for done < length {
		curr := address + done
		_, inUnitAddr := s.parseAddress(curr)
		n := min(length-done, s.unitSize-inUnitAddr)

		copy(s.unit(curr)[inUnitAddr:inUnitAddr+n], data[done:done+n])
		done += n
	}

	return nil
}
