package xfer

// A buffer stages the data of the transfer that owns it. The owner is held
// by id; 0 means the buffer is free.
type buffer struct {
	id     int
	bytes  []byte
	offset uint64
	owner  uint64
	recv   bool
}

func (b *buffer) isFree() bool {
	return b.owner == 0
}

type bufferPool struct {
	bufs []*buffer
}

func newBufferPool(count int, size uint64) *bufferPool {
	p := &bufferPool{bufs: make([]*buffer, count)}
	for i := range p.bufs {
		p.bufs[i] = &buffer{id: i, bytes: make([]byte, size)}
	}

	return p
}

// allocate binds the first free buffer at or after index first. Message
// receives are refused while another message receive holds a buffer.
func (p *bufferPool) allocate(owner uint64, msgRecv bool, first int) *buffer {
	if msgRecv {
		for _, b := range p.bufs {
			if !b.isFree() && b.recv {
				return nil
			}
		}
	}

	for i := first; i < len(p.bufs); i++ {
		b := p.bufs[i]
		if b.isFree() {
			b.owner = owner
			b.offset = 0
			b.recv = msgRecv

			return b
		}
	}

	return nil
}

func (p *bufferPool) release(b *buffer) {
	b.owner = 0
	b.offset = 0
	b.recv = false
}

func (p *bufferPool) get(idx int) *buffer {
	return p.bufs[idx]
}

func (p *bufferPool) size() int {
	return len(p.bufs)
}

func (p *bufferPool) capacity() uint64 {
	return uint64(len(p.bufs[0].bytes))
}

func (p *bufferPool) numBusy() int {
	n := 0
	for _, b := range p.bufs {
		if !b.isFree() {
			n++
		}
	}

	return n
}
