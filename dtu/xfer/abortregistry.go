package xfer

import (
	"sort"

	"github.com/sarchlab/dtusim/dtu/protocol"
)

// abortRegistry remembers the origins whose next admitted transfer has to be
// aborted.
type abortRegistry struct {
	origins map[protocol.VPEID]struct{}
}

func newAbortRegistry() *abortRegistry {
	return &abortRegistry{origins: make(map[protocol.VPEID]struct{})}
}

func (r *abortRegistry) register(origin protocol.VPEID) {
	r.origins[origin] = struct{}{}
}

// consume removes the origin and reports if it was registered.
func (r *abortRegistry) consume(origin protocol.VPEID) bool {
	if _, found := r.origins[origin]; !found {
		return false
	}

	delete(r.origins, origin)

	return true
}

func (r *abortRegistry) list() []protocol.VPEID {
	l := make([]protocol.VPEID, 0, len(r.origins))
	for o := range r.origins {
		l = append(l, o)
	}

	sort.Slice(l, func(i, j int) bool { return l[i] < l[j] })

	return l
}
