package xfer

import "github.com/eapache/queue"

// admissionQueue holds the requests waiting for a buffer, oldest first.
type admissionQueue struct {
	q *queue.Queue
}

func newAdmissionQueue() *admissionQueue {
	return &admissionQueue{q: queue.New()}
}

func (a *admissionQueue) push(req *Request) {
	a.q.Add(req)
}

func (a *admissionQueue) peek() *Request {
	return a.q.Peek().(*Request)
}

func (a *admissionQueue) pop() *Request {
	return a.q.Remove().(*Request)
}

func (a *admissionQueue) len() int {
	return a.q.Length()
}

func (a *admissionQueue) ids() []uint64 {
	ids := make([]uint64, a.q.Length())
	for i := range ids {
		ids[i] = a.q.Get(i).(*Request).id
	}

	return ids
}
