package sim

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type plainEvent struct {
	EventBase
	label int
}

var _ = Describe("EventQueueImpl", func() {
	var queue *EventQueueImpl

	BeforeEach(func() {
		queue = NewEventQueue()
	})

	It("should return nil when empty", func() {
		Expect(queue.Pop()).To(BeNil())
		Expect(queue.Peek()).To(BeNil())
	})

	It("should pop in time order", func() {
		for i := 0; i < 200; i++ {
			evt := &plainEvent{
				EventBase: MakeEventBase(VTimeInCycle(rand.Intn(50)), nil),
			}
			queue.Push(evt)
		}

		now := VTimeInCycle(0)
		for queue.Len() > 0 {
			evt := queue.Pop()
			Expect(evt.Time()).To(BeNumerically(">=", now))
			now = evt.Time()
		}
	})

	It("should keep insertion order for the same time", func() {
		for i := 0; i < 10; i++ {
			queue.Push(&plainEvent{EventBase: MakeEventBase(7, nil), label: i})
		}

		Expect(queue.Peek().(*plainEvent).label).To(Equal(0))
		for i := 0; i < 10; i++ {
			Expect(queue.Pop().(*plainEvent).label).To(Equal(i))
		}
	})
})
