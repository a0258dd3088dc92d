package noc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/dtusim/sim"
)

type testMsg struct {
	MsgMeta
}

func (m *testMsg) Meta() *MsgMeta {
	return &m.MsgMeta
}

type arrival struct {
	at  sim.VTimeInCycle
	msg Msg
}

type recordingEndpoint struct {
	engine   sim.TimeTeller
	arrivals []arrival
}

func (e *recordingEndpoint) RecvMsg(msg Msg) {
	e.arrivals = append(e.arrivals, arrival{e.engine.CurrentTime(), msg})
}

var _ = Describe("Fabric", func() {
	var (
		engine *sim.SerialEngine
		fabric *Fabric
		ep0    *recordingEndpoint
		ep1    *recordingEndpoint
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		fabric = MakeBuilder().
			WithEngine(engine).
			WithLatency(10).
			WithBytesPerCycle(8).
			Build("NoC")
		ep0 = &recordingEndpoint{engine: engine}
		ep1 = &recordingEndpoint{engine: engine}
		fabric.Attach(0, ep0)
		fabric.Attach(1, ep1)
	})

	It("should deliver after latency and serialization", func() {
		msg := &testMsg{MsgMeta{ID: "m1", Src: 0, Dst: 1, TrafficBytes: 20}}

		Expect(fabric.Send(msg)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(ep1.arrivals).To(HaveLen(1))
		Expect(ep1.arrivals[0].at).To(Equal(sim.VTimeInCycle(13)))
		Expect(ep1.arrivals[0].msg).To(BeIdenticalTo(msg))
		Expect(ep0.arrivals).To(BeEmpty())
		Expect(fabric.NumBytes()).To(Equal(uint64(20)))
	})

	It("should keep the order of messages from the same node", func() {
		m1 := &testMsg{MsgMeta{ID: "m1", Src: 0, Dst: 1, TrafficBytes: 64}}
		m2 := &testMsg{MsgMeta{ID: "m2", Src: 0, Dst: 1, TrafficBytes: 0}}

		Expect(fabric.Send(m1)).To(Succeed())
		Expect(fabric.Send(m2)).To(Succeed())
		Expect(engine.Run()).To(Succeed())

		Expect(ep1.arrivals).To(HaveLen(2))
		Expect(ep1.arrivals[0].msg.Meta().ID).To(Equal("m1"))
		Expect(ep1.arrivals[0].at).To(Equal(sim.VTimeInCycle(18)))
		Expect(ep1.arrivals[1].msg.Meta().ID).To(Equal("m2"))
		Expect(ep1.arrivals[1].at).To(Equal(sim.VTimeInCycle(18)))
	})

	It("should reject unknown destinations", func() {
		msg := &testMsg{MsgMeta{ID: "m1", Src: 0, Dst: 7}}

		Expect(fabric.Send(msg)).To(MatchError(ErrUnknownNode))
	})

	It("should panic when attaching a node twice", func() {
		Expect(func() { fabric.Attach(1, ep0) }).To(Panic())
	})
})
