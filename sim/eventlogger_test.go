package sim

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

type namedHandler struct {
	*ComponentBase
}

func (h *namedHandler) Handle(_ Event) error {
	return nil
}

var _ = Describe("EventLogger", func() {
	var (
		mockCtrl *gomock.Controller
		buf      *bytes.Buffer
		engine   *SerialEngine
		global   zerolog.Level
	)

	BeforeEach(func() {
		global = zerolog.GlobalLevel()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)

		mockCtrl = gomock.NewController(GinkgoT())
		buf = new(bytes.Buffer)
		engine = NewSerialEngine()
		engine.AcceptHook(NewEventLogger(
			zerolog.New(buf).Level(zerolog.TraceLevel)))
	})

	AfterEach(func() {
		zerolog.SetGlobalLevel(global)
		mockCtrl.Finish()
	})

	It("should log the events and their handlers", func() {
		h := &namedHandler{ComponentBase: NewComponentBase("Comp")}
		evt := NewEventBase(7, h)

		engine.Schedule(evt)
		Expect(engine.Run()).To(Succeed())

		Expect(buf.String()).To(ContainSubstring(`"cycle":7`))
		Expect(buf.String()).To(ContainSubstring(`"event":"*sim.EventBase"`))
		Expect(buf.String()).To(ContainSubstring(`"handler":"Comp"`))
	})

	It("should not log above trace level", func() {
		engine = NewSerialEngine()
		engine.AcceptHook(NewEventLogger(
			zerolog.New(buf).Level(zerolog.DebugLevel)))

		handler := NewMockHandler(mockCtrl)
		handler.EXPECT().Handle(gomock.Any())
		engine.Schedule(NewEventBase(1, handler))

		Expect(engine.Run()).To(Succeed())
		Expect(buf.Len()).To(BeZero())
	})
})
