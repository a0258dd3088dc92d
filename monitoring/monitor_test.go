package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sarchlab/dtusim/dtu"
	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/mem/idealmemcontroller"
	"github.com/sarchlab/dtusim/noc"
	"github.com/sarchlab/dtusim/sim"
)

var _ = Describe("Monitor", func() {
	var (
		engine  *sim.SerialEngine
		dev1    *dtu.Device
		dev2    *dtu.Device
		reg     *prometheus.Registry
		m       *Monitor
		handler http.Handler
	)

	buildDevice := func(name string, node noc.NodeID, fabric *noc.Fabric) *dtu.Device {
		memory := idealmemcontroller.MakeBuilder().
			WithEngine(engine).
			WithNewStorage(1 << 16).
			Build(name + ".Mem")

		d, err := dtu.MakeBuilder().
			WithEngine(engine).
			WithFabric(fabric).
			WithNode(node).
			WithMemory(memory).
			WithVPE(1).
			Build(name)
		Expect(err).NotTo(HaveOccurred())

		return d
	}

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		fabric := noc.MakeBuilder().WithEngine(engine).Build("NoC")
		dev1 = buildDevice("Node1.DTU", 1, fabric)
		dev2 = buildDevice("Node2.DTU", 2, fabric)

		reg = prometheus.NewRegistry()

		m = NewMonitor().WithGatherer(reg)
		m.RegisterEngine(engine)
		m.RegisterDevice(dev1)
		m.RegisterDevice(dev2)
		handler = m.Router()
	})

	It("should list the units", func() {
		rec := do(http.MethodGet, "/api/units", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var units []UnitStatus
		Expect(json.Unmarshal(rec.Body.Bytes(), &units)).To(Succeed())

		Expect(units).To(HaveLen(2))
		Expect(units[0].Name).To(Equal("Node1.DTU"))
		Expect(units[1].Node).To(Equal(uint32(2)))
		Expect(units[0].VPE).To(Equal(uint16(1)))
		Expect(units[0].Busy).To(BeFalse())
		Expect(units[0].Buffers).To(HaveLen(4))
		Expect(units[0].Queued).To(BeEmpty())
	})

	It("should report a single unit", func() {
		rec := do(http.MethodGet, "/api/units/Node2.DTU", "")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var status UnitStatus
		Expect(json.Unmarshal(rec.Body.Bytes(), &status)).To(Succeed())
		Expect(status.Name).To(Equal("Node2.DTU"))
	})

	It("should return 404 for unknown units", func() {
		rec := do(http.MethodGet, "/api/units/Node3.DTU", "")
		Expect(rec.Code).To(Equal(http.StatusNotFound))

		rec = do(http.MethodPost, "/api/units/Node3.DTU/abort",
			`{"kind":"local"}`)
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should remember an abort that finds no transfer", func() {
		rec := do(http.MethodPost, "/api/units/Node1.DTU/abort",
			`{"kind":"remote","origin":5}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"aborted":0}`))
		Expect(dev1.Xfer().PendingAborts()).
			To(ConsistOf(protocol.VPEID(5)))

		rec = do(http.MethodPost, "/api/units/Node1.DTU/abort",
			`{"kind":"cancel-pending","origin":5}`)
		Expect(rec.Body.String()).To(MatchJSON(`{"aborted":1}`))
		Expect(dev1.Xfer().PendingAborts()).To(BeEmpty())
	})

	DescribeTable("should reject bad abort requests",
		func(body string) {
			rec := do(http.MethodPost, "/api/units/Node1.DTU/abort", body)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		},
		Entry("unknown kind", `{"kind":"everything"}`),
		Entry("malformed body", `{"kind":`),
	)

	It("should only accept POST for aborts", func() {
		rec := do(http.MethodGet, "/api/units/Node1.DTU/abort", "")
		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should serve the units while paused", func() {
		Expect(do(http.MethodPost, "/api/pause", "").Code).
			To(Equal(http.StatusOK))

		Expect(do(http.MethodGet, "/api/units", "").Code).
			To(Equal(http.StatusOK))

		rec := do(http.MethodGet, "/api/now", "")
		Expect(rec.Body.String()).To(MatchJSON(`{"now":0}`))

		Expect(do(http.MethodPost, "/api/continue", "").Code).
			To(Equal(http.StatusOK))
		Expect(engine.Run()).To(Succeed())
	})

	It("should serve the metrics", func() {
		counter := prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dtusim_test_total",
			Help: "Test counter",
		})
		reg.MustRegister(counter)
		counter.Add(3)

		rec := do(http.MethodGet, "/metrics", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("dtusim_test_total 3"))
	})

	It("should list the progress bars", func() {
		bar := m.CreateProgressBar("Workload", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		rec := do(http.MethodGet, "/api/progress", "")

		var bars []map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("Workload"))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 2))
		Expect(bars[0]["in_progress"]).To(BeNumerically("==", 1))

		m.CompleteProgressBar(bar)

		rec = do(http.MethodGet, "/api/progress", "")
		Expect(rec.Body.String()).To(MatchJSON(`[]`))
	})
})
