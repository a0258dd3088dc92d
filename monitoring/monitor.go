// Package monitoring turns a simulation into an HTTP server that reports the
// state of the devices and lets the user pause the engine or abort
// transfers.
package monitoring

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sarchlab/dtusim/dtu"
	"github.com/sarchlab/dtusim/dtu/protocol"
	"github.com/sarchlab/dtusim/dtu/xfer"
	"github.com/sarchlab/dtusim/sim"
)

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine     sim.Engine
	devices    []*dtu.Device
	portNumber int
	gatherer   prometheus.Gatherer
	logger     zerolog.Logger

	// inspectLock serializes the handlers that touch the simulation state.
	inspectLock  sync.Mutex
	userPaused   bool
	server       *http.Server
	progressBars progressBars
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		gatherer: prometheus.DefaultGatherer,
		logger:   zerolog.Nop(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithGatherer sets where /metrics collects the metrics from.
func (m *Monitor) WithGatherer(g prometheus.Gatherer) *Monitor {
	m.gatherer = g
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(logger zerolog.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterEngine registers the engine that is used in the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterDevice registers a device to be monitored.
func (m *Monitor) RegisterDevice(d *dtu.Device) {
	m.devices = append(m.devices, d)
}

// Router returns the handler of all the routes of the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/continue", m.continueEngine).Methods(http.MethodPost)
	r.HandleFunc("/api/now", m.now).Methods(http.MethodGet)
	r.HandleFunc("/api/units", m.listUnits).Methods(http.MethodGet)
	r.HandleFunc("/api/units/{name}", m.unitDetails).Methods(http.MethodGet)
	r.HandleFunc("/api/units/{name}/abort", m.abort).Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() (int, error) {
	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	if err != nil {
		return 0, errors.Wrap(err, "monitoring server")
	}

	m.server = &http.Server{Handler: m.Router()}

	port := listener.Addr().(*net.TCPAddr).Port
	fmt.Fprintf(os.Stderr,
		"Monitoring simulation with http://localhost:%d\n", port)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("monitoring server stopped")
		}
	}()

	return port, nil
}

// StopServer shuts the web server down.
func (m *Monitor) StopServer() {
	if m.server != nil {
		m.server.Close()
	}
}

// inspect runs f while the engine handles no event.
func (m *Monitor) inspect(f func()) {
	m.inspectLock.Lock()
	defer m.inspectLock.Unlock()

	if m.engine != nil && !m.userPaused {
		m.engine.Pause()
		defer m.engine.Continue()
	}

	f()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.inspectLock.Lock()
	defer m.inspectLock.Unlock()

	if !m.userPaused {
		m.engine.Pause()
		m.userPaused = true
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.inspectLock.Lock()
	defer m.inspectLock.Unlock()

	if m.userPaused {
		m.engine.Continue()
		m.userPaused = false
	}

	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]uint64{"now": uint64(m.engine.CurrentTime())})
}

// UnitStatus is what /api/units reports about a device.
type UnitStatus struct {
	Name          string              `json:"name"`
	Node          uint32              `json:"node"`
	VPE           uint16              `json:"vpe"`
	Busy          bool                `json:"busy"`
	Buffers       []xfer.BufferStatus `json:"buffers"`
	Queued        []uint64            `json:"queued"`
	PendingAborts []protocol.VPEID    `json:"pending_aborts"`
	Xfer          xfer.Stats          `json:"xfer"`
	Device        dtu.Stats           `json:"device"`
}

func statusOf(d *dtu.Device) UnitStatus {
	return UnitStatus{
		Name:          d.Name(),
		Node:          uint32(d.Node()),
		VPE:           uint16(d.VPE()),
		Busy:          d.Busy(),
		Buffers:       d.Xfer().Buffers(),
		Queued:        d.Xfer().QueuedIDs(),
		PendingAborts: d.Xfer().PendingAborts(),
		Xfer:          d.Xfer().Stats(),
		Device:        d.Stats(),
	}
}

func (m *Monitor) listUnits(w http.ResponseWriter, _ *http.Request) {
	var l []UnitStatus

	m.inspect(func() {
		l = make([]UnitStatus, 0, len(m.devices))
		for _, d := range m.devices {
			l = append(l, statusOf(d))
		}
	})

	writeJSON(w, l)
}

func (m *Monitor) unitDetails(w http.ResponseWriter, r *http.Request) {
	d := m.findDeviceOr404(w, mux.Vars(r)["name"])
	if d == nil {
		return
	}

	var status UnitStatus

	m.inspect(func() { status = statusOf(d) })

	writeJSON(w, status)
}

// AbortReq is the body of POST /api/units/{name}/abort.
type AbortReq struct {
	Kind   string `json:"kind"`
	Origin uint16 `json:"origin"`
	All    bool   `json:"all"`
}

var abortKinds = map[string]xfer.AbortKind{
	xfer.AbortLocal.String():         xfer.AbortLocal,
	xfer.AbortRemote.String():        xfer.AbortRemote,
	xfer.AbortCancelPending.String(): xfer.AbortCancelPending,
}

func (m *Monitor) abort(w http.ResponseWriter, r *http.Request) {
	d := m.findDeviceOr404(w, mux.Vars(r)["name"])
	if d == nil {
		return
	}

	req := AbortReq{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Error: "+err.Error(), http.StatusBadRequest)
		return
	}

	kind, ok := abortKinds[req.Kind]
	if !ok {
		http.Error(w, fmt.Sprintf(
			"Invalid abort kind: %s. Allowed values are `local`, `remote`, "+
				"and `cancel-pending`", req.Kind),
			http.StatusBadRequest)

		return
	}

	var n int

	m.inspect(func() {
		n = d.Abort(kind, protocol.VPEID(req.Origin), req.All)
	})

	m.logger.Info().
		Str("unit", d.Name()).
		Stringer("kind", kind).
		Int("aborted", n).
		Msg("abort requested through monitor")

	writeJSON(w, map[string]int{"aborted": n})
}

func (m *Monitor) findDeviceOr404(
	w http.ResponseWriter,
	name string,
) *dtu.Device {
	for _, d := range m.devices {
		if d.Name() == name {
			return d
		}
	}

	http.Error(w, "Unit not found", http.StatusNotFound)

	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	err := json.NewEncoder(w).Encode(v)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
