package xfer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors of transfer units. One Metrics can
// be shared by many units; the unit name is a label.
type Metrics struct {
	bytes       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	delays      *prometheus.CounterVec
	pagefaults  *prometheus.CounterVec
	aborts      *prometheus.CounterVec
	busyBuffers *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dtusim_xfer_bytes_total",
			Help: "Bytes submitted for transfer, by direction of the local access",
		}, []string{"unit", "direction"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dtusim_xfer_duration_cycles",
			Help:    "Cycles from submission to completion of a transfer",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"unit", "direction"}),
		delays: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dtusim_xfer_delays_total",
			Help: "Transfers that had to wait for a buffer",
		}, []string{"unit"}),
		pagefaults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dtusim_xfer_pagefaults_total",
			Help: "Page faults seen during transfers",
		}, []string{"unit"}),
		aborts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dtusim_xfer_aborts_total",
			Help: "Aborted transfers, by cause",
		}, []string{"unit", "cause"}),
		busyBuffers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dtusim_xfer_busy_buffers",
			Help: "Buffers bound to a transfer",
		}, []string{"unit"}),
	}
}

func direction(k Kind) string {
	if k.IsWrite() {
		return "write"
	}

	return "read"
}

// unitMetrics binds the collectors to one unit. A nil Metrics records
// nothing.
type unitMetrics struct {
	m    *Metrics
	unit string
}

func (u unitMetrics) addBytes(k Kind, n uint64) {
	if u.m != nil {
		u.m.bytes.WithLabelValues(u.unit, direction(k)).Add(float64(n))
	}
}

func (u unitMetrics) observeDuration(k Kind, cycles uint64) {
	if u.m != nil {
		u.m.duration.WithLabelValues(u.unit, direction(k)).Observe(float64(cycles))
	}
}

func (u unitMetrics) incDelays() {
	if u.m != nil {
		u.m.delays.WithLabelValues(u.unit).Inc()
	}
}

func (u unitMetrics) incPagefaults() {
	if u.m != nil {
		u.m.pagefaults.WithLabelValues(u.unit).Inc()
	}
}

func (u unitMetrics) incAborts(cause AbortCause) {
	if u.m != nil {
		u.m.aborts.WithLabelValues(u.unit, cause.String()).Inc()
	}
}

func (u unitMetrics) setBusyBuffers(n int) {
	if u.m != nil {
		u.m.busyBuffers.WithLabelValues(u.unit).Set(float64(n))
	}
}
