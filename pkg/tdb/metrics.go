package tdb

import (
	"errors"
	"time"

	"github.com/LLIEPJIOK/tdb-client/pkg/ws"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are optional; a nil *Metrics records nothing.
type Metrics struct {
	OpenConnections  prometheus.Gauge
	Connects         *prometheus.CounterVec
	Dispatches       *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tdb",
			Name:      "open_connections",
			Help:      "Number of registered connections.",
		}),
		Connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tdb",
			Name:      "connects_total",
			Help:      "Connect attempts by result.",
		}, []string{"result"}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tdb",
			Name:      "dispatches_total",
			Help:      "Dispatched requests by result.",
		}, []string{"result"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tdb",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from send to decoded response.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.OpenConnections, m.Connects, m.Dispatches, m.DispatchDuration)
	}

	return m
}

func (m *Metrics) setOpen(n int) {
	if m == nil {
		return
	}

	m.OpenConnections.Set(float64(n))
}

func (m *Metrics) observeConnect(err error) {
	if m == nil {
		return
	}

	m.Connects.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) observeDispatch(start time.Time, err error) {
	if m == nil {
		return
	}

	m.Dispatches.WithLabelValues(resultLabel(err)).Inc()
	m.DispatchDuration.Observe(time.Since(start).Seconds())
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ws.ErrInvalidEndpoint):
		return "invalid_endpoint"
	case errors.Is(err, ws.ErrHandshakeRejected):
		return "handshake_rejected"
	case errors.Is(err, ws.ErrTimeout):
		return "timeout"
	case errors.Is(err, ws.ErrNetwork):
		return "network"
	case errors.Is(err, ws.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ws.ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, ws.ErrSerialization):
		return "serialization"
	default:
		return "error"
	}
}
