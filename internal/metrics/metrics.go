// Package metrics holds the Prometheus collectors describing mailbox traffic.
//
// The daemon has no HTTP surface, so collectors are exported through the
// node_exporter textfile format on every heartbeat. All methods are safe on a
// nil *Metrics so components can run without instrumentation in tests.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reviewgate"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	requestsEmitted  *prometheus.CounterVec
	emitFailures     *prometheus.CounterVec
	acks             *prometheus.CounterVec
	outcomes         *prometheus.CounterVec
	responseWait     *prometheus.HistogramVec
	inflight         prometheus.Gauge
	heartbeats       prometheus.Counter
	lastHeartbeat    prometheus.Gauge
	speechJobs       *prometheus.CounterVec
	shutdownRequests *prometheus.CounterVec
}

// New creates and registers every collector on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "requests", Name: "emitted_total",
			Help: "Trigger records published, by request kind.",
		}, []string{"kind"}),
		emitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "requests", Name: "emit_failures_total",
			Help: "Requests for which no trigger copy could be written.",
		}, []string{"kind"}),
		acks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "requests", Name: "acks_total",
			Help: "Acknowledgements consumed, by request kind.",
		}, []string{"kind"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "requests", Name: "outcomes_total",
			Help: "Terminal request outcomes.",
		}, []string{"kind", "outcome"}),
		responseWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "requests", Name: "wait_seconds",
			Help:    "Time from trigger emission to terminal outcome.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"kind"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "requests", Name: "inflight",
			Help: "Requests currently awaiting a response.",
		}),
		heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "heartbeat", Name: "beats_total",
			Help: "Liveness records written.",
		}),
		lastHeartbeat: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "heartbeat", Name: "last_timestamp_seconds",
			Help: "Unix time of the most recent liveness record.",
		}),
		speechJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "speech", Name: "jobs_total",
			Help: "Transcription jobs processed, by result.",
		}, []string{"result"}),
		shutdownRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "shutdown", Name: "requests_total",
			Help: "Shutdown confirmation requests, by decision.",
		}, []string{"decision"}),
	}

	collectors := []prometheus.Collector{
		m.requestsEmitted, m.emitFailures, m.acks, m.outcomes, m.responseWait,
		m.inflight, m.heartbeats, m.lastHeartbeat, m.speechJobs, m.shutdownRequests,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Gatherer exposes the registry for tests and exporters.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// WriteTextfile atomically writes every collector to path in the text
// exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) RequestEmitted(kind string) {
	if m != nil {
		m.requestsEmitted.WithLabelValues(kind).Inc()
		m.inflight.Inc()
	}
}

func (m *Metrics) EmitFailed(kind string) {
	if m != nil {
		m.emitFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) AckReceived(kind string) {
	if m != nil {
		m.acks.WithLabelValues(kind).Inc()
	}
}

// RequestFinished records a terminal outcome for a request that was emitted.
func (m *Metrics) RequestFinished(kind, outcome string, waited time.Duration) {
	if m != nil {
		m.outcomes.WithLabelValues(kind, outcome).Inc()
		m.responseWait.WithLabelValues(kind).Observe(waited.Seconds())
		m.inflight.Dec()
	}
}

func (m *Metrics) Heartbeat(at time.Time) {
	if m != nil {
		m.heartbeats.Inc()
		m.lastHeartbeat.Set(float64(at.Unix()))
	}
}

func (m *Metrics) SpeechJob(success bool) {
	if m == nil {
		return
	}
	result := "failed"
	if success {
		result = "succeeded"
	}
	m.speechJobs.WithLabelValues(result).Inc()
}

func (m *Metrics) ShutdownDecision(decision string) {
	if m != nil {
		m.shutdownRequests.WithLabelValues(decision).Inc()
	}
}
