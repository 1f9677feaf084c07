package observability

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kode4food/flowrelay/internal/client"
	"github.com/kode4food/flowrelay/internal/stream"
)

// Metrics bundles Prometheus collectors for the relay
type Metrics struct {
	registry        *prometheus.Registry
	Attempts        prometheus.Counter
	AttemptFailures *prometheus.CounterVec
	RetryDelay      prometheus.Histogram
	Runs            *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	ActiveSessions  prometheus.Gauge
	SessionOutcomes *prometheus.CounterVec
}

const namespace = "flowrelay"

var (
	_ client.Observer        = (*Metrics)(nil)
	_ client.SessionObserver = (*Metrics)(nil)
)

// NewMetrics constructs a registry holding the relay's collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	attempts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_attempts_total",
		Help:      "Upstream run attempts started",
	})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_attempt_failures_total",
		Help:      "Failed upstream attempts by failure kind",
	}, []string{"kind"})

	delay := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_retry_delay_seconds",
		Help:      "Delay scheduled before a retry attempt",
		Buckets:   prometheus.DefBuckets,
	})

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Flow runs by transport and outcome",
	}, []string{"transport", "outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_initiation_seconds",
		Help:      "Time taken to initiate a flow run",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transport"})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stream_active_sessions",
		Help:      "Stream sessions currently open",
	})

	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stream_sessions_total",
		Help:      "Finished stream sessions by terminal state",
	}, []string{"state"})

	reg.MustRegister(
		attempts, failures, delay, runs, durs, active, outcomes,
	)

	return &Metrics{
		registry:        reg,
		Attempts:        attempts,
		AttemptFailures: failures,
		RetryDelay:      delay,
		Runs:            runs,
		RunDuration:     durs,
		ActiveSessions:  active,
		SessionOutcomes: outcomes,
	}
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// AttemptStarted counts an upstream attempt
func (m *Metrics) AttemptStarted(client.RetryState) {
	if m == nil {
		return
	}
	m.Attempts.Inc()
}

// AttemptFailed counts a failed attempt by its kind
func (m *Metrics) AttemptFailed(s client.RetryState) {
	if m == nil {
		return
	}
	m.AttemptFailures.WithLabelValues(FailureKind(s.LastError)).Inc()
}

// DelayScheduled records a retry delay
func (m *Metrics) DelayScheduled(_ client.RetryState, d time.Duration) {
	if m == nil {
		return
	}
	m.RetryDelay.Observe(d.Seconds())
}

// SessionOpened increments the active session gauge
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

// SessionEnded decrements the active session gauge and counts the outcome
func (m *Metrics) SessionEnded(st stream.State) {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionOutcomes.WithLabelValues(string(st)).Inc()
}

// RecordRun counts a run and how long it took to initiate
func (m *Metrics) RecordRun(transport string, err error, d time.Duration) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = FailureKind(err)
	}
	m.Runs.WithLabelValues(transport, outcome).Inc()
	m.RunDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// FailureKind maps an error to a low-cardinality label value
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, client.ErrStreamingNotGranted):
		return "stream_not_granted"
	case errors.Is(err, client.ErrInvalidUpstreamShape):
		return "invalid_shape"
	case errors.Is(err, client.ErrUpstreamHTTP):
		return "http"
	case errors.Is(err, client.ErrTimeout):
		return "timeout"
	case errors.Is(err, client.ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}
