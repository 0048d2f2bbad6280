package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ReserveDesk/internal/domain/units"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal        *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	remainingReserve prometheus.Gauge
	latency          *prometheus.HistogramVec
	staleDrops       prometheus.Counter
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservedesk_runs_total",
				Help: "Allocation engine runs by terminal status",
			},
			[]string{"status"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservedesk_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		remainingReserve: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "reservedesk_remaining_reserve_cents",
				Help: "Unallocated reserve after the most recent run",
			},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reservedesk_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		staleDrops: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "reservedesk_stale_results_dropped_total",
				Help: "Calculation results discarded because a newer epoch superseded them",
			},
		),
	}
}

// RecordRun records an engine run terminal status.
func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRemainingReserve records leftover reserve after a run.
func (r *Recorder) RecordRemainingReserve(cents units.Cents) {
	r.remainingReserve.Set(float64(cents))
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordStaleDrop counts a superseded calculation result.
func (r *Recorder) RecordStaleDrop() {
	r.staleDrops.Inc()
}
