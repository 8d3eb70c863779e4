package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cyclesTotal    *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	signalsTotal   *prometheus.CounterVec
	backfillsTotal *prometheus.CounterVec
	storeStaleness prometheus.Gauge
	predictedVol   prometheus.Gauge
	errorsTotal    *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volstack_cycles_total",
				Help: "Total prediction cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "volstack_cycle_duration_seconds",
				Help:    "End-to-end duration of one prediction cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volstack_signals_total",
				Help: "Emitted signals by type",
			},
			[]string{"signal"},
		),
		backfillsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volstack_backfills_total",
				Help: "Backfill requests by kind and result",
			},
			[]string{"kind", "result"},
		),
		storeStaleness: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "volstack_store_staleness_seconds",
				Help: "Age of the latest stored index bar",
			},
		),
		predictedVol: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "volstack_predicted_volatility",
				Help: "Latest volatility estimate",
			},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volstack_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordCycle records one completed cycle with its outcome label.
func (r *Recorder) RecordCycle(outcome string) {
	r.cyclesTotal.WithLabelValues(outcome).Inc()
}

// RecordCycleDuration records the wall time of one cycle.
func (r *Recorder) RecordCycleDuration(d time.Duration) {
	r.cycleDuration.Observe(d.Seconds())
}

// RecordSignal records an emitted signal and its volatility estimate.
func (r *Recorder) RecordSignal(signal string, predVol float64) {
	r.signalsTotal.WithLabelValues(signal).Inc()
	r.predictedVol.Set(predVol)
}

// RecordBackfill records a backfill attempt.
func (r *Recorder) RecordBackfill(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.backfillsTotal.WithLabelValues(kind, result).Inc()
}

// RecordStoreStaleness records the age of the latest stored bar.
func (r *Recorder) RecordStoreStaleness(age time.Duration) {
	r.storeStaleness.Set(age.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
