// Package metrics exposes Prometheus collectors for compression jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "thumbnail_compress"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	images       *prometheus.CounterVec
	attempts     prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_started_total",
			Help:      "Compression jobs accepted.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Compression jobs that reached a terminal status.",
		}, []string{"status"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_running",
			Help:      "Compression jobs currently running.",
		}),
		images: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_processed_total",
			Help:      "Images processed, by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "encode_attempts",
			Help:      "Encode attempts needed per accepted thumbnail.",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
	}
	reg.MustRegister(m.jobsStarted, m.jobsFinished, m.jobsRunning, m.images, m.attempts)
	return m
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsStarted.Inc()
	m.jobsRunning.Inc()
}

func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsRunning.Dec()
	m.jobsFinished.WithLabelValues(status).Inc()
}

// Image outcomes.
const (
	OutcomeCompressed = "compressed"
	OutcomeFailed     = "failed"
	OutcomeMissing    = "missing"
	OutcomeSkipped    = "skipped"
)

func (m *Metrics) ImageProcessed(outcome string) {
	if m == nil {
		return
	}
	m.images.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EncodeAttempts(n int) {
	if m == nil {
		return
	}
	m.attempts.Observe(float64(n))
}
