package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecordJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobStarted()
	m.JobStarted()
	m.JobFinished("completed")

	if got := testutil.ToFloat64(m.jobsRunning); got != 1 {
		t.Fatalf("jobs_running = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.jobsFinished.WithLabelValues("completed")); got != 1 {
		t.Fatalf("jobs_finished{completed} = %v, want 1", got)
	}

	m.ImageProcessed(OutcomeMissing)
	if got := testutil.ToFloat64(m.images.WithLabelValues(OutcomeMissing)); got != 1 {
		t.Fatalf("images{missing} = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.JobStarted()
	m.JobFinished("error")
	m.ImageProcessed(OutcomeFailed)
	m.EncodeAttempts(3)
}
