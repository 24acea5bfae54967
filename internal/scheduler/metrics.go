package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	jobResultSuccess = "success"
	jobResultError   = "error"
	jobResultTimeout = "timeout"
	jobResultSkipped = "skipped"
)

type jobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newJobMetrics(reg prometheus.Registerer) *jobMetrics {
	m := &jobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labinventory_scheduler_job_runs_total",
			Help: "Scheduler job runs by outcome.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labinventory_scheduler_job_duration_seconds",
			Help:    "Scheduler job wall time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	if reg != nil {
		m.runs = register(reg, m.runs)
		m.duration = register(reg, m.duration)
	}
	return m
}

// register returns the already registered collector when another scheduler instance got there first.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func (m *jobMetrics) observe(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, jobResult(err)).Inc()
	m.duration.WithLabelValues(job).Observe(took.Seconds())
}

func (m *jobMetrics) skipped(job string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(job, jobResultSkipped).Inc()
}

func jobResult(err error) string {
	switch {
	case err == nil:
		return jobResultSuccess
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return jobResultTimeout
	default:
		return jobResultError
	}
}
