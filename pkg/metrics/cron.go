package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics tracks scheduled job runs by outcome.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

// NewCronJobMetrics registers on reg. A nil registerer yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_cron_job_runs_total",
			Help: "Scheduled job runs by result (ok or error).",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pos_cron_job_duration_seconds",
			Help:    "Wall time of scheduled job runs.",
			Buckets: []float64{.05, .25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pos_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run, for staleness alerts.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.lastSuccess)
	return m
}

// Observe records one finished run. finished is the wall-clock end time.
func (m *CronJobMetrics) Observe(job string, elapsed time.Duration, finished time.Time, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = normalizeLabel(job)
	m.duration.WithLabelValues(job).Observe(elapsed.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, "error").Inc()
		return
	}
	m.runs.WithLabelValues(job, "ok").Inc()
	m.lastSuccess.WithLabelValues(job).Set(float64(finished.Unix()))
}

// normalizeLabel keeps empty label values out of the series set.
func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
