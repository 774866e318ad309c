package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PromMetrics struct {
	polled         prometheus.Counter
	queueLength    prometheus.Gauge
	started        prometheus.Counter
	succeeded      prometheus.Counter
	failed         prometheus.Counter
	sessionLatency prometheus.Histogram
	heartbeat      prometheus.Gauge
}

func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {

	m := &PromMetrics{
		polled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autopublish_drafts_polled_total",
			Help: "Number of drafts received from the backend queue",
		}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autopublish_queue_length",
			Help: "Number of drafts waiting to be published",
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autopublish_sessions_started_total",
			Help: "Number of publish sessions started",
		}),
		succeeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autopublish_sessions_succeeded_total",
			Help: "Number of publish sessions that published their draft",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "autopublish_sessions_failed_total",
			Help: "Number of publish sessions that failed",
		}),
		sessionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "autopublish_session_duration_seconds",
			Help:    "Duration of publish sessions",
			Buckets: []float64{5, 10, 15, 20, 30, 45, 60, 90},
		}),
		heartbeat: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "autopublish_heartbeat_timestamp_seconds",
			Help: "Unix time of the last queue manager heartbeat",
		}),
	}
	reg.MustRegister(m.polled, m.queueLength, m.started, m.succeeded, m.failed, m.sessionLatency, m.heartbeat)
	return m
}

func (m *PromMetrics) DraftsPolled(n int) {
	m.polled.Add(float64(n))
}
func (m *PromMetrics) QueueLength(n int) {
	m.queueLength.Set(float64(n))
}
func (m *PromMetrics) SessionStarted() {
	m.started.Inc()
}
func (m *PromMetrics) SessionSucceeded() {
	m.succeeded.Inc()
}
func (m *PromMetrics) SessionFailed() {
	m.failed.Inc()
}
func (m *PromMetrics) SessionLatency(d time.Duration) {
	m.sessionLatency.Observe(d.Seconds())
}
func (m *PromMetrics) Heartbeat() {
	m.heartbeat.SetToCurrentTime()
}
