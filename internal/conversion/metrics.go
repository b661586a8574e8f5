package conversion

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes engine state to Prometheus.
type Metrics struct {
	active     prometheus.Gauge
	queueDepth prometheus.Gauge
	total      *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the engine collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plexorg_conversions_active",
			Help: "Conversions currently running.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plexorg_conversion_queue_depth",
			Help: "Conversions waiting for a free slot.",
		}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plexorg_conversions_total",
			Help: "Finished conversions by terminal status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plexorg_conversion_duration_seconds",
			Help:    "Wall time of finished conversions.",
			Buckets: prometheus.ExponentialBuckets(30, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.active, m.queueDepth, m.total, m.duration)
	}
	return m
}

func (m *Metrics) observe(active, queued int) {
	if m == nil {
		return
	}
	m.active.Set(float64(active))
	m.queueDepth.Set(float64(queued))
}

func (m *Metrics) finished(t Task) {
	if m == nil {
		return
	}
	status := string(t.Status)
	if t.Cancelled {
		status = "cancelled"
	}
	m.total.WithLabelValues(status).Inc()
	if !t.StartedAt.IsZero() {
		m.duration.Observe(t.CompletedAt.Sub(t.StartedAt).Seconds())
	}
}
