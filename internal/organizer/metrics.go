package organizer

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts organize outcomes.
type Metrics struct {
	results *prometheus.CounterVec
	batches prometheus.Histogram
}

// NewMetrics creates the organizer collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plexorg_organize_results_total",
			Help: "Organize results by action and outcome.",
		}, []string{"action", "success"}),
		batches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "plexorg_organize_batch_duration_seconds",
			Help:    "Wall time of organize batches.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.results, m.batches)
	}
	return m
}

func (m *Metrics) result(r Result) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(r.Action), strconv.FormatBool(r.Success)).Inc()
}

func (m *Metrics) batch(d time.Duration) {
	if m == nil {
		return
	}
	m.batches.Observe(d.Seconds())
}
