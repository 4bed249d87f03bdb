package coworking

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records CRUD outcomes and record counts. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	records  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flexdesk",
			Name:      "operations_total",
			Help:      "Store operations by entity, operation and outcome.",
		}, []string{"entity", "op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flexdesk",
			Name:      "operation_duration_seconds",
			Help:      "Time spent in store operations, lock wait included.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"entity", "op"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flexdesk",
			Name:      "records",
			Help:      "Live records per entity.",
		}, []string{"entity"}),
	}
	for _, c := range []prometheus.Collector{m.ops, m.duration, m.records} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// observe is deferred by every Database operation with the start time taken
// before lock acquisition.
func (m *Metrics) observe(e Entity, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(string(e), op, outcomeOf(err)).Inc()
	m.duration.WithLabelValues(string(e), op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) setRecords(e Entity, n int) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(string(e)).Set(float64(n))
}
