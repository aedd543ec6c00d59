// Package metrics exposes Prometheus instrumentation for task operations.
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "mlptask"

// Operation labels.
const (
	OpFit     = "fit"
	OpPredict = "predict"
	OpPrune   = "prune"
	OpRestore = "restore"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors for one task.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	keys       prometheus.Counter
	entries    prometheus.Gauge
	fitted     prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Total number of task operations by result",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Task operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		keys: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "predicted_keys_total",
			Help:      "Total number of keys answered by predict",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "model_entries",
			Help:      "Number of entries in the in-memory model",
		}),
		fitted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "fitted",
			Help:      "1 when the task holds a fitted model",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration, m.keys, m.entries, m.fitted} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one operation that started at start.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// AddPredicted counts keys answered by a successful predict.
func (m *Metrics) AddPredicted(n int) {
	if m == nil {
		return
	}
	m.keys.Add(float64(n))
}

// SetModel records the in-memory model size and fitted flag.
func (m *Metrics) SetModel(entries int, fitted bool) {
	if m == nil {
		return
	}
	m.entries.Set(float64(entries))
	if fitted {
		m.fitted.Set(1)
	} else {
		m.fitted.Set(0)
	}
}
