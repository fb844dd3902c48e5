// Package telemetry holds the pipeline's prometheus collectors. A batch
// run has no scrape endpoint, so the registry is written to a textfile
// for the node exporter textfile collector.
package telemetry

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "finhealth"

// Observer is the process-wide collector set.
var Observer = &Metrics{
	mutex:      new(sync.RWMutex),
	registry:   prometheus.NewRegistry(),
	prometheus: NewPrometheusMetrics(),
}

func init() {
	Observer.registry.MustRegister(Observer.prometheus.collectors()...)
}

// Metrics wraps the collectors behind small increment helpers.
type Metrics struct {
	mutex      *sync.RWMutex
	registry   *prometheus.Registry
	prometheus Prometheus
}

// Prometheus groups the raw collectors.
type Prometheus struct {
	Rows             *prometheus.CounterVec
	UnseenCategories *prometheus.CounterVec
	LabelFailures    prometheus.Counter
	Iterations       prometheus.Counter
	Accuracy         *prometheus.GaugeVec
	StageSeconds     *prometheus.HistogramVec
}

// NewPrometheusMetrics creates unregistered collectors.
func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Dataset rows by outcome.",
		}, []string{"outcome"}),
		UnseenCategories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unseen_categories_total",
			Help:      "Categorical values encoded as all zeros because they were absent at fit time.",
		}, []string{"column"}),
		LabelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "label_encoding_failures_total",
			Help:      "Evaluation rows whose label was not seen during training.",
		}),
		Iterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "boosting_iterations_total",
			Help:      "Completed boosting iterations.",
		}),
		Accuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "evaluation_accuracy",
			Help:      "Accuracy on the held-out split.",
		}, []string{"kind"}),
		StageSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
}

func (p Prometheus) collectors() []prometheus.Collector {
	return []prometheus.Collector{p.Rows, p.UnseenCategories, p.LabelFailures, p.Iterations, p.Accuracy, p.StageSeconds}
}

// RowLoaded counts a parsed row.
func (m *Metrics) RowLoaded() { m.prometheus.Rows.WithLabelValues("loaded").Inc() }

// RowRejected counts a row that failed schema validation.
func (m *Metrics) RowRejected() { m.prometheus.Rows.WithLabelValues("rejected").Inc() }

// UnseenCategory counts an unseen categorical value in column.
func (m *Metrics) UnseenCategory(column string) {
	m.prometheus.UnseenCategories.WithLabelValues(column).Inc()
}

// UnseenCategoryCounter returns the counter behind UnseenCategory.
func (m *Metrics) UnseenCategoryCounter(column string) prometheus.Counter {
	return m.prometheus.UnseenCategories.WithLabelValues(column)
}

// RowCounter returns the row counter for outcome "loaded" or "rejected".
func (m *Metrics) RowCounter(outcome string) prometheus.Counter {
	return m.prometheus.Rows.WithLabelValues(outcome)
}

// LabelFailures counts n rows with unknown labels.
func (m *Metrics) LabelFailures(n int) { m.prometheus.LabelFailures.Add(float64(n)) }

// Iteration counts one boosting iteration.
func (m *Metrics) Iteration() { m.prometheus.Iterations.Inc() }

// Accuracy records an evaluation accuracy of the given kind ("micro", "macro").
func (m *Metrics) Accuracy(kind string, v float64) {
	m.prometheus.Accuracy.WithLabelValues(kind).Set(v)
}

// StageDuration records the wall time of a pipeline stage.
func (m *Metrics) StageDuration(stage string, seconds float64) {
	m.prometheus.StageSeconds.WithLabelValues(stage).Observe(seconds)
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.registry
}

// WriteTextfile writes the current values in the text exposition format,
// creating the parent directory.
func (m *Metrics) WriteTextfile(path string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
