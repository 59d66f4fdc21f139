// Package metrics provides custom Prometheus metrics for the SiteLenz application.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ClassifierMetrics contains all Prometheus metrics related to defect classification.
type ClassifierMetrics struct {
	ClassificationCounter *prometheus.CounterVec
	ClassificationErrors  prometheus.Counter
	PredictionDuration    prometheus.Histogram
	ModelLoadedGauge      prometheus.Gauge
}

// NewClassifierMetrics creates a new instance of ClassifierMetrics and
// registers the collectors with the given registry.
func NewClassifierMetrics(registry *prometheus.Registry) (*ClassifierMetrics, error) {
	m := &ClassifierMetrics{
		ClassificationCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelenz_classifications_total",
				Help: "Total number of wall defect classifications partitioned by predicted label.",
			},
			[]string{"label"},
		),
		ClassificationErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitelenz_classification_errors_total",
				Help: "Total number of failed classification attempts.",
			},
		),
		PredictionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitelenz_prediction_duration_seconds",
				Help:    "Time taken to run a single model inference.",
				Buckets: prometheus.DefBuckets,
			},
		),
		ModelLoadedGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitelenz_classifier_model_loaded",
				Help: "Whether the classifier model is loaded (1) or not (0).",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.ClassificationCounter,
		m.ClassificationErrors,
		m.PredictionDuration,
		m.ModelLoadedGauge,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register classifier metrics: %w", err)
		}
	}

	return m, nil
}

// RecordClassification increments the counter for a predicted label.
func (m *ClassifierMetrics) RecordClassification(label string) {
	m.ClassificationCounter.WithLabelValues(label).Inc()
}
