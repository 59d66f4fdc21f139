// Package observability provides metrics and monitoring capabilities for the SiteLenz application.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry       *prometheus.Registry
	Classifier     *metrics.ClassifierMetrics
	Speech         *metrics.SpeechMetrics
	Capture        *metrics.CaptureMetrics
	Reconstruction *metrics.ReconstructionMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	classifierMetrics, err := metrics.NewClassifierMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier metrics: %w", err)
	}

	speechMetrics, err := metrics.NewSpeechMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech metrics: %w", err)
	}

	captureMetrics, err := metrics.NewCaptureMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture metrics: %w", err)
	}

	reconstructionMetrics, err := metrics.NewReconstructionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconstruction metrics: %w", err)
	}

	return &Metrics{
		registry:       registry,
		Classifier:     classifierMetrics,
		Speech:         speechMetrics,
		Capture:        captureMetrics,
		Reconstruction: reconstructionMetrics,
	}, nil
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
