package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconstructionMetrics contains all Prometheus metrics related to the 3D
// reconstruction pipeline.
type ReconstructionMetrics struct {
	JobsTotal     *prometheus.CounterVec
	StepDuration  *prometheus.HistogramVec
	ImagesPerJob  prometheus.Histogram
	ActiveJobs    prometheus.Gauge
	UploadsTotal  prometheus.Counter
	UploadsFailed prometheus.Counter
}

// NewReconstructionMetrics creates a new instance of ReconstructionMetrics
// and registers the collectors with the given registry.
func NewReconstructionMetrics(registry *prometheus.Registry) (*ReconstructionMetrics, error) {
	m := &ReconstructionMetrics{
		JobsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelenz_reconstruction_jobs_total",
				Help: "Total number of reconstruction jobs partitioned by final status.",
			},
			[]string{"status"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitelenz_reconstruction_step_duration_seconds",
				Help:    "Time taken by each COLMAP pipeline step.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
			[]string{"step"},
		),
		ImagesPerJob: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitelenz_reconstruction_images",
				Help:    "Number of input images per reconstruction job.",
				Buckets: []float64{10, 25, 50, 100, 150, 200},
			},
		),
		ActiveJobs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitelenz_reconstruction_active_jobs",
				Help: "Number of reconstruction jobs currently running.",
			},
		),
		UploadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitelenz_reconstruction_uploads_total",
				Help: "Total number of images uploaded to reconstruction sessions.",
			},
		),
		UploadsFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitelenz_reconstruction_uploads_failed_total",
				Help: "Total number of rejected reconstruction image uploads.",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.JobsTotal,
		m.StepDuration,
		m.ImagesPerJob,
		m.ActiveJobs,
		m.UploadsTotal,
		m.UploadsFailed,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register reconstruction metrics: %w", err)
		}
	}

	return m, nil
}
