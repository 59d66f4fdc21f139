package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// SpeechMetrics contains all Prometheus metrics related to speech recognition.
type SpeechMetrics struct {
	TranscriptionCounter  *prometheus.CounterVec
	TranscriptionErrors   *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram
}

// NewSpeechMetrics creates a new instance of SpeechMetrics and registers
// the collectors with the given registry.
func NewSpeechMetrics(registry *prometheus.Registry) (*SpeechMetrics, error) {
	m := &SpeechMetrics{
		TranscriptionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelenz_transcriptions_total",
				Help: "Total number of completed transcriptions partitioned by engine.",
			},
			[]string{"engine"},
		),
		TranscriptionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelenz_transcription_errors_total",
				Help: "Total number of failed transcription attempts partitioned by engine.",
			},
			[]string{"engine"},
		),
		TranscriptionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitelenz_transcription_duration_seconds",
				Help:    "Time taken to transcribe an audio chunk.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}

	collectors := []prometheus.Collector{
		m.TranscriptionCounter,
		m.TranscriptionErrors,
		m.TranscriptionDuration,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register speech metrics: %w", err)
		}
	}

	return m, nil
}
