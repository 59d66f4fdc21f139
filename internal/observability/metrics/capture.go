package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics contains all Prometheus metrics related to the unified
// audio and camera capture loops.
type CaptureMetrics struct {
	FramesCaptured   prometheus.Counter
	AudioChunksSaved prometheus.Counter
	CaptureErrors    *prometheus.CounterVec
	ActiveSessions   *prometheus.GaugeVec
}

// NewCaptureMetrics creates a new instance of CaptureMetrics and registers
// the collectors with the given registry.
func NewCaptureMetrics(registry *prometheus.Registry) (*CaptureMetrics, error) {
	m := &CaptureMetrics{
		FramesCaptured: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitelenz_frames_captured_total",
				Help: "Total number of camera frames captured and classified.",
			},
		),
		AudioChunksSaved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitelenz_audio_chunks_total",
				Help: "Total number of audio chunks exported for transcription.",
			},
		),
		CaptureErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitelenz_capture_errors_total",
				Help: "Total number of capture loop errors partitioned by stream.",
			},
			[]string{"stream"},
		),
		ActiveSessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sitelenz_capture_active",
				Help: "Whether a capture stream is currently recording (1) or idle (0).",
			},
			[]string{"stream"},
		),
	}

	collectors := []prometheus.Collector{
		m.FramesCaptured,
		m.AudioChunksSaved,
		m.CaptureErrors,
		m.ActiveSessions,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register capture metrics: %w", err)
		}
	}

	return m, nil
}
