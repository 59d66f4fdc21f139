// Package session persists capture session records as JSON files.
// Transcripts, classifications and unified capture logs each live in
// their own directory, one file per session, flushed after every append
// so a crash loses at most the entry being written.
package session

import (
	"time"

	"github.com/ShashidharM0118/sitelenz/internal/classifier"
)

// TranscriptEntry is a single transcribed audio chunk.
type TranscriptEntry struct {
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
	AudioFile string `json:"audio_file,omitempty"`
}

// ClassificationEntry is a single classified camera frame.
type ClassificationEntry struct {
	Timestamp     string             `json:"timestamp"`
	FrameFile     string             `json:"frame_file,omitempty"`
	Prediction    string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities,omitempty"`
}

// UnifiedEntry pairs a transcript with the frame classified at the same
// moment during unified monitoring.
type UnifiedEntry struct {
	Timestamp      string                 `json:"timestamp"`
	Transcript     string                 `json:"transcript,omitempty"`
	Classification *classifier.Prediction `json:"classification,omitempty"`
	ImageData      string                 `json:"image_data,omitempty"`
}

// Summary describes a stored session for listing.
type Summary struct {
	ID                  string `json:"session_id"`
	StartedAt           string `json:"started_at"`
	TranscriptCount     int    `json:"transcript_count"`
	ClassificationCount int    `json:"classification_count"`
	UnifiedCount        int    `json:"unified_count"`
}

// Detail is the full content of a stored session.
type Detail struct {
	ID              string                `json:"session_id"`
	StartedAt       string                `json:"started_at"`
	Transcripts     []TranscriptEntry     `json:"transcripts"`
	Classifications []ClassificationEntry `json:"classifications"`
	UnifiedLogs     []UnifiedEntry        `json:"unified_logs"`
}

// NewID returns a session id derived from the current local time.
func NewID() string {
	return time.Now().Format("20060102_150405")
}

// Timestamp returns the current time formatted for log entries.
func Timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
