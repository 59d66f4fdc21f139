// Package datastore mirrors session entries into a relational database
// so inspection history stays queryable after the JSON session files
// rotate out.
package datastore

import "time"

// Classification is a stored camera frame classification.
type Classification struct {
	ID            uint   `gorm:"primaryKey"`
	SessionID     string `gorm:"index:idx_classifications_session"`
	Timestamp     string
	FrameFile     string
	Prediction    string  `gorm:"index:idx_classifications_prediction"`
	Confidence    float64 `gorm:"index:idx_classifications_confidence"`
	Probabilities string  `gorm:"type:text"` // JSON-encoded label to percentage map
	CreatedAt     time.Time
}

// Transcript is a stored audio transcription.
type Transcript struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index:idx_transcripts_session"`
	Timestamp string
	Text      string `gorm:"type:text"`
	AudioFile string
	CreatedAt time.Time
}
