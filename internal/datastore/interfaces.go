package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
)

// Interface abstracts the history database operations.
type Interface interface {
	Open() error
	Close() error
	SaveClassification(c *Classification) error
	SaveTranscript(t *Transcript) error
	ClassificationsBySession(sessionID string) ([]Classification, error)
	TranscriptsBySession(sessionID string) ([]Transcript, error)
	SearchTranscripts(query string, limit int) ([]Transcript, error)
	DefectClassifications(minConfidence float64, limit int) ([]Classification, error)
	Counts() (classifications, transcripts int64, err error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store for the configured database backend. Only SQLite
// is supported at the moment.
func New(settings *conf.Settings) Interface {
	return &SQLiteStore{Settings: settings}
}

// SaveClassification inserts a classification record.
func (ds *DataStore) SaveClassification(c *Classification) error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return ds.DB.Create(c).Error
}

// SaveTranscript inserts a transcript record.
func (ds *DataStore) SaveTranscript(t *Transcript) error {
	if ds.DB == nil {
		return fmt.Errorf("database connection is not initialized")
	}
	return ds.DB.Create(t).Error
}

// ClassificationsBySession returns a session's classifications in insert order.
func (ds *DataStore) ClassificationsBySession(sessionID string) ([]Classification, error) {
	var rows []Classification
	err := ds.DB.Where("session_id = ?", sessionID).Order("id asc").Find(&rows).Error
	return rows, err
}

// TranscriptsBySession returns a session's transcripts in insert order.
func (ds *DataStore) TranscriptsBySession(sessionID string) ([]Transcript, error) {
	var rows []Transcript
	err := ds.DB.Where("session_id = ?", sessionID).Order("id asc").Find(&rows).Error
	return rows, err
}

// SearchTranscripts returns transcripts whose text contains the query,
// newest first.
func (ds *DataStore) SearchTranscripts(query string, limit int) ([]Transcript, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []Transcript
	err := ds.DB.Where("text LIKE ?", "%"+query+"%").
		Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// DefectClassifications returns non-plain classifications at or above the
// confidence threshold, newest first.
func (ds *DataStore) DefectClassifications(minConfidence float64, limit int) ([]Classification, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []Classification
	err := ds.DB.Where("prediction <> ? AND confidence >= ?", "Plain (Normal)", minConfidence).
		Order("id desc").Limit(limit).Find(&rows).Error
	return rows, err
}

// Counts returns the total number of stored classifications and transcripts.
func (ds *DataStore) Counts() (classifications, transcripts int64, err error) {
	if err = ds.DB.Model(&Classification{}).Count(&classifications).Error; err != nil {
		return 0, 0, err
	}
	if err = ds.DB.Model(&Transcript{}).Count(&transcripts).Error; err != nil {
		return 0, 0, err
	}
	return classifications, transcripts, nil
}
