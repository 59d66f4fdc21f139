package api

import (
	"encoding/json"
	"strings"

	"github.com/ShashidharM0118/sitelenz/internal/datastore"
	"github.com/ShashidharM0118/sitelenz/internal/session"
)

// historyQueryLimit caps rows fetched from the history database per request.
const historyQueryLimit = 500

// historyTranscripts loads a session's transcripts from the history
// database instead of the session files.
func (c *Controller) historyTranscripts(sessionID string) ([]session.TranscriptEntry, error) {
	rows, err := c.DS.TranscriptsBySession(sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]session.TranscriptEntry, len(rows))
	for i := range rows {
		entries[i] = transcriptFromRow(&rows[i])
	}
	return entries, nil
}

// historyClassifications loads a session's classifications from the
// history database.
func (c *Controller) historyClassifications(sessionID string) ([]session.ClassificationEntry, error) {
	rows, err := c.DS.ClassificationsBySession(sessionID)
	if err != nil {
		return nil, err
	}
	entries := make([]session.ClassificationEntry, len(rows))
	for i := range rows {
		entries[i] = classificationFromRow(&rows[i])
	}
	return entries, nil
}

// historySearchTranscripts runs the keyword search against the history
// database, merging per-keyword matches newest first.
func (c *Controller) historySearchTranscripts(sessionID string, keywords []string) ([]session.TranscriptEntry, error) {
	seen := make(map[uint]bool)
	var rows []datastore.Transcript
	for _, keyword := range keywords {
		found, err := c.DS.SearchTranscripts(keyword, historyQueryLimit)
		if err != nil {
			return nil, err
		}
		for i := range found {
			if seen[found[i].ID] {
				continue
			}
			if sessionID != "" && found[i].SessionID != sessionID {
				continue
			}
			seen[found[i].ID] = true
			rows = append(rows, found[i])
		}
	}

	matches := make([]session.TranscriptEntry, len(rows))
	for i := range rows {
		matches[i] = transcriptFromRow(&rows[i])
	}
	return matches, nil
}

// historySearchClassifications runs the defect search against the history
// database.
func (c *Controller) historySearchClassifications(sessionID string, defectTypes []string, minConfidence float64) ([]session.ClassificationEntry, error) {
	rows, err := c.DS.DefectClassifications(minConfidence, historyQueryLimit)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(defectTypes))
	for _, d := range defectTypes {
		wanted[strings.ToLower(d)] = true
	}

	matches := []session.ClassificationEntry{}
	for i := range rows {
		if sessionID != "" && rows[i].SessionID != sessionID {
			continue
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(rows[i].Prediction)] {
			continue
		}
		matches = append(matches, classificationFromRow(&rows[i]))
	}
	return matches, nil
}

func transcriptFromRow(row *datastore.Transcript) session.TranscriptEntry {
	return session.TranscriptEntry{
		Timestamp: row.Timestamp,
		Text:      row.Text,
		AudioFile: row.AudioFile,
	}
}

func classificationFromRow(row *datastore.Classification) session.ClassificationEntry {
	probabilities := map[string]float64{}
	if row.Probabilities != "" {
		// stored as JSON text, tolerate malformed rows
		_ = json.Unmarshal([]byte(row.Probabilities), &probabilities)
	}
	return session.ClassificationEntry{
		Timestamp:     row.Timestamp,
		FrameFile:     row.FrameFile,
		Prediction:    row.Prediction,
		Confidence:    row.Confidence,
		Probabilities: probabilities,
	}
}
