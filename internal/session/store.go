package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
)

// Store persists session records under the configured export directories.
// Appends update in-memory state and immediately rewrite the session file.
type Store struct {
	transcriptDir     string
	classificationDir string
	unifiedDir        string

	mu              sync.Mutex
	transcripts     map[string]*transcriptFile
	classifications map[string]*classificationFile
	unified         map[string]*unifiedFile
}

type transcriptFile struct {
	ID        string            `json:"session_id"`
	StartedAt string            `json:"started_at"`
	Entries   []TranscriptEntry `json:"transcripts"`
}

type classificationFile struct {
	ID        string                `json:"session_id"`
	StartedAt string                `json:"started_at"`
	Entries   []ClassificationEntry `json:"classifications"`
}

type unifiedFile struct {
	ID        string         `json:"session_id"`
	StartedAt string         `json:"started_at"`
	Entries   []UnifiedEntry `json:"logs"`
}

// NewStore creates the export directories and returns a store.
func NewStore(settings *conf.Settings) (*Store, error) {
	export := settings.Capture.Export
	s := &Store{
		transcriptDir:     filepath.Join(export.BasePath, export.TranscriptDir),
		classificationDir: filepath.Join(export.BasePath, export.ClassificationDir),
		unifiedDir:        filepath.Join(export.BasePath, export.UnifiedDir),
		transcripts:       make(map[string]*transcriptFile),
		classifications:   make(map[string]*classificationFile),
		unified:           make(map[string]*unifiedFile),
	}

	for _, dir := range []string{s.transcriptDir, s.classificationDir, s.unifiedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("session").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}

	return s, nil
}

func sessionFileName(id string) string {
	return fmt.Sprintf("session_%s.json", id)
}

// AppendTranscript adds an entry to the session's transcript file.
func (s *Store) AppendTranscript(sessionID string, entry TranscriptEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.transcripts[sessionID]
	if !ok {
		f = &transcriptFile{ID: sessionID, StartedAt: Timestamp()}
		if err := loadJSON(filepath.Join(s.transcriptDir, sessionFileName(sessionID)), f); err != nil && !os.IsNotExist(err) {
			return wrapIO(err, sessionID)
		}
		s.transcripts[sessionID] = f
	}
	f.Entries = append(f.Entries, entry)
	return s.flush(filepath.Join(s.transcriptDir, sessionFileName(sessionID)), f)
}

// AppendClassification adds an entry to the session's classification file.
func (s *Store) AppendClassification(sessionID string, entry ClassificationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.classifications[sessionID]
	if !ok {
		f = &classificationFile{ID: sessionID, StartedAt: Timestamp()}
		if err := loadJSON(filepath.Join(s.classificationDir, sessionFileName(sessionID)), f); err != nil && !os.IsNotExist(err) {
			return wrapIO(err, sessionID)
		}
		s.classifications[sessionID] = f
	}
	f.Entries = append(f.Entries, entry)
	return s.flush(filepath.Join(s.classificationDir, sessionFileName(sessionID)), f)
}

// AppendUnified adds an entry to the session's unified capture log.
func (s *Store) AppendUnified(sessionID string, entry UnifiedEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.unified[sessionID]
	if !ok {
		f = &unifiedFile{ID: sessionID, StartedAt: Timestamp()}
		if err := loadJSON(filepath.Join(s.unifiedDir, sessionFileName(sessionID)), f); err != nil && !os.IsNotExist(err) {
			return wrapIO(err, sessionID)
		}
		s.unified[sessionID] = f
	}
	f.Entries = append(f.Entries, entry)
	return s.flush(filepath.Join(s.unifiedDir, sessionFileName(sessionID)), f)
}

// Transcripts returns the transcript entries of a session. A session with
// no transcript file yields an empty slice.
func (s *Store) Transcripts(sessionID string) ([]TranscriptEntry, error) {
	var f transcriptFile
	err := loadJSON(filepath.Join(s.transcriptDir, sessionFileName(sessionID)), &f)
	if os.IsNotExist(err) {
		return []TranscriptEntry{}, nil
	}
	if err != nil {
		return nil, wrapIO(err, sessionID)
	}
	return f.Entries, nil
}

// Classifications returns the classification entries of a session.
func (s *Store) Classifications(sessionID string) ([]ClassificationEntry, error) {
	var f classificationFile
	err := loadJSON(filepath.Join(s.classificationDir, sessionFileName(sessionID)), &f)
	if os.IsNotExist(err) {
		return []ClassificationEntry{}, nil
	}
	if err != nil {
		return nil, wrapIO(err, sessionID)
	}
	return f.Entries, nil
}

// UnifiedLogs returns the unified capture entries of a session.
func (s *Store) UnifiedLogs(sessionID string) ([]UnifiedEntry, error) {
	var f unifiedFile
	err := loadJSON(filepath.Join(s.unifiedDir, sessionFileName(sessionID)), &f)
	if os.IsNotExist(err) {
		return []UnifiedEntry{}, nil
	}
	if err != nil {
		return nil, wrapIO(err, sessionID)
	}
	return f.Entries, nil
}

// AllUnifiedLogs returns the unified capture entries of every session,
// newest session first.
func (s *Store) AllUnifiedLogs() ([]UnifiedEntry, error) {
	var files []unifiedFile
	if err := forEachSessionFile(s.unifiedDir, func(path string) error {
		var f unifiedFile
		if err := loadJSON(path, &f); err != nil {
			return err
		}
		files = append(files, f)
		return nil
	}); err != nil {
		return nil, err
	}
	// Session ids are timestamps, so lexical order is chronological.
	sort.Slice(files, func(i, j int) bool { return files[i].ID > files[j].ID })

	logs := []UnifiedEntry{}
	for _, f := range files {
		logs = append(logs, f.Entries...)
	}
	return logs, nil
}

// Sessions lists all stored sessions, newest first. Counts are merged
// across the three record kinds.
func (s *Store) Sessions() ([]Summary, error) {
	summaries := make(map[string]*Summary)

	get := func(id, startedAt string) *Summary {
		sum, ok := summaries[id]
		if !ok {
			sum = &Summary{ID: id}
			summaries[id] = sum
		}
		if sum.StartedAt == "" || (startedAt != "" && startedAt < sum.StartedAt) {
			sum.StartedAt = startedAt
		}
		return sum
	}

	if err := forEachSessionFile(s.transcriptDir, func(path string) error {
		var f transcriptFile
		if err := loadJSON(path, &f); err != nil {
			return err
		}
		get(f.ID, f.StartedAt).TranscriptCount = len(f.Entries)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := forEachSessionFile(s.classificationDir, func(path string) error {
		var f classificationFile
		if err := loadJSON(path, &f); err != nil {
			return err
		}
		get(f.ID, f.StartedAt).ClassificationCount = len(f.Entries)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := forEachSessionFile(s.unifiedDir, func(path string) error {
		var f unifiedFile
		if err := loadJSON(path, &f); err != nil {
			return err
		}
		get(f.ID, f.StartedAt).UnifiedCount = len(f.Entries)
		return nil
	}); err != nil {
		return nil, err
	}

	list := make([]Summary, 0, len(summaries))
	for _, sum := range summaries {
		list = append(list, *sum)
	}
	// Session ids are timestamps, so lexical order is chronological.
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list, nil
}

// Session returns the full content of one session, merged from the
// three record kinds.
func (s *Store) Session(sessionID string) (*Detail, error) {
	transcripts, err := s.Transcripts(sessionID)
	if err != nil {
		return nil, err
	}
	classifications, err := s.Classifications(sessionID)
	if err != nil {
		return nil, err
	}
	logs, err := s.UnifiedLogs(sessionID)
	if err != nil {
		return nil, err
	}

	if len(transcripts) == 0 && len(classifications) == 0 && len(logs) == 0 {
		return nil, errors.Newf("session not found: %s", sessionID).
			Component("session").
			Category(errors.CategoryNotFound).
			Build()
	}

	detail := &Detail{
		ID:              sessionID,
		Transcripts:     transcripts,
		Classifications: classifications,
		UnifiedLogs:     logs,
	}

	var f transcriptFile
	if err := loadJSON(filepath.Join(s.transcriptDir, sessionFileName(sessionID)), &f); err == nil {
		detail.StartedAt = f.StartedAt
	}
	return detail, nil
}

// SearchTranscripts returns transcript entries containing any of the
// keywords, case-insensitively. An empty sessionID searches all sessions.
func (s *Store) SearchTranscripts(sessionID string, keywords []string) ([]TranscriptEntry, error) {
	ids, err := s.searchTargets(sessionID)
	if err != nil {
		return nil, err
	}

	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	matches := []TranscriptEntry{}
	for _, id := range ids {
		entries, err := s.Transcripts(id)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			text := strings.ToLower(entry.Text)
			for _, kw := range lowered {
				if kw != "" && strings.Contains(text, kw) {
					matches = append(matches, entry)
					break
				}
			}
		}
	}
	return matches, nil
}

// SearchClassifications returns classification entries matching any of
// the defect types at or above the confidence threshold. Empty
// defectTypes matches every label.
func (s *Store) SearchClassifications(sessionID string, defectTypes []string, minConfidence float64) ([]ClassificationEntry, error) {
	ids, err := s.searchTargets(sessionID)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(defectTypes))
	for _, d := range defectTypes {
		wanted[strings.ToLower(d)] = true
	}

	matches := []ClassificationEntry{}
	for _, id := range ids {
		entries, err := s.Classifications(id)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.Confidence < minConfidence {
				continue
			}
			if len(wanted) > 0 && !wanted[strings.ToLower(entry.Prediction)] {
				continue
			}
			matches = append(matches, entry)
		}
	}
	return matches, nil
}

// searchTargets resolves the session ids a search should cover.
func (s *Store) searchTargets(sessionID string) ([]string, error) {
	if sessionID != "" {
		return []string{sessionID}, nil
	}
	summaries, err := s.Sessions()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(summaries))
	for i, sum := range summaries {
		ids[i] = sum.ID
	}
	return ids, nil
}

// flush writes the record to disk via a temp file and rename so readers
// never observe a partial write.
func (s *Store) flush(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("session").
			Category(errors.CategoryFileIO).
			Build()
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return wrapIO(err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return wrapIO(err, path)
	}
	return nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func forEachSessionFile(dir string, fn func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return wrapIO(err, dir)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if err := fn(filepath.Join(dir, name)); err != nil {
			return wrapIO(err, name)
		}
	}
	return nil
}

func wrapIO(err error, subject string) error {
	return errors.New(err).
		Component("session").
		Category(errors.CategoryFileIO).
		Context("subject", subject).
		Build()
}
