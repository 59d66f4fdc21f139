package reconstruction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ShashidharM0118/sitelenz/internal/classifier"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
)

// jobTimeout bounds a full pipeline run including dense stereo.
const jobTimeout = 2 * time.Hour

// Vector3 is a position or rotation in session space.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is the camera pose reported by the client at capture time.
type Pose struct {
	Position Vector3 `json:"position"`
	Rotation Vector3 `json:"rotation"`
}

// ImageRecord describes one uploaded session image.
type ImageRecord struct {
	Filename       string  `json:"filename"`
	CameraPose     Pose    `json:"camera_pose"`
	Transcript     string  `json:"transcript,omitempty"`
	Classification string  `json:"classification,omitempty"`
	Confidence     float64 `json:"confidence,omitempty"`
	Timestamp      string  `json:"timestamp"`
}

// Annotation marks a defect observed during capture, positioned at the
// camera pose of the image that saw it.
type Annotation struct {
	DefectType string  `json:"defect_type"`
	Position   Vector3 `json:"position"`
	Confidence float64 `json:"confidence"`
	Transcript string  `json:"transcript,omitempty"`
	ImageFile  string  `json:"image_file"`
}

// Session is a reconstruction capture session.
type Session struct {
	ID          string        `json:"session_id"`
	ProjectName string        `json:"project_name"`
	RoomType    string        `json:"room_type"`
	Folder      string        `json:"-"`
	Images      []ImageRecord `json:"images"`
	Annotations []Annotation  `json:"annotations"`
	CreatedAt   string        `json:"created_at"`
	Status      string        `json:"status"`
}

// Job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job tracks one reconstruction run.
type Job struct {
	ID          string            `json:"recon_id"`
	SessionID   string            `json:"session_id"`
	Status      string            `json:"status"`
	Progress    int               `json:"progress"`
	CurrentStep string            `json:"current_step,omitempty"`
	Message     string            `json:"message,omitempty"`
	Errors      []string          `json:"errors,omitempty"`
	Files       map[string]string `json:"files,omitempty"`
	Dense       bool              `json:"dense"`
	PointCount  int               `json:"point_count,omitempty"`
	StartedAt   string            `json:"started_at"`
	CompletedAt string            `json:"completed_at,omitempty"`
}

// Manager owns reconstruction sessions and jobs. Sessions are disk
// backed and reloaded on restart; jobs are in-memory only.
type Manager struct {
	settings *conf.Settings
	runner   *Runner
	metrics  *metrics.ReconstructionMetrics

	mu       sync.Mutex
	sessions map[string]*Session
	jobs     map[string]*Job
	lastID   int64
}

// NewManager creates the session and output directories and reloads any
// sessions already on disk.
func NewManager(settings *conf.Settings, runner *Runner, m *metrics.ReconstructionMetrics) (*Manager, error) {
	mgr := &Manager{
		settings: settings,
		runner:   runner,
		metrics:  m,
		sessions: make(map[string]*Session),
		jobs:     make(map[string]*Job),
	}

	for _, dir := range []string{settings.Reconstruction.SessionsDir, settings.Reconstruction.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("reconstruction").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}

	if err := mgr.reloadSessions(); err != nil {
		return nil, err
	}
	return mgr, nil
}

// reloadSessions restores the in-memory registry from session.json files.
func (m *Manager) reloadSessions() error {
	entries, err := os.ReadDir(m.settings.Reconstruction.SessionsDir)
	if err != nil {
		return errors.New(err).
			Component("reconstruction").
			Category(errors.CategoryFileIO).
			Build()
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		folder := filepath.Join(m.settings.Reconstruction.SessionsDir, entry.Name())
		data, err := os.ReadFile(filepath.Join(folder, "session.json"))
		if err != nil {
			continue
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			slog.Warn("skipping unreadable session file", "folder", folder, "error", err)
			continue
		}
		s.Folder = folder
		m.sessions[s.ID] = &s
	}
	return nil
}

// nextID returns a unix-timestamp id with the given prefix, bumping past
// collisions when ids are requested within the same second.
func (m *Manager) nextID(prefix string) string {
	now := time.Now().Unix()
	if now <= m.lastID {
		now = m.lastID + 1
	}
	m.lastID = now
	return fmt.Sprintf("%s_%d", prefix, now)
}

// StartSession creates a new capture session on disk.
func (m *Manager) StartSession(projectName, roomType string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID("session")
	folder := filepath.Join(m.settings.Reconstruction.SessionsDir, id)
	if err := os.MkdirAll(filepath.Join(folder, "images"), 0o755); err != nil {
		return nil, errors.New(err).
			Component("reconstruction").
			Category(errors.CategoryFileIO).
			Context("dir", folder).
			Build()
	}

	s := &Session{
		ID:          id,
		ProjectName: projectName,
		RoomType:    roomType,
		Folder:      folder,
		Images:      []ImageRecord{},
		Annotations: []Annotation{},
		CreatedAt:   time.Now().Format(time.RFC3339),
		Status:      "capturing",
	}
	m.sessions[id] = s

	if err := m.saveSessionLocked(s); err != nil {
		return nil, err
	}
	slog.Info("reconstruction session started", "session_id", id, "project", projectName)
	return s.snapshot(), nil
}

// UploadImage stores an image in the session, rejecting uploads past the
// configured cap. Non-plain classifications become defect annotations at
// the camera position.
func (m *Manager) UploadImage(sessionID string, imageData []byte, pose Pose, transcript, classification string, confidence float64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return 0, m.sessionNotFound(sessionID)
	}

	maxImages := m.settings.Reconstruction.MaxImages
	if maxImages <= 0 {
		maxImages = 200
	}
	if len(s.Images) >= maxImages {
		if m.metrics != nil {
			m.metrics.UploadsFailed.Inc()
		}
		return len(s.Images), errors.Newf("session %s is full: %d images", sessionID, maxImages).
			Component("reconstruction").
			Category(errors.CategoryLimit).
			Build()
	}

	filename := fmt.Sprintf("img_%04d.jpg", len(s.Images)+1)
	path := filepath.Join(s.Folder, "images", filename)
	if err := os.WriteFile(path, imageData, 0o644); err != nil {
		if m.metrics != nil {
			m.metrics.UploadsFailed.Inc()
		}
		return len(s.Images), wrapFileError(err, path)
	}

	record := ImageRecord{
		Filename:       filename,
		CameraPose:     pose,
		Transcript:     transcript,
		Classification: classification,
		Confidence:     confidence,
		Timestamp:      time.Now().Format(time.RFC3339),
	}
	s.Images = append(s.Images, record)

	if classification != "" && classifier.IsDefect(classification) {
		s.Annotations = append(s.Annotations, Annotation{
			DefectType: classification,
			Position:   pose.Position,
			Confidence: confidence,
			Transcript: transcript,
			ImageFile:  filename,
		})
	}

	if err := m.saveSessionLocked(s); err != nil {
		return len(s.Images), err
	}
	if m.metrics != nil {
		m.metrics.UploadsTotal.Inc()
	}
	return len(s.Images), nil
}

// StartReconstruction launches a background job for the session. At
// least the configured minimum of images must be uploaded.
func (m *Manager) StartReconstruction(sessionID string, quality Quality) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, m.sessionNotFound(sessionID)
	}

	minImages := m.settings.Reconstruction.MinImages
	if minImages <= 0 {
		minImages = 10
	}
	if len(s.Images) < minImages {
		return nil, errors.Newf("need at least %d images, session has %d", minImages, len(s.Images)).
			Component("reconstruction").
			Category(errors.CategoryValidation).
			Build()
	}

	for _, job := range m.jobs {
		if job.SessionID == sessionID && (job.Status == JobQueued || job.Status == JobRunning) {
			return nil, errors.Newf("session %s already has a running job: %s", sessionID, job.ID).
				Component("reconstruction").
				Category(errors.CategoryState).
				Build()
		}
	}

	job := &Job{
		ID:        m.nextID("recon"),
		SessionID: sessionID,
		Status:    JobQueued,
		StartedAt: time.Now().Format(time.RFC3339),
	}
	m.jobs[job.ID] = job
	s.Status = "reconstructing"

	if m.metrics != nil {
		m.metrics.ImagesPerJob.Observe(float64(len(s.Images)))
	}

	go m.runJob(job.ID, s.Folder, quality)
	slog.Info("reconstruction job queued", "recon_id", job.ID, "session_id", sessionID, "quality", quality)
	return job.snapshot(), nil
}

// runJob executes the pipeline and post-processing for one job.
func (m *Manager) runJob(jobID, sessionFolder string, quality Quality) {
	if m.metrics != nil {
		m.metrics.ActiveJobs.Inc()
		defer m.metrics.ActiveJobs.Dec()
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	m.updateJob(jobID, func(j *Job) {
		j.Status = JobRunning
		j.Message = "running colmap pipeline"
	})

	result, err := m.runner.Reconstruct(ctx, sessionFolder, quality, func(step string, pct int) {
		m.updateJob(jobID, func(j *Job) {
			j.CurrentStep = step
			j.Progress = pct
		})
	})
	if err != nil {
		m.failJob(jobID, err)
		return
	}

	m.updateJob(jobID, func(j *Job) {
		j.CurrentStep = "post_processing"
		j.Progress = 90
		j.Dense = result.Dense
	})

	files, pointCount, err := m.postProcess(jobID, result)
	if err != nil {
		m.failJob(jobID, err)
		return
	}

	m.updateJob(jobID, func(j *Job) {
		j.Status = JobCompleted
		j.Progress = 100
		j.CurrentStep = ""
		j.Message = "reconstruction complete"
		j.Files = files
		j.PointCount = pointCount
		j.CompletedAt = time.Now().Format(time.RFC3339)
	})
	m.setSessionStatus(jobID, "completed")
	if m.metrics != nil {
		m.metrics.JobsTotal.WithLabelValues(JobCompleted).Inc()
	}
	slog.Info("reconstruction job completed", "recon_id", jobID, "points", pointCount, "dense", result.Dense)
}

// postProcess cleans the raw point cloud, adds defect markers and
// exports the final model files plus metadata.
func (m *Manager) postProcess(jobID string, result *PipelineResult) (map[string]string, int, error) {
	job := m.JobStatus(jobID)
	if job == nil {
		return nil, 0, errors.Newf("job disappeared: %s", jobID).
			Component("reconstruction").
			Category(errors.CategoryState).
			Build()
	}

	m.mu.Lock()
	s := m.sessions[job.SessionID]
	var annotations []Annotation
	var projectName, roomType string
	if s != nil {
		annotations = append(annotations, s.Annotations...)
		projectName, roomType = s.ProjectName, s.RoomType
	}
	m.mu.Unlock()

	cloud, err := LoadPLY(result.ModelPath)
	if err != nil {
		return nil, 0, err
	}
	if len(cloud.Points) == 0 {
		return nil, 0, errors.Newf("pipeline produced an empty point cloud").
			Component("reconstruction").
			Category(errors.CategoryReconstruction).
			Build()
	}

	// sparse clouds are already thin, only dense output needs the full
	// cleanup pass
	cloud = cloud.VoxelDownsample(0.02)
	cloud = cloud.RemoveStatisticalOutliers(20, 2.0, 0.2)
	if result.Dense {
		cloud = cloud.RemoveRadiusOutliers(0.1, 4)
	}
	cloud.AddDefectMarkers(annotations, 0.05)

	outDir := filepath.Join(m.settings.Reconstruction.OutputDir, jobID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, 0, wrapFileError(err, outDir)
	}

	files := map[string]string{
		"ply":      filepath.Join(outDir, "model.ply"),
		"obj":      filepath.Join(outDir, "model.obj"),
		"glb":      filepath.Join(outDir, "model.glb"),
		"metadata": filepath.Join(outDir, "metadata.json"),
	}
	if err := cloud.SavePLY(files["ply"]); err != nil {
		return nil, 0, err
	}
	if err := cloud.SaveOBJ(files["obj"]); err != nil {
		return nil, 0, err
	}
	if err := cloud.SaveGLB(files["glb"]); err != nil {
		return nil, 0, err
	}

	metadata := map[string]any{
		"recon_id":     jobID,
		"session_id":   job.SessionID,
		"project_name": projectName,
		"room_type":    roomType,
		"dense":        result.Dense,
		"point_count":  len(cloud.Points),
		"annotations":  annotations,
		"created_at":   time.Now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, 0, errors.New(err).
			Component("reconstruction").
			Category(errors.CategoryReconstruction).
			Build()
	}
	if err := os.WriteFile(files["metadata"], data, 0o644); err != nil {
		return nil, 0, wrapFileError(err, files["metadata"])
	}

	return files, len(cloud.Points), nil
}

func (m *Manager) failJob(jobID string, err error) {
	slog.Error("reconstruction job failed", "recon_id", jobID, "error", err)
	m.updateJob(jobID, func(j *Job) {
		j.Status = JobFailed
		j.Message = err.Error()
		j.Errors = append(j.Errors, err.Error())
		j.CompletedAt = time.Now().Format(time.RFC3339)
	})
	m.setSessionStatus(jobID, "failed")
	if m.metrics != nil {
		m.metrics.JobsTotal.WithLabelValues(JobFailed).Inc()
	}
}

func (m *Manager) updateJob(jobID string, fn func(*Job)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		fn(job)
	}
}

// setSessionStatus updates the session owning a job and persists it.
func (m *Manager) setSessionStatus(jobID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return
	}
	if s, ok := m.sessions[job.SessionID]; ok {
		s.Status = status
		if err := m.saveSessionLocked(s); err != nil {
			slog.Error("failed to persist session status", "session_id", s.ID, "error", err)
		}
	}
}

// JobStatus returns a snapshot of the job, or nil when unknown.
func (m *Manager) JobStatus(jobID string) *Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		return job.snapshot()
	}
	return nil
}

// Sessions lists all sessions, newest first.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s.snapshot())
	}
	// unix-timestamp ids sort chronologically
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	return list
}

// Session returns a snapshot of one session.
func (m *Manager) Session(sessionID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, m.sessionNotFound(sessionID)
	}
	return s.snapshot(), nil
}

// DeleteSession removes a session and its files. Sessions with a running
// job cannot be deleted.
func (m *Manager) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return m.sessionNotFound(sessionID)
	}
	for _, job := range m.jobs {
		if job.SessionID == sessionID && (job.Status == JobQueued || job.Status == JobRunning) {
			return errors.Newf("session %s has a running job", sessionID).
				Component("reconstruction").
				Category(errors.CategoryState).
				Build()
		}
	}

	if err := os.RemoveAll(s.Folder); err != nil {
		return wrapFileError(err, s.Folder)
	}
	delete(m.sessions, sessionID)
	slog.Info("reconstruction session deleted", "session_id", sessionID)
	return nil
}

// DownloadPath resolves the output file of a completed job.
func (m *Manager) DownloadPath(jobID, fileType string) (string, error) {
	job := m.JobStatus(jobID)
	if job == nil {
		return "", errors.Newf("job not found: %s", jobID).
			Component("reconstruction").
			Category(errors.CategoryNotFound).
			Build()
	}
	if job.Status != JobCompleted {
		return "", errors.Newf("job %s is %s, not completed", jobID, job.Status).
			Component("reconstruction").
			Category(errors.CategoryState).
			Build()
	}

	path, ok := job.Files[fileType]
	if !ok {
		return "", errors.Newf("unknown file type: %s", fileType).
			Component("reconstruction").
			Category(errors.CategoryValidation).
			Build()
	}
	if _, err := os.Stat(path); err != nil {
		return "", errors.New(err).
			Component("reconstruction").
			Category(errors.CategoryNotFound).
			Context("path", path).
			Build()
	}
	return path, nil
}

// ColmapAvailable reports whether the pipeline binary is present.
func (m *Manager) ColmapAvailable() bool {
	return m.runner.Available()
}

func (m *Manager) sessionNotFound(sessionID string) error {
	return errors.Newf("session not found: %s", sessionID).
		Component("reconstruction").
		Category(errors.CategoryNotFound).
		Build()
}

// saveSessionLocked persists session.json; callers hold the mutex.
func (m *Manager) saveSessionLocked(s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("reconstruction").
			Category(errors.CategoryFileIO).
			Build()
	}
	path := filepath.Join(s.Folder, "session.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return wrapFileError(err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return wrapFileError(err, path)
	}
	return nil
}

func (s *Session) snapshot() *Session {
	dup := *s
	dup.Images = append([]ImageRecord(nil), s.Images...)
	dup.Annotations = append([]Annotation(nil), s.Annotations...)
	return &dup
}

func (j *Job) snapshot() *Job {
	dup := *j
	dup.Errors = append([]string(nil), j.Errors...)
	if j.Files != nil {
		dup.Files = make(map[string]string, len(j.Files))
		for k, v := range j.Files {
			dup.Files[k] = v
		}
	}
	return &dup
}
