package capture

import (
	"encoding/json"
	"image"
	"log/slog"
	"sync"

	"github.com/ShashidharM0118/sitelenz/internal/classifier"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/datastore"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
	"github.com/ShashidharM0118/sitelenz/internal/session"
	"github.com/ShashidharM0118/sitelenz/internal/speech"
)

// Predictor classifies a frame. Satisfied by classifier.Classifier.
type Predictor interface {
	Predict(img image.Image) (*classifier.Prediction, error)
}

// Status describes one capture stream.
type Status struct {
	Recording bool   `json:"recording"`
	SessionID string `json:"session_id,omitempty"`
	StartedAt string `json:"started_at,omitempty"`
}

// UnifiedStatus describes the combined monitoring state.
type UnifiedStatus struct {
	Recording bool   `json:"recording"`
	SessionID string `json:"session_id,omitempty"`
	Audio     Status `json:"audio"`
	Camera    Status `json:"camera"`
}

type stream struct {
	sessionID string
	startedAt string
	quit      chan struct{}
	wg        sync.WaitGroup
}

// Manager owns the audio and camera capture loops and their session state.
type Manager struct {
	settings    *conf.Settings
	store       *session.Store
	classifier  Predictor
	transcriber speech.Transcriber
	ds          datastore.Interface
	metrics     *metrics.CaptureMetrics

	// overridable for tests
	newAudioSource func() (pcmSource, error)
	newFrameSource func() (frameSource, error)

	mu        sync.Mutex
	audio     *stream
	camera    *stream
	unifiedID string
}

// NewManager creates a capture manager. The datastore is optional and
// may be nil when SQLite history is disabled.
func NewManager(settings *conf.Settings, store *session.Store, predictor Predictor, transcriber speech.Transcriber, ds datastore.Interface, m *metrics.CaptureMetrics) *Manager {
	mgr := &Manager{
		settings:    settings,
		store:       store,
		classifier:  predictor,
		transcriber: transcriber,
		ds:          ds,
		metrics:     m,
	}
	mgr.newAudioSource = func() (pcmSource, error) {
		return newMalgoSource(settings), nil
	}
	mgr.newFrameSource = func() (frameSource, error) {
		camera := settings.Capture.Camera
		return newGocvSource(camera.Device, camera.Width, camera.Height)
	}
	return mgr
}

// StartAudio begins audio capture in a new session. Starting while
// already recording fails with a state error.
func (m *Manager) StartAudio() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startAudioLocked(session.NewID())
}

func (m *Manager) startAudioLocked(sessionID string) (string, error) {
	if m.audio != nil {
		return "", errors.Newf("audio capture already running").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}
	if m.transcriber == nil {
		return "", errors.Newf("no speech engine configured").
			Component("capture").
			Category(errors.CategoryConfiguration).
			Build()
	}

	source, err := m.newAudioSource()
	if err != nil {
		return "", err
	}

	st := &stream{
		sessionID: sessionID,
		startedAt: session.Timestamp(),
		quit:      make(chan struct{}),
	}
	m.audio = st
	m.setActive("audio", true)

	st.wg.Add(1)
	go m.audioLoop(st.sessionID, source, st.quit, &st.wg)

	slog.Info("audio capture started", "session_id", st.sessionID)
	return st.sessionID, nil
}

// StopAudio stops audio capture and waits for the final flush.
func (m *Manager) StopAudio() error {
	m.mu.Lock()
	st := m.audio
	m.audio = nil
	m.mu.Unlock()

	if st == nil {
		return errors.Newf("audio capture is not running").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}

	close(st.quit)
	st.wg.Wait()
	m.setActive("audio", false)

	slog.Info("audio capture stopped", "session_id", st.sessionID)
	return nil
}

// AudioStatus reports whether audio capture is recording.
func (m *Manager) AudioStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return streamStatus(m.audio)
}

// StartCamera begins camera capture in a new session.
func (m *Manager) StartCamera() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCameraLocked(session.NewID())
}

func (m *Manager) startCameraLocked(sessionID string) (string, error) {
	if m.camera != nil {
		return "", errors.Newf("camera capture already running").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}
	if m.classifier == nil {
		return "", errors.Newf("classifier model is not loaded").
			Component("capture").
			Category(errors.CategoryConfiguration).
			Build()
	}

	source, err := m.newFrameSource()
	if err != nil {
		return "", err
	}

	st := &stream{
		sessionID: sessionID,
		startedAt: session.Timestamp(),
		quit:      make(chan struct{}),
	}
	m.camera = st
	m.setActive("camera", true)

	st.wg.Add(1)
	go m.cameraLoop(st.sessionID, source, st.quit, &st.wg)

	slog.Info("camera capture started", "session_id", st.sessionID)
	return st.sessionID, nil
}

// StopCamera stops camera capture.
func (m *Manager) StopCamera() error {
	m.mu.Lock()
	st := m.camera
	m.camera = nil
	m.mu.Unlock()

	if st == nil {
		return errors.Newf("camera capture is not running").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}

	close(st.quit)
	st.wg.Wait()
	m.setActive("camera", false)

	slog.Info("camera capture stopped", "session_id", st.sessionID)
	return nil
}

// CameraStatus reports whether camera capture is recording.
func (m *Manager) CameraStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return streamStatus(m.camera)
}

// StartUnified starts both streams under one session id.
func (m *Manager) StartUnified() (string, error) {
	m.mu.Lock()

	if m.audio != nil || m.camera != nil {
		m.mu.Unlock()
		return "", errors.Newf("capture already running").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}

	sessionID := session.NewID()
	if _, err := m.startAudioLocked(sessionID); err != nil {
		m.mu.Unlock()
		return "", err
	}

	_, cameraErr := m.startCameraLocked(sessionID)
	var rollback *stream
	if cameraErr != nil {
		// detach the audio stream while still holding the lock so a
		// concurrent start cannot observe it, wait for it below
		rollback = m.audio
		m.audio = nil
	} else {
		m.unifiedID = sessionID
	}
	m.mu.Unlock()

	if cameraErr != nil {
		close(rollback.quit)
		rollback.wg.Wait()
		m.setActive("audio", false)
		return "", cameraErr
	}

	slog.Info("unified capture started", "session_id", sessionID)
	return sessionID, nil
}

// StopUnified stops both streams.
func (m *Manager) StopUnified() error {
	m.mu.Lock()
	running := m.unifiedID != ""
	m.unifiedID = ""
	m.mu.Unlock()

	if !running {
		return errors.Newf("unified capture is not running").
			Component("capture").
			Category(errors.CategoryState).
			Build()
	}

	audioErr := m.StopAudio()
	cameraErr := m.StopCamera()
	return errors.Join(audioErr, cameraErr)
}

// UnifiedStatusReport reports the combined monitoring state.
func (m *Manager) UnifiedStatusReport() UnifiedStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return UnifiedStatus{
		Recording: m.unifiedID != "",
		SessionID: m.unifiedID,
		Audio:     streamStatus(m.audio),
		Camera:    streamStatus(m.camera),
	}
}

// CaptureUnified classifies a client-supplied frame and appends a
// synchronized log entry pairing it with the given transcript. The base64
// image payload is kept in the entry for display. A client timestamp is
// honored when given; when no unified session is active the entry opens a
// new session.
func (m *Manager) CaptureUnified(img image.Image, transcript, imageData, timestamp string) (string, *classifier.Prediction, error) {
	m.mu.Lock()
	sessionID := m.unifiedID
	m.mu.Unlock()
	if sessionID == "" {
		sessionID = session.NewID()
	}
	if timestamp == "" {
		timestamp = session.Timestamp()
	}

	var prediction *classifier.Prediction
	if img != nil {
		if m.classifier == nil {
			return "", nil, errors.Newf("classifier model is not loaded").
				Component("capture").
				Category(errors.CategoryConfiguration).
				Build()
		}
		var err error
		prediction, err = m.classifier.Predict(img)
		if err != nil {
			return "", nil, err
		}
	}

	entry := session.UnifiedEntry{
		Timestamp:      timestamp,
		Transcript:     transcript,
		Classification: prediction,
		ImageData:      imageData,
	}
	if err := m.store.AppendUnified(sessionID, entry); err != nil {
		return "", nil, err
	}

	if prediction != nil {
		m.mirrorClassification(sessionID, session.ClassificationEntry{
			Timestamp:     entry.Timestamp,
			Prediction:    prediction.Label,
			Confidence:    prediction.Confidence,
			Probabilities: prediction.Probabilities,
		})
	}
	if transcript != "" {
		m.mirrorTranscript(sessionID, session.TranscriptEntry{
			Timestamp: entry.Timestamp,
			Text:      transcript,
		})
	}

	return sessionID, prediction, nil
}

func streamStatus(st *stream) Status {
	if st == nil {
		return Status{}
	}
	return Status{
		Recording: true,
		SessionID: st.sessionID,
		StartedAt: st.startedAt,
	}
}

// clearAudio resets audio state after a loop that failed to start.
func (m *Manager) clearAudio(sessionID string) {
	m.mu.Lock()
	if m.audio != nil && m.audio.sessionID == sessionID {
		m.audio = nil
	}
	m.mu.Unlock()
	m.setActive("audio", false)
}

// clearCamera resets camera state after a loop that failed to start.
func (m *Manager) clearCamera(sessionID string) {
	m.mu.Lock()
	if m.camera != nil && m.camera.sessionID == sessionID {
		m.camera = nil
	}
	m.mu.Unlock()
	m.setActive("camera", false)
}

func (m *Manager) setActive(stream string, active bool) {
	if m.metrics == nil {
		return
	}
	value := 0.0
	if active {
		value = 1.0
	}
	m.metrics.ActiveSessions.WithLabelValues(stream).Set(value)
}

func (m *Manager) recordError(stream string) {
	if m.metrics != nil {
		m.metrics.CaptureErrors.WithLabelValues(stream).Inc()
	}
}

// mirrorTranscript copies an entry into the history database.
func (m *Manager) mirrorTranscript(sessionID string, entry session.TranscriptEntry) {
	if m.ds == nil {
		return
	}
	if err := m.ds.SaveTranscript(&datastore.Transcript{
		SessionID: sessionID,
		Timestamp: entry.Timestamp,
		Text:      entry.Text,
		AudioFile: entry.AudioFile,
	}); err != nil {
		slog.Error("failed to mirror transcript", "session_id", sessionID, "error", err)
	}
}

// mirrorClassification copies an entry into the history database.
func (m *Manager) mirrorClassification(sessionID string, entry session.ClassificationEntry) {
	if m.ds == nil {
		return
	}
	probabilities, err := json.Marshal(entry.Probabilities)
	if err != nil {
		probabilities = []byte("{}")
	}
	if err := m.ds.SaveClassification(&datastore.Classification{
		SessionID:     sessionID,
		Timestamp:     entry.Timestamp,
		FrameFile:     entry.FrameFile,
		Prediction:    entry.Prediction,
		Confidence:    entry.Confidence,
		Probabilities: string(probabilities),
	}); err != nil {
		slog.Error("failed to mirror classification", "session_id", sessionID, "error", err)
	}
}
