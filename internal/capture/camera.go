package capture

import (
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/session"
)

// frameSource delivers camera frames one at a time.
type frameSource interface {
	grab() (image.Image, error)
	close() error
}

// gocvSource reads frames from a video device through OpenCV.
type gocvSource struct {
	webcam *gocv.VideoCapture
	mat    gocv.Mat
}

func newGocvSource(device string, width, height int) (frameSource, error) {
	if device == "" {
		device = "0"
	}
	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.New(err).
			Component("capture").
			Category(errors.CategoryCameraCapture).
			Context("device", device).
			Build()
	}
	if width > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}
	return &gocvSource{webcam: webcam, mat: gocv.NewMat()}, nil
}

func (g *gocvSource) grab() (image.Image, error) {
	if ok := g.webcam.Read(&g.mat); !ok || g.mat.Empty() {
		return nil, errors.Newf("cannot read frame from camera").
			Component("capture").
			Category(errors.CategoryCameraCapture).
			Build()
	}
	img, err := g.mat.ToImage()
	if err != nil {
		return nil, errors.New(err).
			Component("capture").
			Category(errors.CategoryCameraCapture).
			Build()
	}
	return img, nil
}

func (g *gocvSource) close() error {
	g.mat.Close()
	return g.webcam.Close()
}

// cameraLoop grabs a frame every capture interval, saves it as JPEG,
// classifies it and appends the result to the session store.
func (m *Manager) cameraLoop(sessionID string, source frameSource, quit chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	defer source.close() //nolint:errcheck

	interval := m.settings.Capture.Camera.CaptureInterval
	if interval <= 0 {
		interval = 5
	}

	frameDir := filepath.Join(m.settings.Capture.Export.BasePath, m.settings.Capture.Export.FrameDir, sessionID)
	if err := os.MkdirAll(frameDir, 0o755); err != nil {
		slog.Error("cannot create frame export dir", "dir", frameDir, "error", err)
		m.recordError("camera")
		m.clearCamera(sessionID)
		return
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	frameIndex := 0
	for {
		select {
		case <-quit:
			return
		case <-ticker.C:
			m.processFrame(sessionID, frameDir, source, &frameIndex)
		}
	}
}

// processFrame captures, saves and classifies a single frame.
func (m *Manager) processFrame(sessionID, frameDir string, source frameSource, frameIndex *int) {
	img, err := source.grab()
	if err != nil {
		slog.Error("frame capture failed", "session_id", sessionID, "error", err)
		m.recordError("camera")
		return
	}

	*frameIndex++
	framePath := filepath.Join(frameDir, frameFileName(*frameIndex))
	if err := writeJPEG(framePath, img); err != nil {
		slog.Error("failed to save frame", "path", framePath, "error", err)
		m.recordError("camera")
		return
	}
	if m.metrics != nil {
		m.metrics.FramesCaptured.Inc()
	}

	prediction, err := m.classifier.Predict(img)
	if err != nil {
		slog.Error("frame classification failed", "session_id", sessionID, "error", err)
		m.recordError("camera")
		return
	}

	if prediction.Confidence < m.settings.Classifier.Threshold {
		slog.Debug("classification below threshold, skipping",
			"session_id", sessionID,
			"prediction", prediction.Label,
			"confidence", prediction.Confidence)
		return
	}

	entry := session.ClassificationEntry{
		Timestamp:     session.Timestamp(),
		FrameFile:     filepath.Base(framePath),
		Prediction:    prediction.Label,
		Confidence:    prediction.Confidence,
		Probabilities: prediction.Probabilities,
	}
	if err := m.store.AppendClassification(sessionID, entry); err != nil {
		slog.Error("failed to append classification", "session_id", sessionID, "error", err)
		m.recordError("camera")
		return
	}
	m.mirrorClassification(sessionID, entry)
}

func frameFileName(index int) string {
	return fmt.Sprintf("%s_%04d.jpg", time.Now().Format("150405"), index)
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
