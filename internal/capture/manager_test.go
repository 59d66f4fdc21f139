package capture

import (
	"context"
	"image"
	"image/color"
	"os"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShashidharM0118/sitelenz/internal/classifier"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/session"
	"github.com/ShashidharM0118/sitelenz/internal/speech"
)

type fakePCMSource struct {
	pcm []byte
}

func (f *fakePCMSource) start(onData func(pcm []byte)) (func(), error) {
	onData(f.pcm)
	return func() {}, nil
}

type fakeFrameSource struct {
	img image.Image
}

func (f *fakeFrameSource) grab() (image.Image, error) { return f.img, nil }
func (f *fakeFrameSource) close() error               { return nil }

type fakePredictor struct {
	prediction *classifier.Prediction
}

func (f *fakePredictor) Predict(image.Image) (*classifier.Prediction, error) {
	return f.prediction, nil
}

type fakeTranscriber struct {
	text string
}

func (f *fakeTranscriber) Transcribe(context.Context, speech.Chunk) (string, error) {
	return f.text, nil
}

func (f *fakeTranscriber) Engine() string { return "fake" }

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()

	settings := &conf.Settings{}
	settings.Capture.Audio.SampleRate = 16000
	settings.Capture.Audio.ProcessInterval = 60
	settings.Capture.Camera.CaptureInterval = 1
	settings.Capture.Export.BasePath = t.TempDir()
	settings.Capture.Export.AudioDir = "audio"
	settings.Capture.Export.FrameDir = "frames"
	settings.Capture.Export.TranscriptDir = "transcripts"
	settings.Capture.Export.ClassificationDir = "classifications"
	settings.Capture.Export.UnifiedDir = "unified"
	return settings
}

func testManager(t *testing.T) (*Manager, *session.Store) {
	t.Helper()

	settings := testSettings(t)
	store, err := session.NewStore(settings)
	require.NoError(t, err)

	prediction := &classifier.Prediction{
		Label:      "Minor Crack",
		Confidence: 72.5,
		Probabilities: map[string]float64{
			"Minor Crack": 72.5, "Plain (Normal)": 27.5,
		},
	}

	mgr := NewManager(settings, store, &fakePredictor{prediction: prediction},
		&fakeTranscriber{text: "hairline crack near the socket"}, nil, nil)
	mgr.newAudioSource = func() (pcmSource, error) {
		// one second of silence
		return &fakePCMSource{pcm: make([]byte, 32000)}, nil
	}
	mgr.newFrameSource = func() (frameSource, error) {
		img := image.NewRGBA(image.Rect(0, 0, 32, 32))
		for y := 0; y < 32; y++ {
			for x := 0; x < 32; x++ {
				img.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
			}
		}
		return &fakeFrameSource{img: img}, nil
	}
	return mgr, store
}

func TestAudioStartStop(t *testing.T) {
	mgr, store := testManager(t)

	id, err := mgr.StartAudio()
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}_\d{6}$`, id)
	assert.True(t, mgr.AudioStatus().Recording)

	// second start must fail while recording
	_, err = mgr.StartAudio()
	assert.Error(t, err)

	// stop triggers the final flush, transcribing the buffered second
	require.NoError(t, mgr.StopAudio())
	assert.False(t, mgr.AudioStatus().Recording)

	entries, err := store.Transcripts(id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hairline crack near the socket", entries[0].Text)
	assert.Contains(t, entries[0].AudioFile, "chunk_0001.wav")

	// stop without start fails
	assert.Error(t, mgr.StopAudio())
}

func TestCameraStartStop(t *testing.T) {
	mgr, store := testManager(t)

	id, err := mgr.StartCamera()
	require.NoError(t, err)
	assert.True(t, mgr.CameraStatus().Recording)

	_, err = mgr.StartCamera()
	assert.Error(t, err)

	// the loop ticks every second in tests
	deadline := time.Now().Add(3 * time.Second)
	var entries []session.ClassificationEntry
	for time.Now().Before(deadline) {
		entries, err = store.Classifications(id)
		require.NoError(t, err)
		if len(entries) > 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.NoError(t, mgr.StopCamera())
	assert.False(t, mgr.CameraStatus().Recording)

	require.NotEmpty(t, entries)
	assert.Equal(t, "Minor Crack", entries[0].Prediction)
	assert.InDelta(t, 72.5, entries[0].Confidence, 0.01)

	assert.Error(t, mgr.StopCamera())
}

func TestUnifiedSharesSessionID(t *testing.T) {
	mgr, _ := testManager(t)

	id, err := mgr.StartUnified()
	require.NoError(t, err)

	status := mgr.UnifiedStatusReport()
	assert.True(t, status.Recording)
	assert.Equal(t, id, status.Audio.SessionID)
	assert.Equal(t, id, status.Camera.SessionID)

	_, err = mgr.StartUnified()
	assert.Error(t, err)

	require.NoError(t, mgr.StopUnified())
	assert.False(t, mgr.UnifiedStatusReport().Recording)
	assert.Error(t, mgr.StopUnified())
}

func TestStartUnifiedRollsBackAudioOnCameraFailure(t *testing.T) {
	mgr, _ := testManager(t)
	mgr.newFrameSource = func() (frameSource, error) {
		return nil, errors.Newf("no camera").
			Component("capture").
			Category(errors.CategoryCameraCapture).
			Build()
	}

	_, err := mgr.StartUnified()
	require.Error(t, err)

	// the audio stream started for the failed session must be fully
	// torn down, leaving the manager startable again
	assert.False(t, mgr.AudioStatus().Recording)
	assert.False(t, mgr.UnifiedStatusReport().Recording)

	id, err := mgr.StartAudio()
	require.NoError(t, err)
	assert.True(t, mgr.AudioStatus().Recording)
	require.NoError(t, mgr.StopAudio())
	assert.NotEmpty(t, id)
}

func TestCaptureUnifiedAppendsEntry(t *testing.T) {
	mgr, store := testManager(t)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	id, prediction, err := mgr.CaptureUnified(img, "stain under the sill", "data:image/png;base64,AAAA", "")
	require.NoError(t, err)
	require.NotNil(t, prediction)
	assert.Equal(t, "Minor Crack", prediction.Label)

	logs, err := store.UnifiedLogs(id)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "stain under the sill", logs[0].Transcript)
	assert.Equal(t, "data:image/png;base64,AAAA", logs[0].ImageData)
	assert.NotEmpty(t, logs[0].Timestamp)
	require.NotNil(t, logs[0].Classification)
	assert.Equal(t, "Minor Crack", logs[0].Classification.Label)
}

func TestCaptureUnifiedHonorsClientTimestamp(t *testing.T) {
	mgr, store := testManager(t)

	id, _, err := mgr.CaptureUnified(nil, "mold smell near the window", "", "2026-08-30T10:15:00")
	require.NoError(t, err)

	logs, err := store.UnifiedLogs(id)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "2026-08-30T10:15:00", logs[0].Timestamp)
}

func TestWriteWAVRoundTrip(t *testing.T) {
	path := t.TempDir() + "/test.wav"

	pcm := make([]byte, 3200) // 0.1s at 16kHz
	pcm[0] = 0x34
	pcm[1] = 0x12
	require.NoError(t, writeWAV(path, pcm, 16000))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.EqualValues(t, 16000, dec.SampleRate)
	assert.EqualValues(t, 16, dec.BitDepth)
	require.Len(t, buf.Data, 1600)
	assert.Equal(t, 0x1234, buf.Data[0])
}
