// Package capture runs the unified monitoring loops: an audio poller
// transcribing microphone chunks and a camera poller classifying frames.
// Each loop is a goroutine stopped through a quit channel; entries are
// appended to the session store, which flushes to disk on every append.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/smallnest/ringbuffer"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/session"
	"github.com/ShashidharM0118/sitelenz/internal/speech"
)

// pcmSource delivers raw 16-bit mono PCM to a callback. The stop
// function releases the underlying device.
type pcmSource interface {
	start(onData func(pcm []byte)) (stop func(), err error)
}

// malgoSource captures PCM from the default or configured microphone.
type malgoSource struct {
	settings *conf.Settings
}

func newMalgoSource(settings *conf.Settings) pcmSource {
	return &malgoSource{settings: settings}
}

func (m *malgoSource) start(onData func(pcm []byte)) (func(), error) {
	var backend malgo.Backend
	switch runtime.GOOS {
	case "linux":
		backend = malgo.BackendAlsa
	case "windows":
		backend = malgo.BackendWasapi
	case "darwin":
		backend = malgo.BackendCoreaudio
	}

	malgoCtx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, func(message string) {
		if m.settings.Debug {
			fmt.Print(message)
		}
	})
	if err != nil {
		return nil, errors.New(err).
			Component("capture").
			Category(errors.CategoryAudioCapture).
			Context("stage", "context-init").
			Build()
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.settings.Capture.Audio.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSamples []byte, _ uint32) {
			onData(pSamples)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit() //nolint:errcheck
		return nil, errors.New(err).
			Component("capture").
			Category(errors.CategoryAudioCapture).
			Context("stage", "device-init").
			Build()
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit() //nolint:errcheck
		return nil, errors.New(err).
			Component("capture").
			Category(errors.CategoryAudioCapture).
			Context("stage", "device-start").
			Build()
	}

	stop := func() {
		_ = device.Stop()
		device.Uninit()
		malgoCtx.Uninit() //nolint:errcheck
	}
	return stop, nil
}

// audioLoop reads PCM from the source into a ring buffer and every
// process interval exports the buffered audio as a WAV chunk, runs it
// through the transcriber and appends the result to the session store.
func (m *Manager) audioLoop(sessionID string, source pcmSource, quit chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	sampleRate := m.settings.Capture.Audio.SampleRate
	interval := m.settings.Capture.Audio.ProcessInterval
	if interval <= 0 {
		interval = 5
	}

	// hold up to two intervals of 16-bit mono samples
	rb := ringbuffer.New(sampleRate * 2 * interval * 2)

	stop, err := source.start(func(pcm []byte) {
		if _, err := rb.Write(pcm); err != nil {
			// buffer full, drop stale audio and keep the fresh chunk
			rb.Reset()
			_, _ = rb.Write(pcm)
		}
	})
	if err != nil {
		slog.Error("audio capture failed to start", "session_id", sessionID, "error", err)
		m.recordError("audio")
		m.clearAudio(sessionID)
		return
	}
	defer stop()

	audioDir := filepath.Join(m.settings.Capture.Export.BasePath, m.settings.Capture.Export.AudioDir, sessionID)
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		slog.Error("cannot create audio export dir", "dir", audioDir, "error", err)
		m.recordError("audio")
		m.clearAudio(sessionID)
		return
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()

	chunkIndex := 0
	for {
		select {
		case <-quit:
			// final flush of whatever is buffered
			m.processAudioChunk(sessionID, audioDir, rb, sampleRate, &chunkIndex)
			return
		case <-ticker.C:
			m.processAudioChunk(sessionID, audioDir, rb, sampleRate, &chunkIndex)
		}
	}
}

// processAudioChunk drains the ring buffer, saves the chunk and appends
// its transcription. Chunks shorter than half a second are skipped.
func (m *Manager) processAudioChunk(sessionID, audioDir string, rb *ringbuffer.RingBuffer, sampleRate int, chunkIndex *int) {
	length := rb.Length()
	if length < sampleRate {
		return
	}
	pcm := make([]byte, length)
	n, err := rb.Read(pcm)
	if err != nil || n == 0 {
		return
	}
	pcm = pcm[:n]

	*chunkIndex++
	wavPath := filepath.Join(audioDir, fmt.Sprintf("chunk_%04d.wav", *chunkIndex))
	if err := writeWAV(wavPath, pcm, sampleRate); err != nil {
		slog.Error("failed to export audio chunk", "path", wavPath, "error", err)
		m.recordError("audio")
		return
	}
	if m.metrics != nil {
		m.metrics.AudioChunksSaved.Inc()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	text, err := m.transcriber.Transcribe(ctx, speech.Chunk{
		PCM:        pcm,
		SampleRate: sampleRate,
		WAVPath:    wavPath,
	})
	if err != nil {
		if errors.Is(err, speech.ErrNoSpeech) {
			return
		}
		slog.Error("transcription failed", "session_id", sessionID, "error", err)
		m.recordError("audio")
		return
	}

	entry := session.TranscriptEntry{
		Timestamp: session.Timestamp(),
		Text:      text,
		AudioFile: filepath.Base(wavPath),
	}
	if err := m.store.AppendTranscript(sessionID, entry); err != nil {
		slog.Error("failed to append transcript", "session_id", sessionID, "error", err)
		m.recordError("audio")
		return
	}
	m.mirrorTranscript(sessionID, entry)
}

// writeWAV exports little-endian 16-bit mono PCM as a WAV file.
func writeWAV(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   samples,
	}
	if err := enc.Write(buf); err != nil {
		return errors.New(err).
			Component("capture").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return enc.Close()
}
