package speech

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
)

// WhisperTranscriber runs a local whisper.cpp binary on exported audio
// chunks. The binary is expected to behave like whisper-cli, printing
// the transcription to stdout.
type WhisperTranscriber struct {
	settings *conf.Settings
	metrics  *metrics.SpeechMetrics
}

// NewWhisperTranscriber creates a transcriber backed by a local
// whisper.cpp executable.
func NewWhisperTranscriber(settings *conf.Settings, m *metrics.SpeechMetrics) *WhisperTranscriber {
	return &WhisperTranscriber{settings: settings, metrics: m}
}

// Engine returns the engine name.
func (w *WhisperTranscriber) Engine() string { return "whisper" }

// Transcribe runs the whisper binary on the chunk's WAV file. When the
// chunk has not been exported to disk yet, a temporary WAV file is
// written first.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, chunk Chunk) (string, error) {
	start := time.Now()

	wavPath := chunk.WAVPath
	if wavPath == "" {
		tmpPath, cleanup, err := writeTempWAV(chunk)
		if err != nil {
			w.recordError()
			return "", err
		}
		defer cleanup()
		wavPath = tmpPath
	}

	binary := w.settings.Speech.Whisper.BinaryPath
	if binary == "" {
		binary = "whisper-cli"
	}

	args := []string{
		"-m", w.settings.Speech.Whisper.ModelPath,
		"-f", wavPath,
		"--no-timestamps",
		"--no-prints",
	}
	if w.settings.Speech.Language != "" {
		// whisper expects a bare language code, not a BCP 47 tag
		lang, _, _ := strings.Cut(w.settings.Speech.Language, "-")
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		w.recordError()
		if ctx.Err() != nil {
			return "", errors.New(ctx.Err()).
				Component("speech").
				Category(errors.CategoryCancellation).
				Build()
		}
		return "", errors.Newf("whisper failed: %w, stderr: %s", err, stderr.String()).
			Component("speech").
			Category(errors.CategoryCommandExec).
			Context("binary", binary).
			Timing("whisper", time.Since(start)).
			Build()
	}

	text := parseWhisperOutput(stdout.String())
	if text == "" {
		return "", ErrNoSpeech
	}

	if w.metrics != nil {
		w.metrics.TranscriptionCounter.WithLabelValues("whisper").Inc()
		w.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	}

	return text, nil
}

func (w *WhisperTranscriber) recordError() {
	if w.metrics != nil {
		w.metrics.TranscriptionErrors.WithLabelValues("whisper").Inc()
	}
}

// parseWhisperOutput joins the transcription lines printed by the whisper
// binary, skipping non-speech markers such as [BLANK_AUDIO].
func parseWhisperOutput(output string) string {
	var parts []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		if strings.HasPrefix(line, "(") && strings.HasSuffix(line, ")") {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

// writeTempWAV exports the chunk's PCM data to a temporary WAV file and
// returns the path together with a cleanup function.
func writeTempWAV(chunk Chunk) (string, func(), error) {
	tmpFile, err := os.CreateTemp("", "sitelenz-chunk-*.wav")
	if err != nil {
		return "", nil, errors.New(err).
			Component("speech").
			Category(errors.CategoryFileIO).
			Build()
	}
	cleanup := func() { os.Remove(tmpFile.Name()) }

	enc := wav.NewEncoder(tmpFile, chunk.SampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: chunk.SampleRate},
		Data:   pcmToInts(chunk.PCM),
	}
	if err := enc.Write(buf); err != nil {
		tmpFile.Close()
		cleanup()
		return "", nil, errors.New(err).
			Component("speech").
			Category(errors.CategoryFileIO).
			Context("path", filepath.Base(tmpFile.Name())).
			Build()
	}
	if err := enc.Close(); err != nil {
		tmpFile.Close()
		cleanup()
		return "", nil, errors.New(err).
			Component("speech").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := tmpFile.Close(); err != nil {
		cleanup()
		return "", nil, errors.New(err).
			Component("speech").
			Category(errors.CategoryFileIO).
			Build()
	}

	return tmpFile.Name(), cleanup, nil
}

// pcmToInts converts little-endian 16-bit PCM bytes to an int slice for
// the WAV encoder.
func pcmToInts(pcm []byte) []int {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
	}
	return samples
}
