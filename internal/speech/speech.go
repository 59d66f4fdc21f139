// Package speech provides speech-to-text for captured audio chunks. Two
// engines are supported: the Google Cloud Speech REST API and a local
// whisper.cpp binary. Both consume 16-bit LINEAR16 mono PCM.
package speech

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
)

// ErrNoSpeech is returned when the engine processed the audio but found no
// recognizable speech. Callers should skip the chunk rather than fail.
var ErrNoSpeech = stderrors.New("no recognizable speech in audio")

// Chunk is a unit of audio handed to a transcriber.
type Chunk struct {
	PCM        []byte // little-endian 16-bit mono samples
	SampleRate int    // samples per second
	WAVPath    string // path of the exported chunk on disk, if saved
}

// Transcriber converts an audio chunk to text.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk Chunk) (string, error)
	Engine() string
}

// New creates the transcriber selected in the configuration.
func New(settings *conf.Settings, m *metrics.SpeechMetrics) (Transcriber, error) {
	switch settings.Speech.Engine {
	case "google":
		return NewGoogleTranscriber(settings, m)
	case "whisper":
		return NewWhisperTranscriber(settings, m), nil
	default:
		return nil, fmt.Errorf("unknown speech engine: %s", settings.Speech.Engine)
	}
}
