package speech

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	speechapi "google.golang.org/api/speech/v1"
	"google.golang.org/api/option"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
)

// GoogleTranscriber sends audio chunks to the Google Cloud Speech REST API.
type GoogleTranscriber struct {
	settings *conf.Settings
	metrics  *metrics.SpeechMetrics
	opts     []option.ClientOption
}

// NewGoogleTranscriber creates a transcriber backed by the Google Cloud
// Speech API. Extra client options are accepted for testing.
func NewGoogleTranscriber(settings *conf.Settings, m *metrics.SpeechMetrics, opts ...option.ClientOption) (*GoogleTranscriber, error) {
	if settings.Speech.Google.APIKey == "" && len(opts) == 0 {
		return nil, errors.Newf("google speech engine requires an API key").
			Component("speech").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &GoogleTranscriber{
		settings: settings,
		metrics:  m,
		opts:     opts,
	}, nil
}

// Engine returns the engine name.
func (g *GoogleTranscriber) Engine() string { return "google" }

// Transcribe sends the chunk's PCM data to the recognize endpoint and
// returns the concatenated transcript.
func (g *GoogleTranscriber) Transcribe(ctx context.Context, chunk Chunk) (string, error) {
	start := time.Now()

	opts := g.opts
	if len(opts) == 0 {
		opts = []option.ClientOption{option.WithAPIKey(g.settings.Speech.Google.APIKey)}
	}

	svc, err := speechapi.NewService(ctx, opts...)
	if err != nil {
		g.recordError()
		return "", errors.New(err).
			Component("speech").
			Category(errors.CategoryNetwork).
			Context("engine", "google").
			Build()
	}

	language := g.settings.Speech.Language
	if language == "" {
		language = "en-US"
	}

	req := &speechapi.RecognizeRequest{
		Config: &speechapi.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(chunk.SampleRate),
			LanguageCode:    language,
		},
		Audio: &speechapi.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(chunk.PCM),
		},
	}

	resp, err := svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		g.recordError()
		if ctx.Err() != nil {
			return "", errors.New(ctx.Err()).
				Component("speech").
				Category(errors.CategoryCancellation).
				Build()
		}
		return "", errors.New(err).
			Component("speech").
			Category(errors.CategoryTranscription).
			Context("engine", "google").
			Timing("recognize", time.Since(start)).
			Build()
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, result.Alternatives[0].Transcript)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSpeech
	}

	if g.metrics != nil {
		g.metrics.TranscriptionCounter.WithLabelValues("google").Inc()
		g.metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
	}

	return strings.Join(parts, " "), nil
}

func (g *GoogleTranscriber) recordError() {
	if g.metrics != nil {
		g.metrics.TranscriptionErrors.WithLabelValues("google").Inc()
	}
}
