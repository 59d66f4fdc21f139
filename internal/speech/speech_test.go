package speech

import (
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
)

func speechSettings(engine string) *conf.Settings {
	return &conf.Settings{
		Speech: conf.SpeechSettings{
			Engine:   engine,
			Language: "en-US",
			Google:   conf.GoogleSpeechSettings{APIKey: "test-key"},
			Whisper: conf.WhisperSettings{
				BinaryPath: "whisper-cli",
				ModelPath:  "models/ggml-base.en.bin",
			},
		},
	}
}

func TestNewSelectsEngine(t *testing.T) {
	google, err := New(speechSettings("google"), nil)
	require.NoError(t, err)
	assert.Equal(t, "google", google.Engine())

	whisper, err := New(speechSettings("whisper"), nil)
	require.NoError(t, err)
	assert.Equal(t, "whisper", whisper.Engine())

	_, err = New(speechSettings("dictaphone"), nil)
	assert.Error(t, err)
}

func TestGoogleTranscriberRequiresAPIKey(t *testing.T) {
	settings := speechSettings("google")
	settings.Speech.Google.APIKey = ""

	_, err := NewGoogleTranscriber(settings, nil)
	assert.Error(t, err)
}

func TestGoogleTranscribe(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost,
		"https://speech.googleapis.com/v1/speech:recognize",
		httpmock.NewStringResponder(http.StatusOK,
			`{"results":[{"alternatives":[{"transcript":"crack near the window","confidence":0.94}]},{"alternatives":[{"transcript":"check the east wall","confidence":0.88}]}]}`))

	client := &http.Client{Transport: transport}
	g, err := NewGoogleTranscriber(speechSettings("google"), nil, option.WithHTTPClient(client))
	require.NoError(t, err)

	text, err := g.Transcribe(context.Background(), Chunk{
		PCM:        make([]byte, 32000),
		SampleRate: 16000,
	})
	require.NoError(t, err)
	assert.Equal(t, "crack near the window check the east wall", text)
}

func TestGoogleTranscribeNoSpeech(t *testing.T) {
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder(http.MethodPost,
		"https://speech.googleapis.com/v1/speech:recognize",
		httpmock.NewStringResponder(http.StatusOK, `{}`))

	client := &http.Client{Transport: transport}
	g, err := NewGoogleTranscriber(speechSettings("google"), nil, option.WithHTTPClient(client))
	require.NoError(t, err)

	_, err = g.Transcribe(context.Background(), Chunk{PCM: make([]byte, 320), SampleRate: 16000})
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestParseWhisperOutput(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{
			name:   "single line",
			output: " water damage on the ceiling\n",
			want:   "water damage on the ceiling",
		},
		{
			name:   "multiple lines joined",
			output: "first note\nsecond note\n",
			want:   "first note second note",
		},
		{
			name:   "blank audio marker skipped",
			output: "[BLANK_AUDIO]\n",
			want:   "",
		},
		{
			name:   "non-speech annotations skipped",
			output: "(wind blowing)\nspalling on the column\n[MUSIC]\n",
			want:   "spalling on the column",
		},
		{
			name:   "empty output",
			output: "",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseWhisperOutput(tt.output))
		})
	}
}

func TestPCMToInts(t *testing.T) {
	// -1, 256 as little-endian int16
	pcm := []byte{0xFF, 0xFF, 0x00, 0x01}
	samples := pcmToInts(pcm)
	require.Len(t, samples, 2)
	assert.Equal(t, -1, samples[0])
	assert.Equal(t, 256, samples[1])
}
