package session

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
)

func testStore(t *testing.T) *Store {
	t.Helper()

	settings := &conf.Settings{}
	settings.Capture.Export.BasePath = t.TempDir()
	settings.Capture.Export.TranscriptDir = "transcripts"
	settings.Capture.Export.ClassificationDir = "classifications"
	settings.Capture.Export.UnifiedDir = "unified"

	store, err := NewStore(settings)
	require.NoError(t, err)
	return store
}

func TestNewIDFormat(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}$`), NewID())
}

func TestTranscriptRoundTrip(t *testing.T) {
	store := testStore(t)

	entry := TranscriptEntry{
		Timestamp: "2026-08-30 10:15:00",
		Text:      "minor crack above the door frame",
		AudioFile: "chunk_0001.wav",
	}
	require.NoError(t, store.AppendTranscript("20260830_101500", entry))

	got, err := store.Transcripts("20260830_101500")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry, got[0])
}

func TestClassificationRoundTrip(t *testing.T) {
	store := testStore(t)

	entry := ClassificationEntry{
		Timestamp:  "2026-08-30 10:15:05",
		FrameFile:  "frame_0001.jpg",
		Prediction: "Spalling",
		Confidence: 87.25,
		Probabilities: map[string]float64{
			"Spalling":       87.25,
			"Plain (Normal)": 12.75,
		},
	}
	require.NoError(t, store.AppendClassification("20260830_101500", entry))

	got, err := store.Classifications("20260830_101500")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entry, got[0])
}

func TestAppendSurvivesStoreRestart(t *testing.T) {
	settings := &conf.Settings{}
	settings.Capture.Export.BasePath = t.TempDir()
	settings.Capture.Export.TranscriptDir = "transcripts"
	settings.Capture.Export.ClassificationDir = "classifications"
	settings.Capture.Export.UnifiedDir = "unified"

	store, err := NewStore(settings)
	require.NoError(t, err)
	require.NoError(t, store.AppendTranscript("20260830_090000",
		TranscriptEntry{Timestamp: "2026-08-30 09:00:10", Text: "first"}))

	// A fresh store must pick up the existing file before appending.
	store2, err := NewStore(settings)
	require.NoError(t, err)
	require.NoError(t, store2.AppendTranscript("20260830_090000",
		TranscriptEntry{Timestamp: "2026-08-30 09:00:20", Text: "second"}))

	got, err := store2.Transcripts("20260830_090000")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func TestMissingSessionYieldsEmptySlices(t *testing.T) {
	store := testStore(t)

	transcripts, err := store.Transcripts("nope")
	require.NoError(t, err)
	assert.Empty(t, transcripts)

	classifications, err := store.Classifications("nope")
	require.NoError(t, err)
	assert.Empty(t, classifications)

	logs, err := store.UnifiedLogs("nope")
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = store.Session("nope")
	assert.Error(t, err)
}

func TestSessionsSortedNewestFirst(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.AppendTranscript("20260829_080000",
		TranscriptEntry{Timestamp: "2026-08-29 08:00:00", Text: "older"}))
	require.NoError(t, store.AppendClassification("20260830_090000",
		ClassificationEntry{Timestamp: "2026-08-30 09:00:00", Prediction: "Algae", Confidence: 60}))
	require.NoError(t, store.AppendUnified("20260830_090000",
		UnifiedEntry{Timestamp: "2026-08-30 09:00:01", Transcript: "note"}))

	sessions, err := store.Sessions()
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "20260830_090000", sessions[0].ID)
	assert.Equal(t, 1, sessions[0].ClassificationCount)
	assert.Equal(t, 1, sessions[0].UnifiedCount)
	assert.Equal(t, "20260829_080000", sessions[1].ID)
	assert.Equal(t, 1, sessions[1].TranscriptCount)
}

func TestAllUnifiedLogsMergesSessionsNewestFirst(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.AppendUnified("20260829_080000",
		UnifiedEntry{Timestamp: "2026-08-29 08:00:01", Transcript: "older session"}))
	require.NoError(t, store.AppendUnified("20260830_090000",
		UnifiedEntry{Timestamp: "2026-08-30 09:00:01", Transcript: "newer first"}))
	require.NoError(t, store.AppendUnified("20260830_090000",
		UnifiedEntry{Timestamp: "2026-08-30 09:00:02", Transcript: "newer second"}))

	logs, err := store.AllUnifiedLogs()
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "newer first", logs[0].Transcript)
	assert.Equal(t, "newer second", logs[1].Transcript)
	assert.Equal(t, "older session", logs[2].Transcript)
}

func TestSearchTranscripts(t *testing.T) {
	store := testStore(t)

	id := "20260830_100000"
	require.NoError(t, store.AppendTranscript(id,
		TranscriptEntry{Timestamp: "t1", Text: "Major crack on the north wall"}))
	require.NoError(t, store.AppendTranscript(id,
		TranscriptEntry{Timestamp: "t2", Text: "ceiling looks fine"}))

	matches, err := store.SearchTranscripts(id, []string{"CRACK"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "t1", matches[0].Timestamp)

	// empty session id searches across all sessions
	matches, err = store.SearchTranscripts("", []string{"ceiling"})
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	matches, err = store.SearchTranscripts(id, []string{"window"})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSearchClassifications(t *testing.T) {
	store := testStore(t)

	id := "20260830_110000"
	require.NoError(t, store.AppendClassification(id,
		ClassificationEntry{Timestamp: "t1", Prediction: "Spalling", Confidence: 91}))
	require.NoError(t, store.AppendClassification(id,
		ClassificationEntry{Timestamp: "t2", Prediction: "Stain", Confidence: 45}))
	require.NoError(t, store.AppendClassification(id,
		ClassificationEntry{Timestamp: "t3", Prediction: "Plain (Normal)", Confidence: 99}))

	matches, err := store.SearchClassifications(id, []string{"spalling", "stain"}, 50)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Spalling", matches[0].Prediction)

	// no defect filter matches every label above the threshold
	matches, err = store.SearchClassifications(id, nil, 0)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
