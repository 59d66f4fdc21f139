package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
)

func openTestStore(t *testing.T) Interface {
	t.Helper()

	settings := &conf.Settings{}
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	store := New(settings)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	store := New(&conf.Settings{})
	assert.Error(t, store.Open())
}

func TestSaveAndQueryBySession(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveClassification(&Classification{
		SessionID:  "20260830_120000",
		Timestamp:  "2026-08-30 12:00:05",
		Prediction: "Peeling",
		Confidence: 78.5,
	}))
	require.NoError(t, store.SaveClassification(&Classification{
		SessionID:  "20260830_130000",
		Timestamp:  "2026-08-30 13:00:05",
		Prediction: "Stain",
		Confidence: 66.0,
	}))
	require.NoError(t, store.SaveTranscript(&Transcript{
		SessionID: "20260830_120000",
		Timestamp: "2026-08-30 12:00:10",
		Text:      "peeling paint along the corridor",
	}))

	classifications, err := store.ClassificationsBySession("20260830_120000")
	require.NoError(t, err)
	require.Len(t, classifications, 1)
	assert.Equal(t, "Peeling", classifications[0].Prediction)

	transcripts, err := store.TranscriptsBySession("20260830_120000")
	require.NoError(t, err)
	require.Len(t, transcripts, 1)

	c, tr, err := store.Counts()
	require.NoError(t, err)
	assert.EqualValues(t, 2, c)
	assert.EqualValues(t, 1, tr)
}

func TestSearchTranscripts(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveTranscript(&Transcript{
		SessionID: "s1", Text: "major crack in the basement",
	}))
	require.NoError(t, store.SaveTranscript(&Transcript{
		SessionID: "s1", Text: "all clear on the roof",
	}))

	rows, err := store.SearchTranscripts("crack", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Contains(t, rows[0].Text, "crack")
}

func TestDefectClassificationsExcludesPlain(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveClassification(&Classification{
		SessionID: "s1", Prediction: "Plain (Normal)", Confidence: 99,
	}))
	require.NoError(t, store.SaveClassification(&Classification{
		SessionID: "s1", Prediction: "Algae", Confidence: 82,
	}))
	require.NoError(t, store.SaveClassification(&Classification{
		SessionID: "s1", Prediction: "Spalling", Confidence: 40,
	}))

	rows, err := store.DefectClassifications(50, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Algae", rows[0].Prediction)
}
