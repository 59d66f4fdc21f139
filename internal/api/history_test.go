package api

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShashidharM0118/sitelenz/internal/capture"
	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/datastore"
	"github.com/ShashidharM0118/sitelenz/internal/reconstruction"
	"github.com/ShashidharM0118/sitelenz/internal/session"
)

// newHistoryController builds a controller backed by a real SQLite
// history database in a temp directory.
func newHistoryController(t *testing.T) (*Controller, datastore.Interface) {
	t.Helper()

	base := t.TempDir()
	settings := &conf.Settings{}
	settings.Version = "test"
	settings.Capture.Export.BasePath = base + "/capture"
	settings.Capture.Export.AudioDir = "audio"
	settings.Capture.Export.FrameDir = "frames"
	settings.Capture.Export.TranscriptDir = "transcripts"
	settings.Capture.Export.ClassificationDir = "classifications"
	settings.Capture.Export.UnifiedDir = "unified"
	settings.Reconstruction.ColmapPath = "definitely-not-colmap"
	settings.Reconstruction.SessionsDir = base + "/recon/sessions"
	settings.Reconstruction.OutputDir = base + "/recon/output"
	settings.Reconstruction.MinImages = 10
	settings.Reconstruction.MaxImages = 200
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = base + "/history.db"

	store, err := session.NewStore(settings)
	require.NoError(t, err)

	ds := datastore.New(settings)
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	captureMgr := capture.NewManager(settings, store, nil, nil, ds, nil)
	runner := reconstruction.NewRunner(settings.Reconstruction.ColmapPath, nil)
	reconMgr, err := reconstruction.NewManager(settings, runner, nil)
	require.NoError(t, err)

	e := echo.New()
	c := New(e, settings, store, captureMgr, reconMgr, nil, ds)
	t.Cleanup(c.Shutdown)
	return c, ds
}

func TestGetTranscriptsFromHistoryDatabase(t *testing.T) {
	c, ds := newHistoryController(t)

	require.NoError(t, ds.SaveTranscript(&datastore.Transcript{
		SessionID: "20260830_150000",
		Timestamp: "2026-08-30 15:00:05",
		Text:      "stain spreading on the ceiling",
	}))
	require.NoError(t, ds.SaveTranscript(&datastore.Transcript{
		SessionID: "20260830_160000",
		Timestamp: "2026-08-30 16:00:05",
		Text:      "other session",
	}))

	rec := doRequest(t, c, http.MethodGet, "/api/audio/transcripts?session_id=20260830_150000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])
}

func TestSearchTranscriptsFromHistoryDatabase(t *testing.T) {
	c, ds := newHistoryController(t)

	require.NoError(t, ds.SaveTranscript(&datastore.Transcript{
		SessionID: "20260830_150000",
		Timestamp: "2026-08-30 15:00:05",
		Text:      "crack running along the lintel",
	}))
	require.NoError(t, ds.SaveTranscript(&datastore.Transcript{
		SessionID: "20260830_150000",
		Timestamp: "2026-08-30 15:00:12",
		Text:      "damp patch near the cracked lintel",
	}))

	// overlapping keywords must not duplicate matches
	rec := doRequest(t, c, http.MethodPost, "/api/audio/search",
		`{"keywords":["crack","lintel"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])

	rec = doRequest(t, c, http.MethodPost, "/api/audio/search",
		`{"keywords":["damp"],"session_id":"20260830_150000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])

	rec = doRequest(t, c, http.MethodPost, "/api/audio/search",
		`{"keywords":["damp"],"session_id":"20260830_999999"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.EqualValues(t, 0, body["count"])
}

func TestGetClassificationsFromHistoryDatabase(t *testing.T) {
	c, ds := newHistoryController(t)

	require.NoError(t, ds.SaveClassification(&datastore.Classification{
		SessionID:     "20260830_150000",
		Timestamp:     "2026-08-30 15:00:07",
		Prediction:    "Spalling",
		Confidence:    91.4,
		Probabilities: `{"Spalling":91.4,"Plain (Normal)":8.6}`,
	}))

	rec := doRequest(t, c, http.MethodGet, "/api/camera/classifications?session_id=20260830_150000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])

	rows, ok := body["classifications"].([]any)
	require.True(t, ok)
	require.Len(t, rows, 1)
	row, ok := rows[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Spalling", row["prediction"])
	probs, ok := row["probabilities"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 91.4, probs["Spalling"], 0.001)
}

func TestSearchClassificationsFromHistoryDatabase(t *testing.T) {
	c, ds := newHistoryController(t)

	require.NoError(t, ds.SaveClassification(&datastore.Classification{
		SessionID:  "20260830_150000",
		Timestamp:  "2026-08-30 15:00:07",
		Prediction: "Spalling",
		Confidence: 91.4,
	}))
	require.NoError(t, ds.SaveClassification(&datastore.Classification{
		SessionID:  "20260830_150000",
		Timestamp:  "2026-08-30 15:00:09",
		Prediction: "Exposed Rebars",
		Confidence: 55.0,
	}))
	require.NoError(t, ds.SaveClassification(&datastore.Classification{
		SessionID:  "20260830_150000",
		Timestamp:  "2026-08-30 15:00:11",
		Prediction: "Plain (Normal)",
		Confidence: 99.0,
	}))

	rec := doRequest(t, c, http.MethodPost, "/api/camera/search",
		`{"min_confidence":60}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])

	// defect type filter is case insensitive
	rec = doRequest(t, c, http.MethodPost, "/api/camera/search",
		`{"defect_types":["exposed rebars"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.EqualValues(t, 1, body["count"])
}
