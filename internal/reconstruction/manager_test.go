package reconstruction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
)

func testReconSettings(t *testing.T) *conf.Settings {
	t.Helper()

	base := t.TempDir()
	settings := &conf.Settings{}
	settings.Reconstruction.ColmapPath = "definitely-not-colmap"
	settings.Reconstruction.SessionsDir = base + "/sessions"
	settings.Reconstruction.OutputDir = base + "/output"
	settings.Reconstruction.MinImages = 10
	settings.Reconstruction.MaxImages = 15
	return settings
}

func testReconManager(t *testing.T) *Manager {
	t.Helper()

	settings := testReconSettings(t)
	mgr, err := NewManager(settings, NewRunner(settings.Reconstruction.ColmapPath, nil), nil)
	require.NoError(t, err)
	return mgr
}

// tiny but valid JPEG-ish payload, content is never decoded on upload
var testImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0xFF, 0xD9}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality("HIGH")
	require.NoError(t, err)
	assert.Equal(t, QualityHigh, q)

	q, err = ParseQuality("")
	require.NoError(t, err)
	assert.Equal(t, QualityMedium, q)

	_, err = ParseQuality("ultra")
	assert.Error(t, err)
}

func TestStartSessionAndUpload(t *testing.T) {
	mgr := testReconManager(t)

	s, err := mgr.StartSession("Block A survey", "living_room")
	require.NoError(t, err)
	assert.Regexp(t, `^session_\d+$`, s.ID)
	assert.Equal(t, "capturing", s.Status)

	pose := Pose{Position: Vector3{X: 1, Y: 0.5, Z: 2}}
	count, err := mgr.UploadImage(s.ID, testImage, pose, "crack here", "Major Crack", 88.0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := mgr.Session(s.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 1)
	assert.Equal(t, "img_0001.jpg", got.Images[0].Filename)

	// defect classification becomes an annotation at the camera position
	require.Len(t, got.Annotations, 1)
	assert.Equal(t, "Major Crack", got.Annotations[0].DefectType)
	assert.InDelta(t, 1.0, got.Annotations[0].Position.X, 1e-9)

	// plain frames are not annotated
	_, err = mgr.UploadImage(s.ID, testImage, pose, "", "Plain (Normal)", 95.0)
	require.NoError(t, err)
	got, err = mgr.Session(s.ID)
	require.NoError(t, err)
	assert.Len(t, got.Annotations, 1)
}

func TestUploadRejectsUnknownSession(t *testing.T) {
	mgr := testReconManager(t)
	_, err := mgr.UploadImage("session_0", testImage, Pose{}, "", "", 0)
	assert.Error(t, err)
}

func TestUploadCapEnforced(t *testing.T) {
	mgr := testReconManager(t)

	s, err := mgr.StartSession("cap test", "kitchen")
	require.NoError(t, err)

	for i := 0; i < 15; i++ {
		_, err := mgr.UploadImage(s.ID, testImage, Pose{}, "", "", 0)
		require.NoError(t, err)
	}
	count, err := mgr.UploadImage(s.ID, testImage, Pose{}, "", "", 0)
	assert.Error(t, err)
	assert.Equal(t, 15, count)
}

func TestReconstructRequiresMinimumImages(t *testing.T) {
	mgr := testReconManager(t)

	s, err := mgr.StartSession("too few", "bathroom")
	require.NoError(t, err)
	for i := 0; i < 9; i++ {
		_, err := mgr.UploadImage(s.ID, testImage, Pose{}, "", "", 0)
		require.NoError(t, err)
	}

	_, err = mgr.StartReconstruction(s.ID, QualityMedium)
	assert.Error(t, err)
}

func TestReconstructJobFailsWithoutColmap(t *testing.T) {
	mgr := testReconManager(t)

	s, err := mgr.StartSession("doomed", "bedroom")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := mgr.UploadImage(s.ID, testImage, Pose{}, "", "", 0)
		require.NoError(t, err)
	}

	job, err := mgr.StartReconstruction(s.ID, QualityLow)
	require.NoError(t, err)
	assert.Regexp(t, `^recon_\d+$`, job.ID)

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if st := mgr.JobStatus(job.ID); st != nil && st.Status == JobFailed {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	st := mgr.JobStatus(job.ID)
	require.NotNil(t, st)
	assert.Equal(t, JobFailed, st.Status)
	assert.NotEmpty(t, st.Errors)

	_, err = mgr.DownloadPath(job.ID, "ply")
	assert.Error(t, err)
}

func TestSessionsReloadFromDisk(t *testing.T) {
	settings := testReconSettings(t)
	mgr, err := NewManager(settings, NewRunner(settings.Reconstruction.ColmapPath, nil), nil)
	require.NoError(t, err)

	s, err := mgr.StartSession("persistent", "hall")
	require.NoError(t, err)
	_, err = mgr.UploadImage(s.ID, testImage, Pose{}, "", "", 0)
	require.NoError(t, err)

	mgr2, err := NewManager(settings, NewRunner(settings.Reconstruction.ColmapPath, nil), nil)
	require.NoError(t, err)

	got, err := mgr2.Session(s.ID)
	require.NoError(t, err)
	assert.Equal(t, "persistent", got.ProjectName)
	assert.Len(t, got.Images, 1)
}

func TestDeleteSession(t *testing.T) {
	mgr := testReconManager(t)

	s, err := mgr.StartSession("short lived", "office")
	require.NoError(t, err)

	require.NoError(t, mgr.DeleteSession(s.ID))
	_, err = mgr.Session(s.ID)
	assert.Error(t, err)

	assert.Error(t, mgr.DeleteSession(s.ID))
}
