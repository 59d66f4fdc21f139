package reconstruction

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPLYRoundTrip(t *testing.T) {
	cloud := &PointCloud{Points: []Point{
		{X: 0.5, Y: -1.25, Z: 3.0, R: 200, G: 100, B: 50},
		{X: -2.0, Y: 0.0, Z: 1.5, R: 0, G: 255, B: 0},
		{X: 10.0, Y: 10.0, Z: 10.0, R: 12, G: 34, B: 56},
	}}

	path := filepath.Join(t.TempDir(), "cloud.ply")
	require.NoError(t, cloud.SavePLY(path))

	loaded, err := LoadPLY(path)
	require.NoError(t, err)
	require.Len(t, loaded.Points, 3)
	for i := range cloud.Points {
		assert.InDelta(t, cloud.Points[i].X, loaded.Points[i].X, 1e-5)
		assert.InDelta(t, cloud.Points[i].Y, loaded.Points[i].Y, 1e-5)
		assert.InDelta(t, cloud.Points[i].Z, loaded.Points[i].Z, 1e-5)
		assert.Equal(t, cloud.Points[i].R, loaded.Points[i].R)
		assert.Equal(t, cloud.Points[i].G, loaded.Points[i].G)
		assert.Equal(t, cloud.Points[i].B, loaded.Points[i].B)
	}
}

func TestLoadASCIIPLY(t *testing.T) {
	content := `ply
format ascii 1.0
comment exported for test
element vertex 2
property float x
property float y
property float z
property uchar red
property uchar green
property uchar blue
end_header
1.0 2.0 3.0 255 0 0
-1.0 -2.0 -3.0 0 0 255
`
	path := filepath.Join(t.TempDir(), "ascii.ply")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cloud, err := LoadPLY(path)
	require.NoError(t, err)
	require.Len(t, cloud.Points, 2)
	assert.InDelta(t, 1.0, cloud.Points[0].X, 1e-9)
	assert.EqualValues(t, 255, cloud.Points[0].R)
	assert.InDelta(t, -3.0, cloud.Points[1].Z, 1e-9)
	assert.EqualValues(t, 255, cloud.Points[1].B)
}

func TestLoadPLYRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ply")
	require.NoError(t, os.WriteFile(path, []byte("not a ply file\n"), 0o644))

	_, err := LoadPLY(path)
	assert.Error(t, err)
}

func TestVoxelDownsample(t *testing.T) {
	// two tight clusters far apart collapse to two points
	cloud := &PointCloud{Points: []Point{
		{X: 0.001, Y: 0.001, Z: 0.001, R: 100, G: 100, B: 100},
		{X: 0.002, Y: 0.002, Z: 0.002, R: 200, G: 200, B: 200},
		{X: 5.0, Y: 5.0, Z: 5.0, R: 10, G: 20, B: 30},
	}}

	down := cloud.VoxelDownsample(0.1)
	require.Len(t, down.Points, 2)
	assert.InDelta(t, 0.0015, down.Points[0].X, 1e-6)
	assert.EqualValues(t, 150, down.Points[0].R)
}

func TestRemoveRadiusOutliers(t *testing.T) {
	cloud := &PointCloud{}
	// dense cluster at the origin
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		cloud.Points = append(cloud.Points, Point{
			X: rng.Float64() * 0.05,
			Y: rng.Float64() * 0.05,
			Z: rng.Float64() * 0.05,
		})
	}
	// far away stray
	cloud.Points = append(cloud.Points, Point{X: 100, Y: 100, Z: 100})

	cleaned := cloud.RemoveRadiusOutliers(0.2, 3)
	assert.Len(t, cleaned.Points, 50)
}

func TestRemoveStatisticalOutliers(t *testing.T) {
	cloud := &PointCloud{}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		cloud.Points = append(cloud.Points, Point{
			X: rng.Float64() * 0.1,
			Y: rng.Float64() * 0.1,
			Z: rng.Float64() * 0.1,
		})
	}
	cloud.Points = append(cloud.Points, Point{X: 50, Y: 50, Z: 50})

	cleaned := cloud.RemoveStatisticalOutliers(10, 2.0, 0.2)
	assert.Less(t, len(cleaned.Points), 101)
	assert.GreaterOrEqual(t, len(cleaned.Points), 90)
}

func TestAddDefectMarkers(t *testing.T) {
	cloud := &PointCloud{Points: []Point{{X: 0, Y: 0, Z: 0}}}
	before := len(cloud.Points)

	cloud.AddDefectMarkers([]Annotation{
		{DefectType: "Major Crack", Position: Vector3{X: 1, Y: 2, Z: 3}},
	}, 0.05)

	require.Greater(t, len(cloud.Points), before)
	marker := cloud.Points[before]
	assert.InDelta(t, 1.0, marker.X, 0.1)
	assert.EqualValues(t, 255, marker.R)
	assert.EqualValues(t, 0, marker.G)
}

func TestSaveGLB(t *testing.T) {
	cloud := &PointCloud{Points: []Point{
		{X: 1, Y: 2, Z: 3, R: 255, G: 128, B: 0},
		{X: -1, Y: -2, Z: -3, R: 0, G: 128, B: 255},
	}}

	path := filepath.Join(t.TempDir(), "model.glb")
	require.NoError(t, cloud.SaveGLB(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 20)

	assert.EqualValues(t, 0x46546C67, binary.LittleEndian.Uint32(data[0:4]), "glTF magic")
	assert.EqualValues(t, 2, binary.LittleEndian.Uint32(data[4:8]), "glTF version")
	assert.EqualValues(t, len(data), binary.LittleEndian.Uint32(data[8:12]), "total length")
	assert.EqualValues(t, 0x4E4F534A, binary.LittleEndian.Uint32(data[16:20]), "JSON chunk type")

	empty := &PointCloud{}
	assert.Error(t, empty.SaveGLB(filepath.Join(t.TempDir(), "empty.glb")))
}
