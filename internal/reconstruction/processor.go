package reconstruction

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/ShashidharM0118/sitelenz/internal/errors"
)

type voxelKey struct{ x, y, z int32 }

func keyFor(p *Point, size float64) voxelKey {
	return voxelKey{
		x: int32(math.Floor(p.X / size)),
		y: int32(math.Floor(p.Y / size)),
		z: int32(math.Floor(p.Z / size)),
	}
}

// VoxelDownsample replaces all points inside each voxel with their
// centroid, averaging colors.
func (pc *PointCloud) VoxelDownsample(size float64) *PointCloud {
	if size <= 0 || len(pc.Points) == 0 {
		return &PointCloud{Points: append([]Point(nil), pc.Points...)}
	}

	type accum struct {
		x, y, z float64
		r, g, b float64
		n       int
	}
	voxels := make(map[voxelKey]*accum)
	order := make([]voxelKey, 0)

	for i := range pc.Points {
		p := &pc.Points[i]
		key := keyFor(p, size)
		a, ok := voxels[key]
		if !ok {
			a = &accum{}
			voxels[key] = a
			order = append(order, key)
		}
		a.x += p.X
		a.y += p.Y
		a.z += p.Z
		a.r += float64(p.R)
		a.g += float64(p.G)
		a.b += float64(p.B)
		a.n++
	}

	out := make([]Point, 0, len(voxels))
	for _, key := range order {
		a := voxels[key]
		n := float64(a.n)
		out = append(out, Point{
			X: a.x / n, Y: a.y / n, Z: a.z / n,
			R: clampColor(a.r / n), G: clampColor(a.g / n), B: clampColor(a.b / n),
		})
	}
	return &PointCloud{Points: out}
}

// neighborIndex buckets points into voxels of the given cell size so
// radius queries only scan the 27 surrounding cells.
type neighborIndex struct {
	cells map[voxelKey][]int
	size  float64
}

func (pc *PointCloud) buildIndex(cellSize float64) *neighborIndex {
	idx := &neighborIndex{cells: make(map[voxelKey][]int), size: cellSize}
	for i := range pc.Points {
		key := keyFor(&pc.Points[i], cellSize)
		idx.cells[key] = append(idx.cells[key], i)
	}
	return idx
}

// neighborDistances collects distances from point i to other points
// within radius.
func (pc *PointCloud) neighborDistances(idx *neighborIndex, i int, radius float64) []float64 {
	p := &pc.Points[i]
	center := keyFor(p, idx.size)
	r2 := radius * radius

	var distances []float64
	for dx := int32(-1); dx <= 1; dx++ {
		for dy := int32(-1); dy <= 1; dy++ {
			for dz := int32(-1); dz <= 1; dz++ {
				key := voxelKey{center.x + dx, center.y + dy, center.z + dz}
				for _, j := range idx.cells[key] {
					if j == i {
						continue
					}
					q := &pc.Points[j]
					ddx, ddy, ddz := q.X-p.X, q.Y-p.Y, q.Z-p.Z
					d2 := ddx*ddx + ddy*ddy + ddz*ddz
					if d2 <= r2 {
						distances = append(distances, math.Sqrt(d2))
					}
				}
			}
		}
	}
	return distances
}

// RemoveRadiusOutliers drops points with fewer than minNeighbors other
// points within radius.
func (pc *PointCloud) RemoveRadiusOutliers(radius float64, minNeighbors int) *PointCloud {
	if radius <= 0 || minNeighbors <= 0 || len(pc.Points) == 0 {
		return &PointCloud{Points: append([]Point(nil), pc.Points...)}
	}

	idx := pc.buildIndex(radius)
	out := make([]Point, 0, len(pc.Points))
	for i := range pc.Points {
		if len(pc.neighborDistances(idx, i, radius)) >= minNeighbors {
			out = append(out, pc.Points[i])
		}
	}
	return &PointCloud{Points: out}
}

// RemoveStatisticalOutliers drops points whose mean distance to their
// nearest neighbors exceeds the global mean by stddevRatio standard
// deviations. The neighbor search radius bounds the k nearest lookup.
func (pc *PointCloud) RemoveStatisticalOutliers(k int, stddevRatio, radius float64) *PointCloud {
	if k <= 0 || len(pc.Points) < 2 {
		return &PointCloud{Points: append([]Point(nil), pc.Points...)}
	}
	if radius <= 0 {
		radius = 0.5
	}

	idx := pc.buildIndex(radius)
	means := make([]float64, len(pc.Points))
	for i := range pc.Points {
		distances := pc.neighborDistances(idx, i, radius)
		if len(distances) == 0 {
			// isolated point, treat the search radius as its distance
			means[i] = radius
			continue
		}
		sort.Float64s(distances)
		if len(distances) > k {
			distances = distances[:k]
		}
		sum := 0.0
		for _, d := range distances {
			sum += d
		}
		means[i] = sum / float64(len(distances))
	}

	var mean, sq float64
	for _, m := range means {
		mean += m
	}
	mean /= float64(len(means))
	for _, m := range means {
		sq += (m - mean) * (m - mean)
	}
	stddev := math.Sqrt(sq / float64(len(means)))
	threshold := mean + stddevRatio*stddev

	out := make([]Point, 0, len(pc.Points))
	for i := range pc.Points {
		if means[i] <= threshold {
			out = append(out, pc.Points[i])
		}
	}
	return &PointCloud{Points: out}
}

// defectColors maps defect labels to marker colors.
var defectColors = map[string][3]uint8{
	"Major Crack": {255, 0, 0},
	"Minor Crack": {255, 140, 0},
	"Peeling":     {255, 215, 0},
	"Algae":       {0, 160, 0},
	"Spalling":    {160, 32, 240},
	"Stain":       {139, 69, 19},
}

// AddDefectMarkers inserts small colored point clusters at the annotated
// defect positions so viewers can spot them in the model.
func (pc *PointCloud) AddDefectMarkers(annotations []Annotation, markerRadius float64) {
	if markerRadius <= 0 {
		markerRadius = 0.05
	}
	for i := range annotations {
		a := &annotations[i]
		color, ok := defectColors[a.DefectType]
		if !ok {
			color = [3]uint8{255, 0, 255}
		}
		// a small sphere of sample points around the annotation
		for _, offset := range markerOffsets {
			pc.Points = append(pc.Points, Point{
				X: a.Position.X + offset[0]*markerRadius,
				Y: a.Position.Y + offset[1]*markerRadius,
				Z: a.Position.Z + offset[2]*markerRadius,
				R: color[0], G: color[1], B: color[2],
			})
		}
	}
}

// markerOffsets samples a unit octahedron plus center.
var markerOffsets = [][3]float64{
	{0, 0, 0},
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
	{0.7, 0.7, 0}, {-0.7, 0.7, 0}, {0.7, -0.7, 0}, {-0.7, -0.7, 0},
	{0.7, 0, 0.7}, {-0.7, 0, 0.7}, {0, 0.7, 0.7}, {0, -0.7, 0.7},
}

// SaveGLB writes the cloud as a glTF 2.0 binary container with a single
// POINTS primitive carrying positions and vertex colors.
func (pc *PointCloud) SaveGLB(path string) error {
	count := len(pc.Points)
	if count == 0 {
		return errors.Newf("cannot export empty point cloud").
			Component("reconstruction").
			Category(errors.CategoryReconstruction).
			Build()
	}

	// binary payload: float32 positions then float32 colors
	bin := new(bytes.Buffer)
	minPos := [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	maxPos := [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}

	for i := range pc.Points {
		p := &pc.Points[i]
		pos := [3]float32{float32(p.X), float32(p.Y), float32(p.Z)}
		for j := 0; j < 3; j++ {
			if pos[j] < minPos[j] {
				minPos[j] = pos[j]
			}
			if pos[j] > maxPos[j] {
				maxPos[j] = pos[j]
			}
		}
		_ = binary.Write(bin, binary.LittleEndian, pos)
	}
	positionsLen := bin.Len()
	for i := range pc.Points {
		p := &pc.Points[i]
		_ = binary.Write(bin, binary.LittleEndian, [3]float32{
			float32(p.R) / 255, float32(p.G) / 255, float32(p.B) / 255,
		})
	}
	padTo4(bin)

	doc := map[string]any{
		"asset": map[string]any{"version": "2.0", "generator": "sitelenz"},
		"scene": 0,
		"scenes": []map[string]any{
			{"nodes": []int{0}},
		},
		"nodes": []map[string]any{
			{"mesh": 0},
		},
		"meshes": []map[string]any{
			{
				"primitives": []map[string]any{
					{
						"mode": 0, // POINTS
						"attributes": map[string]int{
							"POSITION": 0,
							"COLOR_0":  1,
						},
					},
				},
			},
		},
		"accessors": []map[string]any{
			{
				"bufferView":    0,
				"componentType": 5126, // FLOAT
				"count":         count,
				"type":          "VEC3",
				"min":           minPos[:],
				"max":           maxPos[:],
			},
			{
				"bufferView":    1,
				"componentType": 5126,
				"count":         count,
				"type":          "VEC3",
			},
		},
		"bufferViews": []map[string]any{
			{"buffer": 0, "byteOffset": 0, "byteLength": positionsLen},
			{"buffer": 0, "byteOffset": positionsLen, "byteLength": count * 12},
		},
		"buffers": []map[string]any{
			{"byteLength": bin.Len()},
		},
	}

	jsonChunk, err := json.Marshal(doc)
	if err != nil {
		return errors.New(err).
			Component("reconstruction").
			Category(errors.CategoryReconstruction).
			Build()
	}
	// JSON chunk is padded with spaces per the glTF spec
	for len(jsonChunk)%4 != 0 {
		jsonChunk = append(jsonChunk, ' ')
	}

	out := new(bytes.Buffer)
	total := 12 + 8 + len(jsonChunk) + 8 + bin.Len()
	_ = binary.Write(out, binary.LittleEndian, uint32(0x46546C67)) // "glTF"
	_ = binary.Write(out, binary.LittleEndian, uint32(2))
	_ = binary.Write(out, binary.LittleEndian, uint32(total))

	_ = binary.Write(out, binary.LittleEndian, uint32(len(jsonChunk)))
	_ = binary.Write(out, binary.LittleEndian, uint32(0x4E4F534A)) // "JSON"
	out.Write(jsonChunk)

	_ = binary.Write(out, binary.LittleEndian, uint32(bin.Len()))
	_ = binary.Write(out, binary.LittleEndian, uint32(0x004E4942)) // "BIN"
	out.Write(bin.Bytes())

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return wrapFileError(err, path)
	}
	return nil
}

func padTo4(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}
