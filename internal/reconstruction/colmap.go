// Package reconstruction turns uploaded room images into 3D models by
// driving a COLMAP binary through its sparse and dense pipelines, then
// post-processing the resulting point cloud for export.
package reconstruction

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
)

// Quality selects the reconstruction preset.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

type qualityPreset struct {
	maxFeatures  int // SIFT features per image
	maxImageSize int // dense stereo image cap
}

var qualityPresets = map[Quality]qualityPreset{
	QualityHigh:   {maxFeatures: 16384, maxImageSize: 3200},
	QualityMedium: {maxFeatures: 8192, maxImageSize: 2000},
	QualityLow:    {maxFeatures: 4096, maxImageSize: 1600},
}

// ParseQuality validates a quality string, defaulting to medium.
func ParseQuality(s string) (Quality, error) {
	switch Quality(strings.ToLower(s)) {
	case QualityLow:
		return QualityLow, nil
	case QualityMedium, "":
		return QualityMedium, nil
	case QualityHigh:
		return QualityHigh, nil
	default:
		return "", errors.Newf("unknown quality: %s", s).
			Component("reconstruction").
			Category(errors.CategoryValidation).
			Build()
	}
}

// Runner executes COLMAP pipeline stages as subprocesses.
type Runner struct {
	binary  string
	metrics *metrics.ReconstructionMetrics
}

// NewRunner creates a runner for the given COLMAP executable.
func NewRunner(binary string, m *metrics.ReconstructionMetrics) *Runner {
	if binary == "" {
		binary = "colmap"
	}
	return &Runner{binary: binary, metrics: m}
}

// Available reports whether the COLMAP binary can be found.
func (r *Runner) Available() bool {
	if filepath.IsAbs(r.binary) {
		_, err := os.Stat(r.binary)
		return err == nil
	}
	_, err := exec.LookPath(r.binary)
	return err == nil
}

// PipelineResult describes a finished reconstruction run.
type PipelineResult struct {
	ModelPath string // PLY produced by the pipeline
	Dense     bool   // false when the run fell back to the sparse model
}

// Reconstruct runs the full pipeline over the images in
// workspace/images. The dense stages are attempted first; on failure the
// sparse model is exported instead. Progress is reported per step.
func (r *Runner) Reconstruct(ctx context.Context, workspace string, quality Quality, progress func(step string, pct int)) (*PipelineResult, error) {
	preset, ok := qualityPresets[quality]
	if !ok {
		preset = qualityPresets[QualityMedium]
	}
	if progress == nil {
		progress = func(string, int) {}
	}

	imageDir := filepath.Join(workspace, "images")
	colmapDir := filepath.Join(workspace, "colmap")
	databasePath := filepath.Join(colmapDir, "database.db")
	sparseDir := filepath.Join(colmapDir, "sparse")
	denseDir := filepath.Join(colmapDir, "dense")

	for _, dir := range []string{colmapDir, sparseDir, denseDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(err).
				Component("reconstruction").
				Category(errors.CategoryFileIO).
				Context("dir", dir).
				Build()
		}
	}

	progress("feature_extractor", 10)
	if err := r.run(ctx, "feature_extractor",
		"--database_path", databasePath,
		"--image_path", imageDir,
		"--ImageReader.single_camera", "1",
		"--SiftExtraction.max_num_features", strconv.Itoa(preset.maxFeatures),
	); err != nil {
		return nil, err
	}

	progress("exhaustive_matcher", 25)
	if err := r.run(ctx, "exhaustive_matcher",
		"--database_path", databasePath,
	); err != nil {
		return nil, err
	}

	progress("mapper", 40)
	if err := r.run(ctx, "mapper",
		"--database_path", databasePath,
		"--image_path", imageDir,
		"--output_path", sparseDir,
	); err != nil {
		return nil, err
	}

	sparseModel := filepath.Join(sparseDir, "0")
	if _, err := os.Stat(sparseModel); err != nil {
		return nil, errors.Newf("mapper produced no sparse model").
			Component("reconstruction").
			Category(errors.CategoryReconstruction).
			Context("step", "mapper").
			Build()
	}

	densePLY := filepath.Join(denseDir, "fused.ply")
	if err := r.runDense(ctx, imageDir, sparseModel, denseDir, densePLY, preset, progress); err != nil {
		// dense stereo needs CUDA and plenty of memory, fall back to
		// the sparse point cloud when it fails
		slog.Warn("dense reconstruction failed, exporting sparse model", "error", err)

		progress("model_converter", 85)
		sparsePLY := filepath.Join(sparseDir, "points.ply")
		if err := r.run(ctx, "model_converter",
			"--input_path", sparseModel,
			"--output_path", sparsePLY,
			"--output_type", "PLY",
		); err != nil {
			return nil, err
		}
		return &PipelineResult{ModelPath: sparsePLY, Dense: false}, nil
	}

	return &PipelineResult{ModelPath: densePLY, Dense: true}, nil
}

func (r *Runner) runDense(ctx context.Context, imageDir, sparseModel, denseDir, densePLY string, preset qualityPreset, progress func(string, int)) error {
	progress("image_undistorter", 55)
	if err := r.run(ctx, "image_undistorter",
		"--image_path", imageDir,
		"--input_path", sparseModel,
		"--output_path", denseDir,
		"--output_type", "COLMAP",
		"--max_image_size", strconv.Itoa(preset.maxImageSize),
	); err != nil {
		return err
	}

	progress("patch_match_stereo", 65)
	if err := r.run(ctx, "patch_match_stereo",
		"--workspace_path", denseDir,
		"--workspace_format", "COLMAP",
		"--PatchMatchStereo.geom_consistency", "true",
	); err != nil {
		return err
	}

	progress("stereo_fusion", 80)
	return r.run(ctx, "stereo_fusion",
		"--workspace_path", denseDir,
		"--workspace_format", "COLMAP",
		"--input_type", "geometric",
		"--output_path", densePLY,
	)
}

// run executes one COLMAP subcommand and waits for it to finish.
func (r *Runner) run(ctx context.Context, step string, args ...string) error {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.binary, append([]string{step}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if r.metrics != nil {
		r.metrics.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if ctx.Err() != nil {
			return errors.New(ctx.Err()).
				Component("reconstruction").
				Category(errors.CategoryCancellation).
				Context("step", step).
				Build()
		}
		return errors.Newf("colmap %s failed: %w, stderr: %s", step, err, lastLines(stderr.String(), 5)).
			Component("reconstruction").
			Category(errors.CategoryCommandExec).
			Context("step", step).
			Timing(step, time.Since(start)).
			Build()
	}
	return nil
}

// lastLines returns the trailing n non-empty lines of s for error context.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
