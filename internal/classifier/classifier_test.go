package classifier

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShashidharM0118/sitelenz/internal/errors"
)

func TestLabelsMatchModelClasses(t *testing.T) {
	t.Parallel()

	require.Len(t, Labels, NumClasses)

	seen := make(map[string]bool, NumClasses)
	for _, label := range Labels {
		assert.NotEmpty(t, label)
		assert.False(t, seen[label], "duplicate label %q", label)
		seen[label] = true
	}
}

func TestIsDefect(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDefect(LabelMajorCrack))
	assert.True(t, IsDefect(LabelAlgae))
	assert.True(t, IsDefect(LabelSpalling))
	assert.False(t, IsDefect(LabelPlain))
	assert.False(t, IsDefect("Unknown"))
	assert.False(t, IsDefect(""))
}

func TestPredictAfterCloseReturnsError(t *testing.T) {
	t.Parallel()

	c := &Classifier{}
	c.Close()

	pred, err := c.Predict(image.NewRGBA(image.Rect(0, 0, 8, 8)))
	require.Error(t, err)
	assert.Nil(t, pred)

	var ee *errors.EnhancedError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, errors.CategoryState, ee.Category)
}

func TestSoftmaxDistribution(t *testing.T) {
	t.Parallel()

	probs := softmax([]float32{1, 2, 3, 4, 1, 2, 3})

	var sum float64
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	// largest logit wins
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	assert.Equal(t, 3, best)
}

func TestSoftmaxLargeLogitsStable(t *testing.T) {
	t.Parallel()

	probs := softmax([]float32{1000, 999, 998, 0, 0, 0, 0})
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
		assert.False(t, math.IsInf(p, 0))
	}
	assert.Greater(t, probs[0], probs[1])
}

func TestPredictionFromLogits(t *testing.T) {
	t.Parallel()

	logits := make([]float32, NumClasses)
	logits[1] = 10 // Major Crack

	pred := predictionFromLogits(logits)

	assert.Equal(t, LabelMajorCrack, pred.Label)
	assert.GreaterOrEqual(t, pred.Confidence, 0.0)
	assert.LessOrEqual(t, pred.Confidence, 100.0)
	require.Len(t, pred.Probabilities, NumClasses)

	var total float64
	for label, p := range pred.Probabilities {
		assert.Contains(t, Labels, label)
		total += p
	}
	assert.InDelta(t, 100.0, total, 0.5)
}

func TestPreprocessShape(t *testing.T) {
	t.Parallel()

	// a wide image exercises the aspect-preserving resize path
	img := image.NewRGBA(image.Rect(0, 0, 800, 400))
	for y := range 400 {
		for x := range 800 {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}

	data := preprocess(img)
	require.Len(t, data, inputSize*inputSize*3)

	// a uniform mid-gray image normalizes to (0.5 - mean) / std per channel
	wantR := (0.5 - float64(normMean[0])) / float64(normStd[0])
	assert.InDelta(t, wantR, float64(data[0]), 0.05)
}

func TestCenterCropSmallImage(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	cropped := centerCrop(img, inputSize)

	assert.Equal(t, inputSize, cropped.Bounds().Dx())
	assert.Equal(t, inputSize, cropped.Bounds().Dy())
}
