// Package classifier runs the wall defect ViT model. The model is a
// TensorFlow Lite export of the trained Vision Transformer; inference is a
// single forward pass with softmax over the seven surface condition classes.
package classifier

import (
	"fmt"
	"image"
	// register decoders for uploaded images
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	tflite "github.com/tphakala/go-tflite"

	"github.com/ShashidharM0118/sitelenz/internal/conf"
	"github.com/ShashidharM0118/sitelenz/internal/errors"
	"github.com/ShashidharM0118/sitelenz/internal/observability/metrics"
)

// Prediction is the result of classifying a single image.
type Prediction struct {
	Label         string             `json:"prediction"`
	Confidence    float64            `json:"confidence"`    // percentage, 0-100
	Probabilities map[string]float64 `json:"probabilities"` // per-label percentages
}

// Classifier wraps the TensorFlow Lite interpreter for the defect model.
type Classifier struct {
	interpreter *tflite.Interpreter
	settings    *conf.Settings
	metrics     *metrics.ClassifierMetrics
	mu          sync.Mutex
}

// New loads the model from the configured path and prepares an interpreter.
func New(settings *conf.Settings) (*Classifier, error) {
	start := time.Now()

	modelData, err := os.ReadFile(settings.Classifier.ModelPath)
	if err != nil {
		return nil, errors.New(err).
			Component("classifier").
			Category(errors.CategoryModelLoad).
			Context("model_path", settings.Classifier.ModelPath).
			Timing("model-load", time.Since(start)).
			Build()
	}

	model := tflite.NewModel(modelData)
	if model == nil {
		return nil, errors.Newf("cannot load TensorFlow Lite model").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Context("model_size_mb", len(modelData)/1024/1024).
			Build()
	}

	threads := settings.Classifier.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		return nil, errors.Newf("cannot create interpreter").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		return nil, errors.Newf("tensor allocation failed").
			Component("classifier").
			Category(errors.CategoryModelInit).
			Build()
	}

	// The interpreter keeps its own copy of the model data
	runtime.GC()

	return &Classifier{
		interpreter: interpreter,
		settings:    settings,
	}, nil
}

// SetMetrics attaches the Prometheus collectors used to record inference
// outcomes. Safe to leave unset in CLI usage.
func (c *Classifier) SetMetrics(m *metrics.ClassifierMetrics) {
	c.metrics = m
	if m != nil {
		m.ModelLoadedGauge.Set(1)
	}
}

// Close releases the interpreter. The classifier must not be used after.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter != nil {
		c.interpreter.Delete()
		c.interpreter = nil
	}
	if c.metrics != nil {
		c.metrics.ModelLoadedGauge.Set(0)
	}
}

// Predict classifies a decoded image and returns the predicted label with
// per-class probabilities as percentages.
func (c *Classifier) Predict(img image.Image) (*Prediction, error) {
	// single interpreter, serialize access
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.interpreter == nil {
		return nil, errors.Newf("classifier is closed").
			Component("classifier").
			Category(errors.CategoryState).
			Build()
	}

	start := time.Now()

	inputTensor := c.interpreter.GetInputTensor(0)
	if inputTensor == nil {
		return nil, errors.Newf("cannot get input tensor").
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}

	copy(inputTensor.Float32s(), preprocess(img))

	if status := c.interpreter.Invoke(); status != tflite.OK {
		if c.metrics != nil {
			c.metrics.ClassificationErrors.Inc()
		}
		return nil, errors.Newf("tensor invoke failed: %v", status).
			Component("classifier").
			Category(errors.CategoryClassification).
			Build()
	}

	outputTensor := c.interpreter.GetOutputTensor(0)
	logits := make([]float32, NumClasses)
	copy(logits, outputTensor.Float32s())

	pred := predictionFromLogits(logits)

	if c.metrics != nil {
		c.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
		c.metrics.RecordClassification(pred.Label)
	}

	return pred, nil
}

// PredictReader decodes an image from r and classifies it.
func (c *Classifier) PredictReader(r io.Reader) (*Prediction, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, errors.New(fmt.Errorf("cannot decode image: %w", err)).
			Component("classifier").
			Category(errors.CategoryImageDecode).
			Build()
	}
	return c.Predict(img)
}

// predictionFromLogits applies softmax and maps the result to labels.
func predictionFromLogits(logits []float32) *Prediction {
	probs := softmax(logits)

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}

	probabilities := make(map[string]float64, NumClasses)
	for i, p := range probs {
		probabilities[Labels[i]] = round2(p * 100)
	}

	return &Prediction{
		Label:         Labels[best],
		Confidence:    round2(probs[best] * 100),
		Probabilities: probabilities,
	}
}

// softmax converts logits to a probability distribution.
func softmax(logits []float32) []float64 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	exps := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		exps[i] = math.Exp(float64(l - maxLogit))
		sum += exps[i]
	}
	for i := range exps {
		exps[i] /= sum
	}
	return exps
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
