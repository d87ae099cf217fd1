package inference

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/desertthunder/moodbeats/internal/models"
	"github.com/desertthunder/moodbeats/internal/shared"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	envMu    sync.Mutex
	envUsers int
)

// acquireEnvironment initializes the process-wide ONNX Runtime environment on
// first use. Each successful call must be paired with releaseEnvironment.
func acquireEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envUsers == 0 {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(shared.ExpandPath(libraryPath))
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("%w: failed to initialize ONNX environment: %v", shared.ErrModelsUnavailable, err)
		}
	}
	envUsers++
	return nil
}

func releaseEnvironment() {
	envMu.Lock()
	defer envMu.Unlock()

	if envUsers == 0 {
		return
	}
	envUsers--
	if envUsers == 0 {
		ort.DestroyEnvironment()
	}
}

func newSession(path string, a Artifact) (*ort.DynamicAdvancedSession, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer opts.Destroy()

	if err := opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll); err != nil {
		return nil, fmt.Errorf("failed to set graph optimization: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(path, a.Inputs, a.Outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session for %s: %v", shared.ErrModelsUnavailable, a.File, err)
	}
	return session, nil
}

// run feeds one float32 tensor and returns copies of every float32 output.
func run(mu *sync.Mutex, session *ort.DynamicAdvancedSession, shape ort.Shape, input []float32, outputs int) ([][]float32, error) {
	tensor, err := ort.NewTensor(shape, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer tensor.Destroy()

	values := make([]ort.Value, outputs)

	mu.Lock()
	err = session.Run([]ort.Value{tensor}, values)
	mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := make([][]float32, outputs)
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("output %d is missing", i)
		}
		defer v.Destroy()

		t, ok := v.(*ort.Tensor[float32])
		if !ok {
			return nil, fmt.Errorf("output %d is not a float32 tensor", i)
		}
		out[i] = append([]float32(nil), t.GetData()...)
	}
	return out, nil
}

// ONNXDetector locates faces with an UltraFace style network.
type ONNXDetector struct {
	mu        sync.Mutex
	session   *ort.DynamicAdvancedSession
	artifact  Artifact
	threshold float32
}

func NewONNXDetector(path string, a Artifact, threshold float32) (*ONNXDetector, error) {
	session, err := newSession(path, a)
	if err != nil {
		return nil, err
	}
	return &ONNXDetector{session: session, artifact: a, threshold: threshold}, nil
}

func (d *ONNXDetector) DetectSingleFace(ctx context.Context, img image.Image) (Box, bool, error) {
	if err := ctx.Err(); err != nil {
		return Box{}, false, err
	}

	a := d.artifact
	input := PackCHW(img, a.Width, a.Height, a.Mean, a.Scale)
	out, err := run(&d.mu, d.session, ort.NewShape(1, 3, int64(a.Height), int64(a.Width)), input, 2)
	if err != nil {
		return Box{}, false, err
	}

	box, found := bestBox(out[0], out[1], d.threshold, img.Bounds())
	return box, found, nil
}

func (d *ONNXDetector) Close() error {
	return d.session.Destroy()
}

// ONNXClassifier scores expressions with a FER+ style network.
type ONNXClassifier struct {
	mu       sync.Mutex
	session  *ort.DynamicAdvancedSession
	artifact Artifact
	labels   []string
}

func NewONNXClassifier(path string, a Artifact, labels []string) (*ONNXClassifier, error) {
	session, err := newSession(path, a)
	if err != nil {
		return nil, err
	}
	return &ONNXClassifier{session: session, artifact: a, labels: labels}, nil
}

func (c *ONNXClassifier) Expressions(ctx context.Context, img image.Image, box Box) (models.ExpressionSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := c.artifact
	face := Crop(img, box.Rect)
	input := PackGray(face, a.Width, a.Height, a.Mean, a.Scale)
	out, err := run(&c.mu, c.session, ort.NewShape(1, 1, int64(a.Height), int64(a.Width)), input, 1)
	if err != nil {
		return nil, err
	}
	return toSample(out[0], c.labels)
}

func (c *ONNXClassifier) Close() error {
	return c.session.Destroy()
}

// ONNXBuilder creates ONNX Runtime backed networks. libraryPath locates the
// onnxruntime shared library; empty uses the platform default.
func ONNXBuilder(libraryPath string, threshold float32) Builder {
	return func(m *Manifest, paths Paths) (*Adapter, error) {
		if err := acquireEnvironment(libraryPath); err != nil {
			return nil, err
		}

		detector, err := NewONNXDetector(paths.Detector, m.Detector, threshold)
		if err != nil {
			releaseEnvironment()
			return nil, err
		}

		classifier, err := NewONNXClassifier(paths.Classifier, m.Classifier, m.Labels)
		if err != nil {
			detector.Close()
			releaseEnvironment()
			return nil, err
		}

		return NewAdapter(detector, &envClassifier{classifier}), nil
	}
}

// envClassifier releases the shared environment once the classifier, the
// last network an [Adapter] closes, is destroyed.
type envClassifier struct {
	*ONNXClassifier
}

func (c *envClassifier) Close() error {
	defer releaseEnvironment()
	return c.ONNXClassifier.Close()
}
