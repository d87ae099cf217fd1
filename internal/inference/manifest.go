// package inference turns camera frames into expression samples with a face
// locator and an expression classifier run locally through ONNX Runtime.
package inference

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/moodbeats/internal/shared"
	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var defaultManifest []byte

// Artifact describes one network file and how to feed it.
type Artifact struct {
	Name    string   `yaml:"name"`
	File    string   `yaml:"file"`
	Path    string   `yaml:"path"`
	Inputs  []string `yaml:"inputs"`
	Outputs []string `yaml:"outputs"`
	Width   int      `yaml:"width"`
	Height  int      `yaml:"height"`
	// Pixel values are fed as (v - Mean) * Scale.
	Mean  float32 `yaml:"mean"`
	Scale float32 `yaml:"scale"`
}

func (a Artifact) Validate() error {
	switch {
	case a.File == "" || a.Path == "":
		return errors.New("file and path are required")
	case len(a.Inputs) == 0 || len(a.Outputs) == 0:
		return fmt.Errorf("%s: inputs and outputs are required", a.File)
	case a.Width <= 0 || a.Height <= 0:
		return fmt.Errorf("%s: input size %dx%d is invalid", a.File, a.Width, a.Height)
	case a.Scale == 0:
		return fmt.Errorf("%s: scale must be non-zero", a.File)
	}
	return nil
}

// Manifest lists the artifacts the adapter needs and the classifier label order.
type Manifest struct {
	Detector   Artifact `yaml:"detector"`
	Classifier Artifact `yaml:"classifier"`
	Labels     []string `yaml:"labels"`
}

func (m *Manifest) Validate() error {
	if err := m.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if len(m.Detector.Outputs) != 2 {
		return fmt.Errorf("detector: expected scores and boxes outputs, got %v", m.Detector.Outputs)
	}
	if err := m.Classifier.Validate(); err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	if len(m.Labels) == 0 {
		return errors.New("labels are required")
	}
	return nil
}

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", shared.ErrInvalidConfig, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", shared.ErrInvalidConfig, err)
	}
	return &m, nil
}

// DefaultManifest returns the embedded manifest.
func DefaultManifest() *Manifest {
	m, err := ParseManifest(defaultManifest)
	if err != nil {
		panic(err)
	}
	return m
}

// LoadManifest reads the manifest at path, or the embedded one when path is empty.
func LoadManifest(path string) (*Manifest, error) {
	if path == "" {
		return DefaultManifest(), nil
	}

	data, err := os.ReadFile(shared.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}
