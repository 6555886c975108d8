package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// KindLinearText is the only artifact kind this package can load.
const KindLinearText = "linear-text"

// ErrModelMissing is returned by loaders when the artifact file is absent.
var ErrModelMissing = errors.New("inference: model artifact not found")

// Model runs the forward pass on preprocessed input and returns the raw
// output vector.
type Model interface {
	Forward(ctx context.Context, input string) ([]float64, error)
	Info() ModelInfo
}

// Loader reads a model artifact from path.
type Loader func(path string) (Model, error)

// ModelInfo describes a loaded artifact.
type ModelInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
}

// LinearTextModel scores text as bias plus the summed weights of its
// lowercase whitespace-separated tokens. Unknown tokens weigh 0.
//
// Artifact format:
//
//	{"name": "sentiment", "version": "1", "kind": "linear-text",
//	 "bias": -0.1, "weights": {"good": 1.2, "bad": -1.4}}
type LinearTextModel struct {
	Name    string             `json:"name"`
	Version string             `json:"version"`
	Kind    string             `json:"kind"`
	Bias    float64            `json:"bias"`
	Weights map[string]float64 `json:"weights"`
}

var _ Model = (*LinearTextModel)(nil)

// LoadLinearText is the default Loader.
func LoadLinearText(path string) (Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelMissing, path)
		}
		return nil, fmt.Errorf("inference: reading model %s: %w", path, err)
	}

	var m LinearTextModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("inference: decoding model %s: %w", path, err)
	}
	if m.Kind != KindLinearText {
		return nil, fmt.Errorf("inference: model %s has kind %q, want %q", path, m.Kind, KindLinearText)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("inference: model %s has no name", path)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("inference: model %s has no weights", path)
	}
	return &m, nil
}

func (m *LinearTextModel) Forward(ctx context.Context, input string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	score := m.Bias
	for _, token := range strings.Fields(strings.ToLower(input)) {
		score += m.Weights[token]
	}
	return []float64{score}, nil
}

func (m *LinearTextModel) Info() ModelInfo {
	return ModelInfo{Name: m.Name, Version: m.Version, Kind: m.Kind}
}
