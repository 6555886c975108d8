package inference

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testArtifact = `{
  "name": "test-sentiment",
  "version": "2",
  "kind": "linear-text",
  "bias": 0.5,
  "weights": {"good": 1.0, "bad": -2.0}
}`

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadLinearText(t *testing.T) {
	m, err := LoadLinearText(writeArtifact(t, testArtifact))
	require.NoError(t, err)

	assert.Equal(t, ModelInfo{Name: "test-sentiment", Version: "2", Kind: KindLinearText}, m.Info())
}

func TestLoadLinearText_Errors(t *testing.T) {
	_, err := LoadLinearText(filepath.Join(t.TempDir(), "absent.json"))
	assert.True(t, errors.Is(err, ErrModelMissing), "missing file: %v", err)

	cases := map[string]string{
		"malformed":    `{`,
		"wrong kind":   `{"name":"x","kind":"onnx","weights":{"a":1}}`,
		"no name":      `{"kind":"linear-text","weights":{"a":1}}`,
		"no weights":   `{"name":"x","kind":"linear-text"}`,
		"weights type": `{"name":"x","kind":"linear-text","weights":[1,2]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadLinearText(writeArtifact(t, body))
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrModelMissing))
		})
	}
}

func TestLinearTextModel_Forward(t *testing.T) {
	m, err := LoadLinearText(writeArtifact(t, testArtifact))
	require.NoError(t, err)

	cases := []struct {
		input string
		want  float64
	}{
		{"good", 1.5},
		{"GOOD good", 2.5},
		{"bad but good", -0.5},
		{"nothing known here", 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := m.Forward(context.Background(), tc.input)
			require.NoError(t, err)
			assert.Equal(t, []float64{tc.want}, got)
		})
	}
}

func TestLinearTextModel_ForwardCancelled(t *testing.T) {
	m := &LinearTextModel{Name: "x", Kind: KindLinearText, Weights: map[string]float64{"a": 1}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Forward(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShippedArtifactLoads(t *testing.T) {
	m, err := LoadLinearText(filepath.Join("..", "..", "ml_models", "model.json"))
	require.NoError(t, err)
	assert.Equal(t, KindLinearText, m.Info().Kind)
}
