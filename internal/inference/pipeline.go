package inference

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Pipeline stage names, reported in error responses.
const (
	StagePreprocess  = "preprocess"
	StageInference   = "inference"
	StagePostprocess = "postprocess"
)

// Prediction is the JSON object returned to the client.
type Prediction map[string]any

// Preprocessor turns the raw request text into model input.
type Preprocessor interface {
	Preprocess(input string) (string, error)
}

// Postprocessor turns the raw model output into a Prediction.
type Postprocessor interface {
	Postprocess(raw []float64) (Prediction, error)
}

var errEmptyInput = errors.New("text_input must be a non-empty string")

// PassThroughPreprocessor only rejects blank input. Models that need
// feature extraction supply their own Preprocessor.
type PassThroughPreprocessor struct{}

func (PassThroughPreprocessor) Preprocess(input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", errEmptyInput
	}
	return input, nil
}

// PassThroughPostprocessor returns the raw output as
// {"raw_prediction": [...]} without any label mapping.
type PassThroughPostprocessor struct{}

func (PassThroughPostprocessor) Postprocess(raw []float64) (Prediction, error) {
	if len(raw) == 0 {
		return nil, errors.New("model returned no output")
	}
	for i, v := range raw {
		// NaN and ±Inf have no JSON encoding.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("output %d is not a finite number", i)
		}
	}
	return Prediction{"raw_prediction": raw}, nil
}
