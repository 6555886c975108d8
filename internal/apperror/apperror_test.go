package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("content", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("title", "title is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("category", "name", "Tech"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "Forbidden wraps ErrForbidden",
			err:       Forbidden("not your target"),
			target:    ErrForbidden,
			wantMatch: true,
		},
		{
			name:      "Unauthorized wraps ErrUnauthorized",
			err:       Unauthorized("invalid credentials"),
			target:    ErrUnauthorized,
			wantMatch: true,
		},
		{
			name:      "Storage wraps ErrStorage",
			err:       Storage("creating content", errors.New("disk full")),
			target:    ErrStorage,
			wantMatch: true,
		},
		{
			name:      "Pipeline wraps ErrPipeline",
			err:       Pipeline("inference", errors.New("boom"), nil),
			target:    ErrPipeline,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("creating target: %w", Conflict("target", "name", "Learn Go")),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrForbidden",
			err:       NotFound("target", "abc123"),
			target:    ErrForbidden,
			wantMatch: false,
		},
		{
			name:      "Forbidden does NOT match ErrNotFound",
			err:       Forbidden("not your target"),
			target:    ErrNotFound,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("category", "abc123"),
			wantMessage: "category not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("name", "name is required"),
			wantMessage: "name is required",
		},
		{
			name:        "Conflict message quotes the value",
			err:         Conflict("target", "name", "Learn Go"),
			wantMessage: `target with name "Learn Go" already exists`,
		},
		{
			name:        "Pipeline message names the stage",
			err:         Pipeline("postprocess", errors.New("bad shape"), []float64{1}),
			wantMessage: "postprocess failed: bad shape",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("file", "abc123")
	if unwrapped := err.Unwrap(); unwrapped != ErrNotFound {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, ErrNotFound)
	}
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := Storage("creating target", cause)

	if !errors.Is(err, cause) {
		t.Error("Storage() should keep the original cause in the chain")
	}
	if err.Detail != "database is locked" {
		t.Errorf("Detail = %v, want %q", err.Detail, "database is locked")
	}
}

func TestPipelineCarriesStageAndRawOutput(t *testing.T) {
	raw := []float64{0.25}
	err := Pipeline("postprocess", errors.New("bad shape"), raw)

	if err.Stage != "postprocess" {
		t.Errorf("Stage = %q, want %q", err.Stage, "postprocess")
	}
	got, ok := err.Detail.([]float64)
	if !ok || len(got) != 1 || got[0] != 0.25 {
		t.Errorf("Detail = %v, want %v", err.Detail, raw)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("achieved_at", "invalid timestamp")
	if err.Field != "achieved_at" {
		t.Errorf("Field = %q, want %q", err.Field, "achieved_at")
	}
}
