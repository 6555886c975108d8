// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services and repositories return *AppError values wrapping one of the
// sentinels below. The HTTP layer (handler.writeError) is the only place that
// turns them into status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("Validation Error")
	ErrConflict         = errors.New("conflict")
	ErrForbidden        = errors.New("forbidden")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTooLarge         = errors.New("payload too large")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrStorage          = errors.New("storage failure")
	ErrUnavailable      = errors.New("service unavailable")
	ErrPipeline         = errors.New("model pipeline failure")
	ErrCanceled         = errors.New("request canceled")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Stage   string // Optional: inference stage that failed
	Detail  any    // Optional: extra data echoed to the client (raw model output, storage detail)
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a caller-chosen message, for lookups that
// are not keyed by a single id.
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness violation on the given field value,
// e.g. Conflict("category", "name", "Tech").
func Conflict(resource, field, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Field:   field,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned for bad credentials. Handlers map it to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func TooLarge(message string) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: message,
	}
}

func UnsupportedMediaType(message string) *AppError {
	return &AppError{
		Err:     ErrUnsupportedMedia,
		Message: message,
	}
}

// Storage wraps a failed write. The cause is kept in the chain and its text
// is echoed to the client as Detail.
func Storage(op string, err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStorage, err),
		Message: fmt.Sprintf("storage error while %s", op),
		Detail:  err.Error(),
	}
}

// Unavailable marks a dependency that is not ready, such as an unloaded model.
func Unavailable(message string) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Message: message,
	}
}

// Pipeline reports a failure inside one stage of the inference pipeline.
// raw is the model output when the failure happened after the forward pass.
func Pipeline(stage string, err error, raw any) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrPipeline, err),
		Message: fmt.Sprintf("%s failed: %v", stage, err),
		Stage:   stage,
		Detail:  raw,
	}
}

// Canceled reports work abandoned because the caller went away. It is not a
// failure of the server or of the model.
func Canceled(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrCanceled, err),
		Message: "request canceled before it completed",
	}
}
