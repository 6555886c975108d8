package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "not_found", "message": "target not found"}
//
// Optional members appear only when they apply: "field" for validation and
// conflicts, "stage" for inference failures, "details" for per-field
// validation messages or the storage cause, and "raw_prediction_detail"
// when postprocessing failed after the model produced output.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/auth"
	"github.com/sakif/content-hub/internal/inference"
)

// maxJSONBody caps every JSON request body. Uploads use their own limit.
const maxJSONBody = 1 << 20

// statusClientClosedRequest is the non-standard 499 used for requests the
// client abandoned. Nobody reads the body; it keeps these out of the 5xx
// logs and metrics.
const statusClientClosedRequest = 499

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error               string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message             string `json:"message"` // Human-readable description
	Field               string `json:"field,omitempty"`
	Stage               string `json:"stage,omitempty"`
	Details             any    `json:"details,omitempty"`
	RawPredictionDetail any    `json:"raw_prediction_detail,omitempty"`
}

// MessageResponse is the body of operations that only report success.
type MessageResponse struct {
	Msg string `json:"msg"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status go out before the body: once Encode writes, later
// header changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageResponse{Msg: msg})
}

// writeError maps a domain error to its HTTP status and sends it.
//
// This is the only place that knows about status codes. errors.Is walks the
// chain, so a service that wraps an AppError with fmt.Errorf("...: %w")
// still maps correctly.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Unknown error: never expose internals (SQL, paths) to the client.
		slog.Error("unhandled error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, errorType := classify(err, appErr)
	resp := ErrorResponse{
		Error:   errorType,
		Message: appErr.Message,
		Field:   appErr.Field,
		Stage:   appErr.Stage,
	}

	switch {
	case errors.Is(err, apperror.ErrPipeline):
		resp.RawPredictionDetail = appErr.Detail
	case appErr.Detail != nil:
		resp.Details = appErr.Detail
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="content-hub"`)
	}
	writeJSON(w, status, resp)
}

func classify(err error, appErr *apperror.AppError) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, apperror.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType, "unsupported_media_type"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "model_unavailable"
	case errors.Is(err, apperror.ErrStorage):
		return http.StatusInternalServerError, "storage_error"
	case errors.Is(err, apperror.ErrCanceled):
		return statusClientClosedRequest, "request_canceled"
	case errors.Is(err, apperror.ErrPipeline):
		// Bad input is the caller's fault; the model failing is ours.
		if appErr.Stage == inference.StagePreprocess {
			return http.StatusBadRequest, "pipeline_error"
		}
		return http.StatusInternalServerError, "pipeline_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeJSON reads a JSON request body into dst.
//
// A non-JSON Content-Type is 415; an empty, oversized or malformed body is
// a validation error. Unknown fields are ignored so older clients keep
// working when the API grows.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := requireJSON(r); err != nil {
		return err
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		var (
			syntaxErr *json.SyntaxError
			typeErr   *json.UnmarshalTypeError
			sizeErr   *http.MaxBytesError
		)
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body must not be empty (JSON required)")
		case errors.As(err, &sizeErr):
			return apperror.TooLarge(fmt.Sprintf("request body must not exceed %d bytes", sizeErr.Limit))
		case errors.As(err, &typeErr) && typeErr.Field == "":
			// Errors from nested UnmarshalJSON methods lose their field path.
			return apperror.ValidationFailed("body", "request body has a value of the wrong type: "+typeErr.Value)
		case errors.As(err, &typeErr):
			return apperror.ValidationFailed(typeErr.Field,
				fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type))
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return apperror.ValidationFailed("body", "request body is not valid JSON")
		default:
			return apperror.ValidationFailed("body", "invalid request body: "+err.Error())
		}
	}
	return nil
}

func requireJSON(r *http.Request) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return apperror.UnsupportedMediaType("request body must be JSON (Content-Type: application/json)")
	}
	return nil
}

// userID returns the authenticated user set by auth.RequireAuth. It only
// fails when a protected handler is mounted without the middleware.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return "", false
	}
	return id, true
}
