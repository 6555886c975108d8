// Package handler contains the HTTP handlers of the content API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path values, query, body)
//  2. Call the service layer
//  3. Write the JSON response, mapping errors through writeError
//
// Handlers hold no business rules. Ownership checks, uniqueness and
// transactions live in internal/service; status codes live in response.go.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/content-hub/internal/inference"
)

// Pinger is satisfied by the database handle.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ModelStatus is the read-only view of the inference gateway.
type ModelStatus interface {
	Loaded() bool
	Info() (inference.ModelInfo, bool)
}

// HealthHandler reports liveness of the database and the model.
type HealthHandler struct {
	db     Pinger
	model  ModelStatus
	logger *slog.Logger
}

func NewHealthHandler(db Pinger, model ModelStatus, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, model: model, logger: logger}
}

type healthResponse struct {
	Status   string               `json:"status"`
	Database string               `json:"database"`
	Model    string               `json:"model"`
	Info     *inference.ModelInfo `json:"model_info,omitempty"`
}

// HandleHealth answers GET /healthz.
//
// The database is required: if it does not answer the response is 503. An
// unloaded model only degrades the status, because the gateway retries the
// load on the next prediction.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Model: "unloaded"}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("health check: database ping failed", slog.String("error", err.Error()))
		resp.Status = "unavailable"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	if info, ok := h.model.Info(); ok {
		resp.Model = "loaded"
		resp.Info = &info
	} else if status == http.StatusOK {
		resp.Status = "degraded"
	}

	writeJSON(w, status, resp)
}
