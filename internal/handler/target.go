package handler

import (
	"net/http"

	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/service"
	"github.com/sakif/content-hub/internal/validation"
)

// TargetHandler serves targets and their progress logs. Every route
// requires authentication; ownership is checked by the service (404 when
// the target does not exist, 403 when it belongs to someone else).
type TargetHandler struct {
	targets  *service.TargetService
	validate *validation.Validator
}

func NewTargetHandler(targets *service.TargetService, validate *validation.Validator) *TargetHandler {
	return &TargetHandler{targets: targets, validate: validate}
}

type createTargetRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description"`
}

type updateTargetRequest struct {
	Name        model.Optional[string] `json:"name"`
	Description model.Optional[string] `json:"description"`
}

type targetResponse struct {
	Msg    string        `json:"msg"`
	Target *model.Target `json:"target"`
}

type addProgressRequest struct {
	Status     string  `json:"status" validate:"required"`
	Notes      string  `json:"notes"`
	ContentID  *string `json:"content_id"`
	AchievedAt *string `json:"achieved_at"`
}

type updateProgressRequest struct {
	Status     model.Optional[string] `json:"status"`
	Notes      model.Optional[string] `json:"notes"`
	ContentID  model.Optional[string] `json:"content_id"`
	AchievedAt model.Optional[string] `json:"achieved_at"`
}

type progressResponse struct {
	Msg      string                `json:"msg"`
	Progress *model.TargetProgress `json:"progress"`
}

// HandleCreate creates a target for the caller.
//
// HTTP: POST /targets
// REQUEST BODY: {"name": "Learn Go", "description": "..."}
func (h *TargetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req createTargetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	target, err := h.targets.Create(r.Context(), uid, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, targetResponse{Msg: "target created", Target: target})
}

// HandleList returns the caller's targets.
//
// HTTP: GET /targets
func (h *TargetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	targets, err := h.targets.List(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

// HTTP: GET /targets/{id}
func (h *TargetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	target, err := h.targets.Get(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, target)
}

// HTTP: PUT /targets/{id}
func (h *TargetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req updateTargetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	target, changed, err := h.targets.Update(r.Context(), uid, r.PathValue("id"), service.TargetPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "target updated"
	if !changed {
		msg = "no changes"
	}
	writeJSON(w, http.StatusOK, targetResponse{Msg: msg, Target: target})
}

// HTTP: DELETE /targets/{id}
func (h *TargetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.targets.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "target deleted")
}

// HandleAddProgress appends an entry to a target's progress log.
//
// HTTP: POST /targets/{id}/progress
// REQUEST BODY: {"status": "done", "notes": "...", "achieved_at": "2024-01-02T03:04:05Z"}
func (h *TargetHandler) HandleAddProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req addProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	progress, err := h.targets.AddProgress(r.Context(), uid, r.PathValue("id"), service.ProgressInput{
		Status:     req.Status,
		Notes:      req.Notes,
		ContentID:  req.ContentID,
		AchievedAt: req.AchievedAt,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, progressResponse{Msg: "progress added", Progress: progress})
}

// HTTP: GET /targets/{id}/progress
func (h *TargetHandler) HandleListProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	entries, err := h.targets.ListProgress(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HTTP: GET /targets/{id}/progress/{progressID}
func (h *TargetHandler) HandleGetProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	progress, err := h.targets.GetProgress(r.Context(), uid, r.PathValue("id"), r.PathValue("progressID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// HTTP: PUT /targets/{id}/progress/{progressID}
func (h *TargetHandler) HandleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req updateProgressRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	progress, changed, err := h.targets.UpdateProgress(r.Context(), uid,
		r.PathValue("id"), r.PathValue("progressID"),
		service.ProgressPatch{
			Status:     req.Status,
			Notes:      req.Notes,
			ContentID:  req.ContentID,
			AchievedAt: req.AchievedAt,
		})
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "progress updated"
	if !changed {
		msg = "no changes"
	}
	writeJSON(w, http.StatusOK, progressResponse{Msg: msg, Progress: progress})
}

// HTTP: DELETE /targets/{id}/progress/{progressID}
func (h *TargetHandler) HandleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.targets.DeleteProgress(r.Context(), uid, r.PathValue("id"), r.PathValue("progressID")); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "progress deleted")
}
