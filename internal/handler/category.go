package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/service"
	"github.com/sakif/content-hub/internal/validation"
)

// CategoryHandler manages the category tree.
//
// Reads are public; writes require authentication (enforced by the router).
type CategoryHandler struct {
	categories *service.CategoryService
	validate   *validation.Validator
	logger     *slog.Logger
}

func NewCategoryHandler(categories *service.CategoryService, validate *validation.Validator, logger *slog.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, validate: validate, logger: logger}
}

type createCategoryRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id"`
}

type updateCategoryRequest struct {
	Name        model.Optional[string] `json:"name"`
	Description model.Optional[string] `json:"description"`
	ParentID    model.Optional[string] `json:"parent_id"`
}

type categoryResponse struct {
	Msg      string          `json:"msg"`
	Category *model.Category `json:"category"`
}

// HandleCreate adds a category.
//
// HTTP: POST /categories
// REQUEST BODY: {"name": "Tech", "description": "...", "parent_id": null}
func (h *CategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	category, err := h.categories.Create(r.Context(), service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryResponse{Msg: "category created", Category: category})
}

// HandleList returns every category ordered by name.
//
// HTTP: GET /categories
func (h *CategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// HandleGet returns one category with its direct children.
//
// HTTP: GET /categories/{id}
func (h *CategoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	category, err := h.categories.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /categories/{id}
// REQUEST BODY: any of {"name", "description", "parent_id"}; "parent_id": null
// moves the category to the top level.
func (h *CategoryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	category, err := h.categories.Update(r.Context(), r.PathValue("id"), service.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryResponse{Msg: "category updated", Category: category})
}

// HandleDelete removes a category. Children become top-level.
//
// HTTP: DELETE /categories/{id}
func (h *CategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.categories.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("category deleted", slog.String("id", id))
	writeMessage(w, http.StatusOK, "category deleted")
}
