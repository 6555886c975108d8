package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/model"
	"github.com/sakif/content-hub/internal/service"
	"github.com/sakif/content-hub/internal/validation"
)

// ContentHandler manages content items and their category tags.
type ContentHandler struct {
	contents *service.ContentService
	validate *validation.Validator
	logger   *slog.Logger
}

func NewContentHandler(contents *service.ContentService, validate *validation.Validator, logger *slog.Logger) *ContentHandler {
	return &ContentHandler{contents: contents, validate: validate, logger: logger}
}

type createContentRequest struct {
	Title        string          `json:"title" validate:"required"`
	ContentType  string          `json:"content_type" validate:"required"`
	DataURL      *string         `json:"data_url"`
	MetadataTags json.RawMessage `json:"metadata_tags"`
	CategoryIDs  []string        `json:"category_ids"`
}

type updateContentRequest struct {
	Title        model.Optional[string]          `json:"title"`
	ContentType  model.Optional[string]          `json:"content_type"`
	DataURL      model.Optional[string]          `json:"data_url"`
	MetadataTags model.Optional[json.RawMessage] `json:"metadata_tags"`
	CategoryIDs  model.Optional[[]string]        `json:"category_ids"`
}

type contentResponse struct {
	Msg     string         `json:"msg"`
	Content *model.Content `json:"content"`
}

// HandleCreate stores a content item and its category links atomically.
//
// HTTP: POST /contents
// REQUEST BODY: {"title": "Post1", "content_type": "text", "category_ids": ["..."]}
func (h *ContentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req createContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	content, err := h.contents.Create(r.Context(), uid, service.ContentInput{
		Title:        req.Title,
		ContentType:  req.ContentType,
		DataURL:      req.DataURL,
		MetadataTags: req.MetadataTags,
		CategoryIDs:  req.CategoryIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contentResponse{Msg: "content created", Content: content})
}

// HandleList returns content newest first.
//
// HTTP: GET /contents?category_id=...&limit=20&offset=0
//
// Without limit every row is returned.
func (h *ContentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	contents, err := h.contents.List(r.Context(), q.Get("category_id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contents)
}

// HandleGet returns one content item.
//
// HTTP: GET /contents/{id}
func (h *ContentHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	content, err := h.contents.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, content)
}

// HandleUpdateMetadata applies a partial update. A present category_ids
// replaces the whole tag set.
//
// HTTP: PUT /contents/{id}/metadata
func (h *ContentHandler) HandleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req updateContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	content, changed, err := h.contents.UpdateMetadata(r.Context(), r.PathValue("id"), service.ContentPatch{
		Title:        req.Title,
		ContentType:  req.ContentType,
		DataURL:      req.DataURL,
		MetadataTags: req.MetadataTags,
		CategoryIDs:  req.CategoryIDs,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "content metadata updated"
	if !changed {
		msg = "no changes"
	}
	writeJSON(w, http.StatusOK, contentResponse{Msg: msg, Content: content})
}

// HandleDelete removes a content item. Linked files and progress entries
// keep their rows with the link cleared.
//
// HTTP: DELETE /contents/{id}
func (h *ContentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.contents.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.logger.Info("content deleted", slog.String("id", id))
	writeMessage(w, http.StatusOK, "content deleted")
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
