package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/content-hub/internal/apperror"
	"github.com/sakif/content-hub/internal/inference"
)

// PredictHandler exposes the inference gateway.
type PredictHandler struct {
	predictor inference.Predictor
	logger    *slog.Logger
}

func NewPredictHandler(predictor inference.Predictor, logger *slog.Logger) *PredictHandler {
	return &PredictHandler{
		predictor: predictor,
		logger:    logger,
	}
}

type predictRequest struct {
	TextInput *string `json:"text_input"`
}

// HandlePredict runs one prediction.
//
// HTTP: POST /ml/predict
// REQUEST BODY: {"text_input": "some text"}
//
// The prediction object is returned as-is. Failures carry the pipeline
// stage that produced them.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if req.TextInput == nil {
		writeError(w, apperror.ValidationFailed("text_input", "request body must include a text_input field"))
		return
	}
	if strings.TrimSpace(*req.TextInput) == "" {
		writeError(w, apperror.ValidationFailed("text_input", "text_input cannot be empty"))
		return
	}

	h.logger.Debug("prediction requested", slog.Int("input_len", len(*req.TextInput)))

	prediction, err := h.predictor.Predict(r.Context(), *req.TextInput)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}
