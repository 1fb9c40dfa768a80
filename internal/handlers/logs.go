package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"geoguesser-backend/internal/models"
	"geoguesser-backend/internal/repository"
	"geoguesser-backend/internal/storage"
)

// LogHandler exposes the guess log store contract: multipart create,
// merge-patch update, full listing (newest first) and bulk delete.
type LogHandler struct {
	repo   *repository.LogRepo
	images *storage.ImageStore
}

func NewLogHandler(repo *repository.LogRepo, images *storage.ImageStore) *LogHandler {
	return &LogHandler{repo: repo, images: images}
}

type logDataPayload struct {
	UserName string               `json:"userName"`
	Guess    models.LocationGuess `json:"guess"`
}

// Create expects multipart/form-data with an "image" file and a "logData"
// JSON field carrying {userName, guess}.
func (h *LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, _, data, ok := readImagePart(w, r, "image", true)
	if !ok {
		return
	}

	raw := r.FormValue("logData")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Log data is required", r))
		return
	}

	var payload logDataPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid log data", r))
		return
	}
	if strings.TrimSpace(payload.UserName) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "User name is required", r))
		return
	}

	stored, err := h.images.Save(name, data)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to store image", r))
		return
	}

	entry := &models.LogEntry{
		UserName:      strings.TrimSpace(payload.UserName),
		ImageName:     name,
		ImagePath:     stored.Path,
		ThumbnailPath: stored.ThumbnailPath,
		CapturedAt:    stored.CapturedAt,
		Guess:         payload.Guess,
		Feedback:      models.FeedbackNotProvided,
	}
	if err := h.repo.Create(r.Context(), entry); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create log entry", r))
		return
	}

	writeJSON(w, http.StatusCreated, entry)
}

// Update applies a merge-patch: only the provided fields change.
func (h *LogHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch models.LogUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if patch.IsEmpty() {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "No fields to update", r))
		return
	}

	if patch.Feedback != nil {
		switch *patch.Feedback {
		case models.FeedbackCorrect, models.FeedbackIncorrect:
		default:
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Feedback must be 'correct' or 'incorrect'", r))
			return
		}
	}

	entry, err := h.repo.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.repo.ListAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch log entries", r))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *LogHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeleteAll(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete log entries", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "All logs deleted successfully."})
}
