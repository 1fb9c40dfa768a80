package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"geoguesser-backend/internal/models"
	"geoguesser-backend/internal/session"
)

// maxImageBytes caps uploads; the model API rejects oversized inline images
// anyway.
const maxImageBytes = 25 << 20

type SessionHandler struct {
	manager *session.Manager
}

func NewSessionHandler(manager *session.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	snap, err := h.manager.Create(req.UserName)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) SubmitImage(w http.ResponseWriter, r *http.Request) {
	name, mimeType, data, ok := readImagePart(w, r, "image", true)
	if !ok {
		return
	}

	snap, err := h.manager.SubmitImage(chi.URLParam(r, "id"), name, mimeType, data)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) RequestGuess(w http.ResponseWriter, r *http.Request) {
	resp, err := h.manager.RequestGuess(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid multipart form", r))
		return
	}

	text := r.FormValue("message")

	var (
		imageName, mimeType string
		imageData           []byte
	)
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, rerr := io.ReadAll(file)
		if rerr != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Could not read image", r))
			return
		}
		imageData = data
		imageName = header.Filename
		mimeType = imageMimeType(header.Filename, header.Header.Get("Content-Type"))
	}

	if strings.TrimSpace(text) == "" && len(imageData) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message text or an image is required", r))
		return
	}

	resp, err := h.manager.SendChatMessage(r.Context(), chi.URLParam(r, "id"), text, imageData, imageName, mimeType)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	snap, err := h.manager.RecordFeedback(r.Context(), chi.URLParam(r, "id"), req.Feedback)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *SessionHandler) Correction(w http.ResponseWriter, r *http.Request) {
	var req models.CorrectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	resp, err := h.manager.SubmitCorrection(r.Context(), chi.URLParam(r, "id"), req.Country, req.State, req.City)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.ResetForNewGuess(chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// readImagePart extracts one uploaded image from a multipart request.
func readImagePart(w http.ResponseWriter, r *http.Request, field string, required bool) (name, mimeType string, data []byte, ok bool) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid multipart form", r))
		return "", "", nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		if required {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Image file is required", r))
			return "", "", nil, false
		}
		return "", "", nil, true
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Could not read image", r))
		return "", "", nil, false
	}

	return header.Filename, imageMimeType(header.Filename, header.Header.Get("Content-Type")), data, true
}

// imageMimeType prefers the declared content type, falling back to extension
// sniffing; the model API needs a concrete image MIME type.
func imageMimeType(filename, declared string) string {
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".webp"):
		return "image/webp"
	case strings.HasSuffix(lower, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
