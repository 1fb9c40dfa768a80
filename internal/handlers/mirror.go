package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"geoguesser-backend/internal/mirror"
)

// MirrorHandler serves each user's local log mirror: listing, JSON export
// and clear-all. Clearing the mirror never touches the central store.
type MirrorHandler struct {
	store *mirror.Store
}

func NewMirrorHandler(store *mirror.Store) *MirrorHandler {
	return &MirrorHandler{store: store}
}

func (h *MirrorHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(chi.URLParam(r, "user"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read mirror", r))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Export downloads the mirror as a JSON file with a timestamped name.
func (h *MirrorHandler) Export(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.List(chi.URLParam(r, "user"))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to read mirror", r))
		return
	}

	filename := fmt.Sprintf("geoguesser_log_%s.json", time.Now().UTC().Format(time.RFC3339))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(entries)
}

func (h *MirrorHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Clear(chi.URLParam(r, "user")); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to clear mirror", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Mirror cleared"})
}
