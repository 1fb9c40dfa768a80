package handlers

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"geoguesser-backend/internal/middleware"
	"geoguesser-backend/internal/models"
)

// AdminHandler issues admin tokens. The password gate is a convenience for
// the log screen, not an access-control boundary.
type AdminHandler struct {
	auth         *middleware.AdminAuth
	passwordHash string
}

func NewAdminHandler(auth *middleware.AdminAuth, passwordHash string) *AdminHandler {
	return &AdminHandler{auth: auth, passwordHash: passwordHash}
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.AdminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)) != nil {
		writeJSON(w, http.StatusUnauthorized, errorResp("UNAUTHORIZED", "Invalid password", r))
		return
	}

	token, err := h.auth.GenerateToken()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to generate token", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
