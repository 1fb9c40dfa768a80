package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"geoguesser-backend/internal/models"
	"geoguesser-backend/internal/repository"
	"geoguesser-backend/internal/services"
	"geoguesser-backend/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// handleServiceError maps the error taxonomy onto HTTP responses. AI
// failures are never fatal to anything but the single user action that
// triggered them.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *session.ValidationError
		stateErr      *session.StateError
		notFoundErr   *session.NotFoundError

		unavailableErr *services.AIUnavailableError
		invalidErr     *services.InvalidResponseError
		malformedErr   *services.MalformedGuessError
		emptyTurnErr   *services.EmptyTurnError
	)

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", validationErr.Message, r))
	case errors.As(err, &notFoundErr):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundErr.Message, r))
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusConflict, errorResp("INVALID_STATE", stateErr.Message, r))
	case errors.As(err, &emptyTurnErr):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", emptyTurnErr.Error(), r))
	case errors.As(err, &unavailableErr):
		writeJSON(w, http.StatusBadGateway, errorResp("AI_UNAVAILABLE",
			"Failed to get a response from the AI. The service might be busy.", r))
	case errors.As(err, &invalidErr), errors.As(err, &malformedErr):
		writeJSON(w, http.StatusBadGateway, errorResp("AI_INVALID_RESPONSE",
			"The AI returned an invalid response. Please try again.", r))
	case errors.Is(err, repository.ErrLogNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Log entry not found", r))
	default:
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
	}
}
