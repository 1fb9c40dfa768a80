package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"geoguesser-backend/internal/middleware"
	"geoguesser-backend/internal/models"
	"geoguesser-backend/internal/repository"
	"geoguesser-backend/internal/services"
	"geoguesser-backend/internal/session"
	"geoguesser-backend/internal/storage"
)

// ─── Fakes for session dependencies ───

type fakeConv struct{}

func (c *fakeConv) Send(ctx context.Context, text string, imageData []byte, mimeType string) (string, *models.LocationGuess, error) {
	return "ok", nil, nil
}

type fakeAI struct{}

func (a *fakeAI) StartSession(ctx context.Context, imageData []byte, mimeType string) (session.Conversation, *models.LocationGuess, error) {
	return &fakeConv{}, &models.LocationGuess{
		Country: "France", CountryCode: "FR", State: "Île-de-France", City: "Paris",
		Direction: "North", NearestCity: "Paris", Reasoning: "Signage",
		Confidence: models.ConfidenceHigh, AccuracyRadiusKm: 5,
	}, nil
}

type fakeLogStore struct{}

func (l *fakeLogStore) Create(ctx context.Context, entry *models.LogEntry) error {
	entry.ID = primitive.NewObjectID()
	return nil
}

func (l *fakeLogStore) Update(ctx context.Context, id string, patch models.LogUpdate) (*models.LogEntry, error) {
	return &models.LogEntry{}, nil
}

type fakeMirror struct{}

func (m *fakeMirror) Append(userName string, entry models.LogEntry) error { return nil }
func (m *fakeMirror) Patch(userName, logID string, entry models.LogEntry) error { return nil }

type fakeImages struct{}

func (i *fakeImages) Save(originalName string, data []byte) (*storage.StoredImage, error) {
	return &storage.StoredImage{Name: "image-test.jpg", Path: "/uploads/image-test.jpg"}, nil
}
func (i *fakeImages) URLPath(path string) string { return "/uploads/image-test.jpg" }

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	manager := session.NewManager(&fakeAI{}, &fakeLogStore{}, &fakeMirror{}, &fakeImages{}, zap.NewNop())
	h := NewSessionHandler(manager)

	r := chi.NewRouter()
	r.Post("/sessions", h.Create)
	r.Get("/sessions/{id}", h.Get)
	r.Post("/sessions/{id}/image", h.SubmitImage)
	r.Post("/sessions/{id}/guess", h.RequestGuess)
	r.Post("/sessions/{id}/feedback", h.Feedback)
	return r
}

func imageForm(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	fw.Write(data)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

// ─── Session Handler Tests ───

func TestSessionFlow(t *testing.T) {
	router := testRouter(t)

	// Create
	body, _ := json.Marshal(models.StartSessionRequest{UserName: "alice"})
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Failed to decode snapshot: %v", err)
	}
	if snap.State != models.SessionAwaitingImage {
		t.Errorf("Expected awaiting_image, got %s", snap.State)
	}

	// Submit image
	form, contentType := imageForm(t, "image", "street.jpg", []byte("img"))
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+snap.SessionID+"/image", form)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on image submit, got %d: %s", rr.Code, rr.Body.String())
	}

	// Guess
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+snap.SessionID+"/guess", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on guess, got %d: %s", rr.Code, rr.Body.String())
	}
	var guessResp models.GuessResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &guessResp); err != nil {
		t.Fatalf("Failed to decode guess response: %v", err)
	}
	if guessResp.Session.Guess == nil || guessResp.Session.Guess.Country != "France" {
		t.Errorf("Expected a guess in the response, got %+v", guessResp.Session.Guess)
	}

	// Feedback
	body, _ = json.Marshal(models.FeedbackRequest{Feedback: models.FeedbackCorrect})
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+snap.SessionID+"/feedback", bytes.NewReader(body))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on feedback, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestSessionGet_Unknown(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+"00000000-0000-0000-0000-000000000000", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown session, got %d", rr.Code)
	}
}

func TestSubmitImage_MissingFile(t *testing.T) {
	router := testRouter(t)

	body, _ := json.Marshal(models.StartSessionRequest{UserName: "alice"})
	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	var snap models.SessionSnapshot
	json.Unmarshal(rr.Body.Bytes(), &snap)

	form, contentType := imageForm(t, "wrong_field", "street.jpg", []byte("img"))
	req = httptest.NewRequest(http.MethodPost, "/sessions/"+snap.SessionID+"/image", form)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without an image part, got %d", rr.Code)
	}
}

// ─── Error Mapping Tests ───

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		expectedKind string
	}{
		{"validation", &session.ValidationError{Message: "bad"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", &session.NotFoundError{Message: "nope"}, http.StatusNotFound, "NOT_FOUND"},
		{"state", &session.StateError{Message: "wrong state"}, http.StatusConflict, "INVALID_STATE"},
		{"empty turn", &services.EmptyTurnError{}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"ai unavailable", &services.AIUnavailableError{Err: errors.New("503")}, http.StatusBadGateway, "AI_UNAVAILABLE"},
		{"malformed guess", &services.MalformedGuessError{Raw: "{", Err: errors.New("eof")}, http.StatusBadGateway, "AI_INVALID_RESPONSE"},
		{"log not found", fmt.Errorf("wrapped: %w", repository.ErrLogNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			handleServiceError(rr, req, tc.err)

			if rr.Code != tc.expectedCode {
				t.Errorf("Expected status %d, got %d", tc.expectedCode, rr.Code)
			}
			var resp models.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to decode error response: %v", err)
			}
			if resp.Error.Code != tc.expectedKind {
				t.Errorf("Expected code %q, got %q", tc.expectedKind, resp.Error.Code)
			}
		})
	}
}

// ─── Admin Login Tests ───

func TestAdminLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	auth := middleware.NewAdminAuth("test-secret")
	h := NewAdminHandler(auth, string(hash))

	t.Run("correct password issues a valid token", func(t *testing.T) {
		body, _ := json.Marshal(models.AdminLoginRequest{Password: "open-sesame"})
		req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.Login(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if !auth.Verify(resp["token"]) {
			t.Error("Expected the issued token to verify")
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		body, _ := json.Marshal(models.AdminLoginRequest{Password: "guess"})
		req := httptest.NewRequest(http.MethodPost, "/admin/login", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.Login(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rr.Code)
		}
	})
}

// ─── MIME Fallback Tests ───

func TestImageMimeType(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		expected string
	}{
		{"declared wins", "photo.png", "image/webp", "image/webp"},
		{"png extension", "photo.png", "application/octet-stream", "image/png"},
		{"webp extension", "photo.WEBP", "", "image/webp"},
		{"gif extension", "anim.gif", "", "image/gif"},
		{"jpeg fallback", "photo", "", "image/jpeg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := imageMimeType(tc.filename, tc.declared); got != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, got)
			}
		})
	}
}
