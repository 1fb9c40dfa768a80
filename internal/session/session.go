// Package session owns the guess-episode state machine: the current guess,
// chat transcript, feedback status and correction flow for every active user,
// mediating between the HTTP layer, the AI conversation client and the log
// store.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"geoguesser-backend/internal/models"
	"geoguesser-backend/internal/storage"
)

// AIClient starts a stateful model conversation from an image.
type AIClient interface {
	StartSession(ctx context.Context, imageData []byte, mimeType string) (Conversation, *models.LocationGuess, error)
}

// Conversation is the opaque handle for an ongoing model chat.
type Conversation interface {
	Send(ctx context.Context, text string, imageData []byte, mimeType string) (string, *models.LocationGuess, error)
}

// LogStore is the slice of the remote store the controller needs.
type LogStore interface {
	Create(ctx context.Context, entry *models.LogEntry) error
	Update(ctx context.Context, id string, patch models.LogUpdate) (*models.LogEntry, error)
}

// Mirror is the user-local convenience copy of log entries.
type Mirror interface {
	Append(userName string, entry models.LogEntry) error
	Patch(userName, logID string, entry models.LogEntry) error
}

// ImageSaver persists uploaded images for later retrieval.
type ImageSaver interface {
	Save(originalName string, data []byte) (*storage.StoredImage, error)
	URLPath(path string) string
}

// pendingImage is the uploaded image held in memory until a guess is
// requested. Replaced wholesale by a new upload, dropped on reset.
type pendingImage struct {
	name     string
	mimeType string
	data     []byte
}

// Session is one user's guess session. At most one guess episode is live at
// a time; all fields are guarded by mu.
type Session struct {
	mu sync.Mutex

	id       uuid.UUID
	userName string

	image *pendingImage
	conv  Conversation
	guess *models.LocationGuess

	transcript []models.ChatMessage

	feedback            string
	correctionOpen      bool
	correctionSubmitted bool

	logID    string
	imageURL string

	guessInFlight bool
	chatInFlight  bool

	lastActive time.Time
}

// state derives the lifecycle state. Callers hold mu.
func (s *Session) state() string {
	switch {
	case s.guessInFlight:
		return models.SessionGuessInFlight
	case s.guess != nil:
		return models.SessionGuessShown
	case s.image != nil:
		return models.SessionAwaitingGuess
	default:
		return models.SessionAwaitingImage
	}
}

// appendMessage adds a transcript message and returns it. Callers hold mu.
func (s *Session) appendMessage(role, text, imageURL string) models.ChatMessage {
	msg := models.ChatMessage{
		ID:       uuid.New().String(),
		Role:     role,
		Text:     text,
		ImageURL: imageURL,
	}
	s.transcript = append(s.transcript, msg)
	return msg
}

// snapshot builds the client-facing view. Callers hold mu.
func (s *Session) snapshot() *models.SessionSnapshot {
	transcript := make([]models.ChatMessage, len(s.transcript))
	copy(transcript, s.transcript)

	return &models.SessionSnapshot{
		SessionID:           s.id.String(),
		UserName:            s.userName,
		State:               s.state(),
		ImageURL:            s.imageURL,
		Guess:               s.guess,
		Feedback:            s.feedback,
		CorrectionOpen:      s.correctionOpen,
		CorrectionSubmitted: s.correctionSubmitted,
		Transcript:          transcript,
		LogID:               s.logID,
	}
}

// reset discards all episode state. Callers hold mu.
func (s *Session) reset() {
	s.image = nil
	s.conv = nil
	s.guess = nil
	s.transcript = nil
	s.feedback = models.FeedbackNotProvided
	s.correctionOpen = false
	s.correctionSubmitted = false
	s.logID = ""
	s.imageURL = ""
}
