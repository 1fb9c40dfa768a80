package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"geoguesser-backend/internal/models"
	"geoguesser-backend/internal/services"
)

const (
	guessUpdatedText     = "Based on your new clues, I've updated my guess! Check it out above."
	correctionSentText   = "Thanks! I have submitted the correct location."
	correctionPromptTmpl = "My previous feedback was 'incorrect'. The actual location is Country: %s, State: %s, City: %s."
)

const (
	sessionIdleTTL     = 12 * time.Hour
	sessionSweepPeriod = time.Hour
)

// Manager holds every active session, one per user name. Persistence side
// effects are dispatched fire-and-forget: failures go to the logger and never
// roll back in-memory state.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	byUser   map[string]uuid.UUID

	ai     AIClient
	logs   LogStore
	mirror Mirror
	images ImageSaver
	logger *zap.Logger

	// idleTTL is how long an untouched session survives before the sweep
	// evicts it.
	idleTTL time.Duration

	// dispatch runs a persistence side effect. Tests replace it to run inline.
	dispatch func(func())
}

func NewManager(ai AIClient, logs LogStore, mirror Mirror, images ImageSaver, logger *zap.Logger) *Manager {
	m := &Manager{
		sessions: make(map[uuid.UUID]*Session),
		byUser:   make(map[string]uuid.UUID),
		ai:       ai,
		logs:     logs,
		mirror:   mirror,
		images:   images,
		logger:   logger,
		idleTTL:  sessionIdleTTL,
		dispatch: func(f func()) { go f() },
	}

	// Cleanup goroutine
	go func() {
		for {
			time.Sleep(sessionSweepPeriod)
			m.sweepIdle()
		}
	}()

	return m
}

// sweepIdle evicts sessions that have not been touched within idleTTL.
// Sessions with an in-flight model call are skipped.
func (m *Manager) sweepIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		s.mu.Lock()
		idle := time.Since(s.lastActive) > m.idleTTL && !s.guessInFlight && !s.chatInFlight
		userName := s.userName
		s.mu.Unlock()

		if idle {
			delete(m.sessions, id)
			delete(m.byUser, userName)
			m.logger.Info("evicted idle session", zap.String("user", userName))
		}
	}
}

// Create opens a session for the given display name, or returns the user's
// existing one.
func (m *Manager) Create(userName string) (*models.SessionSnapshot, error) {
	name := strings.TrimSpace(userName)
	if name == "" {
		return nil, &ValidationError{Message: "user name is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byUser[name]; ok {
		s := m.sessions[id]
		s.mu.Lock()
		defer s.mu.Unlock()
		s.lastActive = time.Now()
		return s.snapshot(), nil
	}

	s := &Session{
		id:         uuid.New(),
		userName:   name,
		feedback:   models.FeedbackNotProvided,
		lastActive: time.Now(),
	}
	m.sessions[s.id] = s
	m.byUser[name] = s.id
	return s.snapshot(), nil
}

func (m *Manager) get(id string) (*Session, error) {
	sid, err := uuid.Parse(id)
	if err != nil {
		return nil, &ValidationError{Message: "invalid session id"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sid]
	if !ok {
		return nil, &NotFoundError{Message: "session not found"}
	}

	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
	return s, nil
}

// Snapshot returns the current client-facing view of a session.
func (m *Manager) Snapshot(id string) (*models.SessionSnapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), nil
}

// SubmitImage stores a new image for the next guess, replacing any earlier
// one. Only allowed before a guess request is in flight and while no guess is
// shown; an active episode must be reset first.
func (m *Manager) SubmitImage(id, name, mimeType string, data []byte) (*models.SessionSnapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &ValidationError{Message: "image data is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.guessInFlight {
		return nil, &StateError{Message: "a guess request is in flight"}
	}
	if s.chatInFlight {
		return nil, &StateError{Message: "a chat message is in flight"}
	}
	if s.guess != nil {
		return nil, &StateError{Message: "a guess is already shown; reset the session first"}
	}

	s.image = &pendingImage{name: name, mimeType: mimeType, data: data}
	return s.snapshot(), nil
}

// RequestGuess starts the AI conversation for the submitted image. On success
// it stores the guess and session handle, then persists a new log entry and
// appends a local-mirror copy. A persistence failure never discards the
// on-screen guess; it is reported in LogError so the client can warn the user
// that this episode will not be tracked.
func (m *Manager) RequestGuess(ctx context.Context, id string) (*models.GuessResponse, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.guessInFlight {
		s.mu.Unlock()
		return nil, &StateError{Message: "a guess request is already in flight"}
	}
	if s.guess != nil {
		s.mu.Unlock()
		return nil, &StateError{Message: "a guess is already shown; reset the session first"}
	}
	if s.image == nil {
		s.mu.Unlock()
		return nil, &StateError{Message: "no image submitted"}
	}
	img := *s.image
	s.guessInFlight = true
	s.mu.Unlock()

	// The model call runs without the session lock; guessInFlight keeps the
	// episode single-tracked meanwhile.
	conv, guess, aiErr := m.ai.StartSession(ctx, img.data, img.mimeType)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.guessInFlight = false

	if aiErr != nil {
		// Retryable: the session stays in the awaiting-guess state.
		return nil, aiErr
	}

	s.conv = conv
	s.guess = guess
	s.transcript = nil
	s.feedback = models.FeedbackNotProvided
	s.correctionOpen = false
	s.correctionSubmitted = false

	logErr := m.createLogEntry(ctx, s, img)

	resp := &models.GuessResponse{Session: s.snapshot()}
	if logErr != nil {
		resp.LogError = "Could not save this guess to the server log."
	}
	return resp, nil
}

// createLogEntry stores the image and creates the remote log entry plus the
// mirror copy. Called with the session lock held. Without a server id no
// later updates are possible, so a failure here is reported to the caller,
// though it never rolls back the guess.
func (m *Manager) createLogEntry(ctx context.Context, s *Session, img pendingImage) error {
	stored, err := m.images.Save(img.name, img.data)
	if err != nil {
		m.logger.Error("failed to store guess image",
			zap.String("user", s.userName), zap.Error(err))
		return err
	}

	entry := &models.LogEntry{
		UserName:      s.userName,
		ImageName:     img.name,
		ImagePath:     stored.Path,
		ThumbnailPath: stored.ThumbnailPath,
		CapturedAt:    stored.CapturedAt,
		Guess:         *s.guess,
		Feedback:      models.FeedbackNotProvided,
	}
	if err := m.logs.Create(ctx, entry); err != nil {
		m.logger.Error("failed to create log entry",
			zap.String("user", s.userName), zap.Error(err))
		return err
	}

	s.logID = entry.ID.Hex()
	s.imageURL = m.images.URLPath(stored.Path)

	if err := m.mirror.Append(s.userName, *entry); err != nil {
		m.logger.Error("failed to append mirror entry",
			zap.String("user", s.userName), zap.String("log_id", s.logID), zap.Error(err))
	}
	return nil
}

// SendChatMessage delivers a follow-up turn. The user message is appended
// optimistically; an AI failure becomes an error-flavored model bubble rather
// than failing the transcript. A guess revision replaces the current guess,
// resets feedback, and is persisted fire-and-forget.
func (m *Manager) SendChatMessage(ctx context.Context, id, text string, imageData []byte, imageName, mimeType string) (*models.ChatResponse, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" && len(imageData) == 0 {
		return nil, &ValidationError{Message: "message text or an image is required"}
	}

	s.mu.Lock()
	if s.conv == nil {
		s.mu.Unlock()
		return nil, &StateError{Message: "no active guess to chat about"}
	}
	if s.chatInFlight {
		s.mu.Unlock()
		return nil, &StateError{Message: "a chat message is already in flight"}
	}
	s.chatInFlight = true
	conv := s.conv

	// Attached chat images are stored best effort for transcript display.
	imageURL := ""
	if len(imageData) > 0 {
		if stored, serr := m.images.Save(imageName, imageData); serr == nil {
			imageURL = m.images.URLPath(stored.Path)
		} else {
			m.logger.Warn("failed to store chat image", zap.Error(serr))
		}
	}

	userMsg := s.appendMessage(models.RoleUser, text, imageURL)
	s.mu.Unlock()

	reply, updated, aiErr := conv.Send(ctx, text, imageData, mimeType)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatInFlight = false

	msgs := []models.ChatMessage{userMsg}

	if aiErr != nil {
		bubble := s.appendMessage(models.RoleModel,
			fmt.Sprintf("Sorry, I encountered an error: %s", userFacingAIError(aiErr)), "")
		return &models.ChatResponse{Messages: append(msgs, bubble)}, nil
	}

	if updated != nil {
		s.guess = updated
		s.feedback = models.FeedbackNotProvided
		s.correctionOpen = false
		s.correctionSubmitted = false
		msgs = append(msgs, s.appendMessage(models.RoleModel, guessUpdatedText, ""))
		m.persistUpdate(s, models.LogUpdate{Guess: updated})
	}

	if reply != "" {
		msgs = append(msgs, s.appendMessage(models.RoleModel, reply, ""))
	}

	return &models.ChatResponse{Messages: msgs, UpdatedGuess: updated}, nil
}

// RecordFeedback marks the shown guess correct or incorrect. Feedback only
// moves forward; incorrect opens the correction form.
func (m *Manager) RecordFeedback(ctx context.Context, id, kind string) (*models.SessionSnapshot, error) {
	if kind != models.FeedbackCorrect && kind != models.FeedbackIncorrect {
		return nil, &ValidationError{Message: "feedback must be 'correct' or 'incorrect'"}
	}

	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.guess == nil {
		return nil, &StateError{Message: "no guess to give feedback on"}
	}
	if s.feedback != models.FeedbackNotProvided {
		return nil, &StateError{Message: "feedback has already been recorded"}
	}

	s.feedback = kind
	s.correctionOpen = kind == models.FeedbackIncorrect

	m.persistUpdate(s, models.LogUpdate{Feedback: &kind})
	return s.snapshot(), nil
}

// SubmitCorrection closes the correction form, persists the corrected fields,
// and tells the model the real location so later chat has the right context.
func (m *Manager) SubmitCorrection(ctx context.Context, id, country, state, city string) (*models.ChatResponse, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.feedback != models.FeedbackIncorrect || !s.correctionOpen {
		s.mu.Unlock()
		return nil, &StateError{Message: "no correction form is open"}
	}
	if s.chatInFlight {
		s.mu.Unlock()
		return nil, &StateError{Message: "a chat message is already in flight"}
	}

	s.correctionOpen = false
	s.correctionSubmitted = true
	s.chatInFlight = true
	conv := s.conv

	feedback := models.FeedbackIncorrect
	m.persistUpdate(s, models.LogUpdate{
		Feedback:         &feedback,
		CorrectedCountry: &country,
		CorrectedState:   &state,
		CorrectedCity:    &city,
	})

	userMsg := s.appendMessage(models.RoleUser, correctionSentText, "")
	s.mu.Unlock()

	prompt := fmt.Sprintf(correctionPromptTmpl, country, state, city)
	reply, _, aiErr := conv.Send(ctx, prompt, nil, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatInFlight = false

	msgs := []models.ChatMessage{userMsg}
	if aiErr != nil {
		bubble := s.appendMessage(models.RoleModel,
			fmt.Sprintf("Sorry, I encountered an error sending the correction: %s", userFacingAIError(aiErr)), "")
		return &models.ChatResponse{Messages: append(msgs, bubble)}, nil
	}
	if reply != "" {
		msgs = append(msgs, s.appendMessage(models.RoleModel, reply, ""))
	}
	return &models.ChatResponse{Messages: msgs}, nil
}

// ResetForNewGuess discards the episode and returns to awaiting an image.
// While a guess is shown it is only permitted once feedback has been recorded
// and no correction form is open.
func (m *Manager) ResetForNewGuess(id string) (*models.SessionSnapshot, error) {
	s, err := m.get(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.guessInFlight {
		return nil, &StateError{Message: "a guess request is in flight"}
	}
	if s.chatInFlight {
		// The pending model reply would otherwise land on the reset session.
		return nil, &StateError{Message: "a chat message is in flight"}
	}
	if s.guess != nil {
		if s.feedback == models.FeedbackNotProvided {
			return nil, &StateError{Message: "feedback is required before starting a new guess"}
		}
		if s.correctionOpen {
			return nil, &StateError{Message: "submit or close the correction form first"}
		}
	}

	s.reset()
	return s.snapshot(), nil
}

// persistUpdate patches the remote entry and opportunistically refreshes the
// mirror copy. Fire-and-forget: failures are logged, never surfaced. Called
// with the session lock held.
func (m *Manager) persistUpdate(s *Session, patch models.LogUpdate) {
	logID := s.logID
	userName := s.userName
	if logID == "" {
		m.logger.Warn("skipping log update: entry was never created",
			zap.String("user", userName))
		return
	}

	m.dispatch(func() {
		entry, err := m.logs.Update(context.Background(), logID, patch)
		if err != nil {
			m.logger.Error("failed to update log entry",
				zap.String("user", userName), zap.String("log_id", logID), zap.Error(err))
			return
		}
		if err := m.mirror.Patch(userName, logID, *entry); err != nil {
			m.logger.Error("failed to patch mirror entry",
				zap.String("user", userName), zap.String("log_id", logID), zap.Error(err))
		}
	})
}

// userFacingAIError maps AI client failures to the messages shown in the UI.
func userFacingAIError(err error) string {
	var unavailable *services.AIUnavailableError
	if errors.As(err, &unavailable) {
		return "Failed to get a response from the AI. The service might be busy."
	}
	return "The AI returned an invalid response. Please try again."
}
