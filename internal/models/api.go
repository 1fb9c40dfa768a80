package models

// Session lifecycle states exposed to clients.
const (
	SessionAwaitingImage = "awaiting_image"
	SessionAwaitingGuess = "awaiting_guess"
	SessionGuessInFlight = "guess_in_flight"
	SessionGuessShown    = "guess_shown"
)

type StartSessionRequest struct {
	UserName string `json:"user_name"`
}

type FeedbackRequest struct {
	Feedback string `json:"feedback"` // "correct" | "incorrect"
}

type CorrectionRequest struct {
	Country string `json:"country"`
	State   string `json:"state"`
	City    string `json:"city"`
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

// SessionSnapshot is the client-facing view of one guess session.
type SessionSnapshot struct {
	SessionID           string         `json:"session_id"`
	UserName            string         `json:"user_name"`
	State               string         `json:"state"`
	ImageURL            string         `json:"image_url,omitempty"`
	Guess               *LocationGuess `json:"guess,omitempty"`
	Feedback            string         `json:"feedback"`
	CorrectionOpen      bool           `json:"correction_open"`
	CorrectionSubmitted bool           `json:"correction_submitted"`
	Transcript          []ChatMessage  `json:"transcript"`
	LogID               string         `json:"log_id,omitempty"`
}

// GuessResponse carries the initial guess plus the created log entry. LogError
// is set when the guess succeeded but the create against the store did not;
// the guess is still usable, further updates for this episode are not.
type GuessResponse struct {
	Session  *SessionSnapshot `json:"session"`
	LogError string           `json:"log_error,omitempty"`
}

// LogEvent is published on the log_events channel for the admin live feed.
type LogEvent struct {
	Type  string    `json:"type"` // "created" | "updated" | "cleared"
	Entry *LogEntry `json:"entry,omitempty"`
}

// API error envelope.
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
