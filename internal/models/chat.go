package models

// Roles for chat transcript messages.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is one turn in the follow-up conversation about a guess.
// The transcript is append-only and scoped to one guess episode.
type ChatMessage struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// ChatResponse is returned by the chat endpoint: the messages this turn
// appended to the transcript, and the revised guess when the model issued one.
type ChatResponse struct {
	Messages     []ChatMessage  `json:"messages"`
	UpdatedGuess *LocationGuess `json:"updated_guess,omitempty"`
}
