package services

import "fmt"

// AIUnavailableError covers any transport or model-service failure. No retry
// is attempted here; retry policy belongs to the caller.
type AIUnavailableError struct{ Err error }

func (e *AIUnavailableError) Error() string {
	return fmt.Sprintf("AI service unavailable: %v", e.Err)
}

func (e *AIUnavailableError) Unwrap() error { return e.Err }

// InvalidResponseError means the model returned no usable text at all.
type InvalidResponseError struct{ Message string }

func (e *InvalidResponseError) Error() string { return e.Message }

// MalformedGuessError means the reply text did not parse into a structurally
// valid LocationGuess. Hard failure for the initial guess, fallback-to-text
// for follow-up turns.
type MalformedGuessError struct {
	Raw string
	Err error
}

func (e *MalformedGuessError) Error() string {
	return fmt.Sprintf("malformed location guess: %v", e.Err)
}

func (e *MalformedGuessError) Unwrap() error { return e.Err }

// EmptyTurnError means a follow-up turn carried neither text nor an image.
type EmptyTurnError struct{}

func (e *EmptyTurnError) Error() string { return "chat turn has no text and no image" }
