package session

// ValidationError reports bad input from the client.
type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// StateError reports an operation that violates the guess-episode ordering
// rules (e.g. a new guess before feedback was given).
type StateError struct{ Message string }

func (e *StateError) Error() string { return e.Message }

// NotFoundError reports an unknown session id.
type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }
