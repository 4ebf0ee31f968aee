package domain

import "errors"

// Error taxonomy shared by every layer. Callers distinguish kinds with
// errors.Is; the HTTP delivery maps them to status codes.
var (
	// ErrNotFound means no queue item exists with the given id
	ErrNotFound = errors.New("queue item not found")

	// ErrValidation covers malformed input: missing email id, unknown
	// priority, past snooze timestamp, oversized page requests
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition means the lifecycle state machine forbids the
	// requested status change; the item is left untouched
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConflict means a concurrent mutation held the item; the caller
	// may retry at its discretion
	ErrConflict = errors.New("concurrent modification conflict")

	// ErrCollaborator means an external collaborator (mailbox, store)
	// failed; the sweep logs and skips, API callers see it verbatim
	ErrCollaborator = errors.New("collaborator unavailable")
)
