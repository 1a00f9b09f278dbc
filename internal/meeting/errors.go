// internal/meeting/errors.go
package meeting

import "errors"

var (
	ErrNotAuthorized          = errors.New("actor is not authorized for this operation")
	ErrInvalidStateTransition = errors.New("target is not in a state that allows this transition")
	ErrAlreadyRequested       = errors.New("user is already a participant or has a request on file")
	ErrMeetingFull            = errors.New("meeting is at participant capacity")
	ErrSessionActive          = errors.New("an attendance session is already active")
	ErrSessionExpired         = errors.New("attendance session has expired")
	ErrNoActiveSession        = errors.New("no attendance session is active")
	ErrInvalidCode            = errors.New("attendance code does not match")
	ErrInvalidSlot            = errors.New("slot id is not part of the grid")
	ErrValidation             = errors.New("invalid input")
	ErrMeetingNotFound        = errors.New("meeting not found")
	ErrNotFound               = errors.New("entity not found")
)

// Storage-boundary errors, surfaced by Store implementations.
var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrAlreadyExists       = errors.New("meeting already exists")
)

// ErrRateLimited is returned when a caller exceeds the code-submission
// throttle.
var ErrRateLimited = errors.New("rate limit exceeded")
