// internal/meeting/service.go
package meeting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"campusmeet/internal/schedule"
)

// Store is the document-store boundary for meeting aggregates. One
// document per meeting. Implementations must offer a versioned
// compare-and-swap for operations whose preconditions read shared state
// (membership decisions, session start), and a field-scoped write for
// availability so concurrent users can never clobber each other's
// entries.
type Store interface {
	// Create persists a new meeting at version 1. A duplicate id
	// returns ErrAlreadyExists.
	Create(ctx context.Context, m *Meeting) (*Meeting, error)

	// Get returns the latest committed snapshot, or ErrMeetingNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Meeting, error)

	// UpdateIf commits m only if the stored version still equals
	// expectedVersion, bumping the version by one. A stale expectation
	// returns ErrConcurrencyConflict and commits nothing.
	UpdateIf(ctx context.Context, id uuid.UUID, expectedVersion int, m *Meeting) (*Meeting, error)

	// SetAvailability overwrites only userID's own availability entry,
	// leaving the rest of the document untouched. It never conflicts:
	// last write per key wins, which is safe because each user submits
	// their complete selection.
	SetAvailability(ctx context.Context, id uuid.UUID, userID string, slots []schedule.SlotID) (*Meeting, error)
}

// Publisher receives every committed snapshot for fan-out to
// subscribers.
type Publisher interface {
	Publish(m *Meeting)
}

// Clock supplies the current time; injected so tests drive expiry
// deterministically.
type Clock func() time.Time

// CodeFunc generates a fresh attendance code.
type CodeFunc func() string

// CreateMeetingInput is the caller-supplied portion of a new meeting.
type CreateMeetingInput struct {
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	MaxParticipants int    `json:"max_participants,omitempty"`
	Location        string `json:"location,omitempty"`
}

// SlotProjection is the aggregated view of one grid slot.
type SlotProjection struct {
	Slot    schedule.SlotID `json:"slot"`
	Count   int             `json:"count"`
	Density DensityClass    `json:"density"`
}

// Service defines the coordination operations exposed to the transport
// layer. Every mutation commits durably and publishes the new snapshot
// before returning it.
type Service interface {
	CreateMeeting(ctx context.Context, ownerID string, input CreateMeetingInput) (*Meeting, error)
	GetMeeting(ctx context.Context, id uuid.UUID) (*Meeting, error)

	RequestJoin(ctx context.Context, id uuid.UUID, userID string, info JoinInfo) (*Meeting, error)
	CancelJoin(ctx context.Context, id uuid.UUID, actorID string) (*Meeting, error)
	DecideJoinRequest(ctx context.Context, id uuid.UUID, actorID, userID string, decision Decision) (*Meeting, error)

	SubmitAvailability(ctx context.Context, id uuid.UUID, userID string, slots []schedule.SlotID) (*Meeting, error)
	SlotProjections(ctx context.Context, id uuid.UUID) ([]SlotProjection, int, error)

	AddAnnouncement(ctx context.Context, id uuid.UUID, actorID string, draft AnnouncementDraft) (*Meeting, error)
	RemoveAnnouncement(ctx context.Context, id uuid.UUID, actorID string, announcementID uuid.UUID) (*Meeting, error)

	StartAttendance(ctx context.Context, id uuid.UUID, actorID string) (*Meeting, string, error)
	EndAttendance(ctx context.Context, id uuid.UUID, actorID string) (*Meeting, error)
	SubmitAttendanceCode(ctx context.Context, id uuid.UUID, userID, code string) (*Meeting, error)
	AttendanceStatusFor(ctx context.Context, id uuid.UUID) (AttendanceStatus, error)
}
