// internal/meeting/domain.go
package meeting

import (
	"time"

	"github.com/google/uuid"

	"campusmeet/internal/schedule"
)

// ParticipantStatus is the membership state of one user within a meeting.
type ParticipantStatus string

const (
	StatusPending  ParticipantStatus = "pending"
	StatusApproved ParticipantStatus = "approved"
	StatusRejected ParticipantStatus = "rejected"
	// StatusOwner is terminal: assigned only at creation time to the
	// meeting owner, never entered or exited by a transition.
	StatusOwner ParticipantStatus = "owner"
)

// Priority tags an announcement.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Participant is one user's membership record. Display metadata is
// denormalized at request time and not live-synced.
type Participant struct {
	UserID      string            `json:"user_id"`
	Status      ParticipantStatus `json:"status"`
	DisplayName string            `json:"display_name,omitempty"`
	Email       string            `json:"email,omitempty"`
	JoinedAt    time.Time         `json:"joined_at"`
}

// Announcement is an owner-authored notice. Immutable once created,
// except for owner-only deletion.
type Announcement struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// AttendanceSession is a time-boxed window during which participants
// redeem a shared code to be recorded present. Expiry is evaluated
// lazily from the caller-supplied clock; no background timer exists.
type AttendanceSession struct {
	Code      string    `json:"code"`
	StartedBy string    `json:"started_by"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Attendees []string  `json:"attendees"`
	Ended     bool      `json:"ended"`
}

// ActiveAt reports whether the session accepts codes at the given time.
func (s *AttendanceSession) ActiveAt(now time.Time) bool {
	return s != nil && !s.Ended && now.Before(s.ExpiresAt)
}

func (s *AttendanceSession) hasAttendee(userID string) bool {
	for _, a := range s.Attendees {
		if a == userID {
			return true
		}
	}
	return false
}

// Meeting is the aggregate root and sole consistency boundary. All
// mutation helpers are pure: they leave the receiver untouched and
// return a fresh snapshot, so a failed precondition can never leak a
// partial change.
type Meeting struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	// MaxParticipants caps approved+owner membership; zero means
	// unlimited.
	MaxParticipants int       `json:"max_participants,omitempty"`
	Location        string    `json:"location,omitempty"`
	CreatedAt       time.Time `json:"created_at"`

	Participants []Participant `json:"participants"`
	// Availability maps a user id to that user's full slot selection.
	// Each submission replaces the caller's own entry wholesale, which
	// is what makes per-key last-write-wins safe at the storage layer.
	Availability  map[string][]schedule.SlotID `json:"availability,omitempty"`
	Announcements []Announcement               `json:"announcements,omitempty"`
	Attendance    *AttendanceSession           `json:"attendance,omitempty"`

	// Version is the optimistic concurrency token maintained by the
	// store; the pure operations carry it through unchanged.
	Version int `json:"version"`
}

// New creates a meeting with the creator as its sole owner participant.
func New(id uuid.UUID, ownerID, title string, createdAt time.Time) (*Meeting, error) {
	if title == "" {
		return nil, ErrValidation
	}
	if ownerID == "" {
		return nil, ErrValidation
	}
	return &Meeting{
		ID:        id,
		Title:     title,
		OwnerID:   ownerID,
		CreatedAt: createdAt,
		Participants: []Participant{
			{UserID: ownerID, Status: StatusOwner, JoinedAt: createdAt},
		},
	}, nil
}

// Clone returns a deep copy of the meeting. Every pure operation works
// on a clone so callers keep an unmodified snapshot on failure.
func (m *Meeting) Clone() *Meeting {
	if m == nil {
		return nil
	}
	out := *m
	out.Participants = append([]Participant(nil), m.Participants...)
	if m.Availability != nil {
		out.Availability = make(map[string][]schedule.SlotID, len(m.Availability))
		for user, slots := range m.Availability {
			copied := make([]schedule.SlotID, len(slots))
			copy(copied, slots)
			out.Availability[user] = copied
		}
	}
	out.Announcements = append([]Announcement(nil), m.Announcements...)
	if m.Attendance != nil {
		sess := *m.Attendance
		if m.Attendance.Attendees != nil {
			sess.Attendees = make([]string, len(m.Attendance.Attendees))
			copy(sess.Attendees, m.Attendance.Attendees)
		}
		out.Attendance = &sess
	}
	return &out
}

func (m *Meeting) participant(userID string) (int, *Participant) {
	for i := range m.Participants {
		if m.Participants[i].UserID == userID {
			return i, &m.Participants[i]
		}
	}
	return -1, nil
}
