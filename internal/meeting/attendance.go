// internal/meeting/attendance.go
package meeting

import (
	"math"
	"time"
)

// SessionWindow is how long a started attendance session accepts codes.
const SessionWindow = 180 * time.Second

// CodeLength is the length of a generated attendance code.
const CodeLength = 6

// AttendanceStatus is the pure read projection of the session state at
// a given time.
type AttendanceStatus struct {
	IsActive bool   `json:"is_active"`
	Code     string `json:"code,omitempty"`
	// ExpiresAt is a pointer so an inactive status omits the field
	// instead of serializing the zero time.
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	Attendees         []string   `json:"attendees"`
	AttendanceRate    int        `json:"attendance_rate"`
	TotalParticipants int        `json:"total_participants"`
}

// StartAttendance opens a new session with the supplied code. Only the
// owner may start one, and only while no unexpired, un-ended session
// exists. Codes are short-lived and scoped to one meeting, so collision
// with a past session's code is acceptable.
func (m *Meeting) StartAttendance(actorID, code string, now time.Time) (*Meeting, error) {
	if !m.IsOwner(actorID) {
		return nil, ErrNotAuthorized
	}
	if m.Attendance.ActiveAt(now) {
		return nil, ErrSessionActive
	}
	out := m.Clone()
	out.Attendance = &AttendanceSession{
		Code:      code,
		StartedBy: actorID,
		StartedAt: now,
		ExpiresAt: now.Add(SessionWindow),
		Attendees: []string{},
	}
	return out, nil
}

// EndAttendance closes the session regardless of remaining time.
// Idempotent: ending an already inactive session is a no-op.
func (m *Meeting) EndAttendance(actorID string) (*Meeting, error) {
	if !m.IsOwner(actorID) {
		return nil, ErrNotAuthorized
	}
	if m.Attendance == nil || m.Attendance.Ended {
		return m.Clone(), nil
	}
	out := m.Clone()
	out.Attendance.Ended = true
	return out, nil
}

// SubmitCode records userID as present if the session is still open and
// the code matches case-sensitively. Expiry is checked here against the
// caller's clock, so a late submission fails even when nobody called
// EndAttendance. Resubmission by a recorded attendee is a no-op.
func (m *Meeting) SubmitCode(userID, code string, now time.Time) (*Meeting, error) {
	sess := m.Attendance
	if sess == nil || sess.Ended {
		return nil, ErrNoActiveSession
	}
	if !now.Before(sess.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	if code != sess.Code {
		return nil, ErrInvalidCode
	}
	if !m.IsApprovedParticipant(userID) {
		return nil, ErrNotAuthorized
	}
	if sess.hasAttendee(userID) {
		return m.Clone(), nil
	}
	out := m.Clone()
	out.Attendance.Attendees = append(out.Attendance.Attendees, userID)
	return out, nil
}

// AttendanceStatusAt projects the session state at the given time.
func (m *Meeting) AttendanceStatusAt(now time.Time) AttendanceStatus {
	total := m.ApprovedCount()
	status := AttendanceStatus{
		Attendees:         []string{},
		TotalParticipants: total,
	}
	sess := m.Attendance
	if sess == nil {
		return status
	}
	status.Attendees = append(status.Attendees, sess.Attendees...)
	if total > 0 {
		status.AttendanceRate = int(math.Round(float64(len(sess.Attendees)) / float64(total) * 100))
	}
	if sess.ActiveAt(now) {
		status.IsActive = true
		status.Code = sess.Code
		expiry := sess.ExpiresAt
		status.ExpiresAt = &expiry
	}
	return status
}
