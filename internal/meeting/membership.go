// internal/meeting/membership.go
package meeting

import "time"

// Decision is the owner's verdict on a pending join request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// JoinInfo carries the display metadata captured with a join request.
type JoinInfo struct {
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
}

// IsOwner reports whether userID owns the meeting.
func (m *Meeting) IsOwner(userID string) bool {
	return userID == m.OwnerID
}

// IsApprovedParticipant reports whether userID is approved or the owner.
func (m *Meeting) IsApprovedParticipant(userID string) bool {
	_, p := m.participant(userID)
	return p != nil && (p.Status == StatusApproved || p.Status == StatusOwner)
}

// HasPendingRequest reports whether userID has an undecided request.
func (m *Meeting) HasPendingRequest(userID string) bool {
	_, p := m.participant(userID)
	return p != nil && p.Status == StatusPending
}

// ApprovedCount is the capacity denominator: approved members plus the
// owner.
func (m *Meeting) ApprovedCount() int {
	n := 0
	for i := range m.Participants {
		if m.Participants[i].Status == StatusApproved || m.Participants[i].Status == StatusOwner {
			n++
		}
	}
	return n
}

func (m *Meeting) atCapacity() bool {
	return m.MaxParticipants > 0 && m.ApprovedCount() >= m.MaxParticipants
}

// RequestJoin files a pending membership request for userID. Any prior
// record for the user, including a retained rejection, blocks a new
// request.
func (m *Meeting) RequestJoin(userID string, info JoinInfo, now time.Time) (*Meeting, error) {
	if userID == "" {
		return nil, ErrValidation
	}
	if _, p := m.participant(userID); p != nil {
		return nil, ErrAlreadyRequested
	}
	if m.atCapacity() {
		return nil, ErrMeetingFull
	}
	out := m.Clone()
	out.Participants = append(out.Participants, Participant{
		UserID:      userID,
		Status:      StatusPending,
		DisplayName: info.DisplayName,
		Email:       info.Email,
		JoinedAt:    now,
	})
	return out, nil
}

// CancelJoin withdraws the actor's own pending request, removing the
// participant record entirely.
func (m *Meeting) CancelJoin(actorID, userID string) (*Meeting, error) {
	if actorID != userID {
		return nil, ErrNotAuthorized
	}
	i, p := m.participant(userID)
	if p == nil {
		return nil, ErrNotFound
	}
	if p.Status != StatusPending {
		return nil, ErrInvalidStateTransition
	}
	out := m.Clone()
	out.Participants = append(out.Participants[:i], out.Participants[i+1:]...)
	return out, nil
}

// Decide resolves a pending request. Only the owner may decide; the
// capacity check is repeated here so a decision made from a stale view
// cannot over-fill the meeting. Rejected records are retained for audit.
func (m *Meeting) Decide(actorID, userID string, decision Decision) (*Meeting, error) {
	if !m.IsOwner(actorID) {
		return nil, ErrNotAuthorized
	}
	i, p := m.participant(userID)
	if p == nil {
		return nil, ErrNotFound
	}
	if p.Status != StatusPending {
		return nil, ErrInvalidStateTransition
	}
	switch decision {
	case DecisionApprove:
		if m.atCapacity() {
			return nil, ErrMeetingFull
		}
		out := m.Clone()
		out.Participants[i].Status = StatusApproved
		return out, nil
	case DecisionReject:
		out := m.Clone()
		out.Participants[i].Status = StatusRejected
		return out, nil
	default:
		return nil, ErrValidation
	}
}
