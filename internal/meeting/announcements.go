// internal/meeting/announcements.go
package meeting

import (
	"time"

	"github.com/google/uuid"
)

// AnnouncementDraft is the caller-supplied portion of an announcement;
// id and creation time are assigned server-side.
type AnnouncementDraft struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Priority Priority `json:"priority"`
}

// AddAnnouncement prepends an owner-authored notice. The log is kept
// newest-first.
func (m *Meeting) AddAnnouncement(actorID string, draft AnnouncementDraft, id uuid.UUID, now time.Time) (*Meeting, error) {
	if !m.IsOwner(actorID) {
		return nil, ErrNotAuthorized
	}
	if draft.Title == "" || draft.Content == "" {
		return nil, ErrValidation
	}
	switch draft.Priority {
	case PriorityLow, PriorityNormal, PriorityHigh:
	case "":
		draft.Priority = PriorityNormal
	default:
		return nil, ErrValidation
	}
	out := m.Clone()
	out.Announcements = append([]Announcement{{
		ID:        id,
		Title:     draft.Title,
		Content:   draft.Content,
		AuthorID:  actorID,
		Priority:  draft.Priority,
		CreatedAt: now,
	}}, out.Announcements...)
	return out, nil
}

// RemoveAnnouncement deletes an announcement by id, owner-only.
func (m *Meeting) RemoveAnnouncement(actorID string, id uuid.UUID) (*Meeting, error) {
	if !m.IsOwner(actorID) {
		return nil, ErrNotAuthorized
	}
	for i := range m.Announcements {
		if m.Announcements[i].ID == id {
			out := m.Clone()
			out.Announcements = append(out.Announcements[:i], out.Announcements[i+1:]...)
			return out, nil
		}
	}
	return nil, ErrNotFound
}
