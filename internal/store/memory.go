// internal/store/memory.go
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"campusmeet/internal/meeting"
	"campusmeet/internal/schedule"
)

// MemoryStore is an in-process Store used by tests and the stress
// harness. It honors the same concurrency contract as the Postgres
// store: versioned CAS on whole-document updates, per-key writes for
// availability.
type MemoryStore struct {
	mu       sync.RWMutex
	meetings map[uuid.UUID]*meeting.Meeting
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{meetings: make(map[uuid.UUID]*meeting.Meeting)}
}

func (s *MemoryStore) Create(_ context.Context, m *meeting.Meeting) (*meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[m.ID]; ok {
		return nil, meeting.ErrAlreadyExists
	}
	stored := m.Clone()
	stored.Version = 1
	s.meetings[m.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*meeting.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, meeting.ErrMeetingNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) UpdateIf(_ context.Context, id uuid.UUID, expectedVersion int, m *meeting.Meeting) (*meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.meetings[id]
	if !ok {
		return nil, meeting.ErrMeetingNotFound
	}
	if current.Version != expectedVersion {
		return nil, meeting.ErrConcurrencyConflict
	}
	stored := m.Clone()
	stored.Version = expectedVersion + 1
	s.meetings[id] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) SetAvailability(_ context.Context, id uuid.UUID, userID string, slots []schedule.SlotID) (*meeting.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.meetings[id]
	if !ok {
		return nil, meeting.ErrMeetingNotFound
	}
	stored := current.Clone()
	if stored.Availability == nil {
		stored.Availability = make(map[string][]schedule.SlotID, 1)
	}
	entry := make([]schedule.SlotID, len(slots))
	copy(entry, slots)
	stored.Availability[userID] = entry
	stored.Version = current.Version + 1
	s.meetings[id] = stored
	return stored.Clone(), nil
}
