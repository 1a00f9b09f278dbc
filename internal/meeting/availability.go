// internal/meeting/availability.go
package meeting

import (
	"math"
	"sort"

	"campusmeet/internal/schedule"
)

// DensityClass is the participation-ratio band used to colour one slot
// of the aggregated availability grid.
type DensityClass string

const (
	DensityNone       DensityClass = "none"
	DensityVeryLow    DensityClass = "very-low"
	DensityLow        DensityClass = "low"
	DensityMediumLow  DensityClass = "medium-low"
	DensityMedium     DensityClass = "medium"
	DensityMediumHigh DensityClass = "medium-high"
	DensityFull       DensityClass = "full"
)

// SubmitAvailability replaces userID's entire slot selection. The
// contract is replace-not-merge: the caller always submits their
// complete current selection, which makes resubmission idempotent and
// per-key last-write-wins safe at the storage layer. Only approved
// participants and the owner may hold an availability entry.
func (m *Meeting) SubmitAvailability(userID string, slots []schedule.SlotID) (*Meeting, error) {
	if !m.IsApprovedParticipant(userID) {
		return nil, ErrNotAuthorized
	}
	normalized := make([]schedule.SlotID, 0, len(slots))
	seen := make(map[schedule.SlotID]bool, len(slots))
	for _, id := range slots {
		if !schedule.IsValid(id) {
			return nil, ErrInvalidSlot
		}
		if !seen[id] {
			seen[id] = true
			normalized = append(normalized, id)
		}
	}
	sort.Slice(normalized, func(i, j int) bool { return normalized[i] < normalized[j] })

	out := m.Clone()
	if out.Availability == nil {
		out.Availability = make(map[string][]schedule.SlotID, 1)
	}
	out.Availability[userID] = normalized
	return out, nil
}

// ParticipantCount is the number of distinct users whose selection
// contains the slot.
func (m *Meeting) ParticipantCount(slot schedule.SlotID) int {
	n := 0
	for _, slots := range m.Availability {
		for _, id := range slots {
			if id == slot {
				n++
				break
			}
		}
	}
	return n
}

// DensityClassFor maps a slot's participation ratio onto its band.
// Thresholds are inclusive lower bounds evaluated top-down, so ties
// resolve to the higher band. A meeting with no approved participants
// reports every slot as none.
func (m *Meeting) DensityClassFor(slot schedule.SlotID) DensityClass {
	total := m.ApprovedCount()
	if total == 0 {
		return DensityNone
	}
	count := m.ParticipantCount(slot)
	ratio := float64(count) / float64(total)
	switch {
	case count == 0:
		return DensityNone
	case count == total:
		return DensityFull
	case ratio >= 0.8:
		return DensityMediumHigh
	case ratio >= 0.6:
		return DensityMedium
	case ratio >= 0.4:
		return DensityMediumLow
	case ratio >= 0.2:
		return DensityLow
	default:
		return DensityVeryLow
	}
}

// ParticipationRate is the percentage of approved participants who have
// submitted a non-empty selection, rounded to the nearest integer.
func (m *Meeting) ParticipationRate() int {
	total := m.ApprovedCount()
	if total == 0 {
		return 0
	}
	submitted := 0
	for user, slots := range m.Availability {
		if len(slots) > 0 && m.IsApprovedParticipant(user) {
			submitted++
		}
	}
	return int(math.Round(float64(submitted) / float64(total) * 100))
}
