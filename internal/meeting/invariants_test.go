// internal/meeting/invariants_test.go
package meeting

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"pgregory.net/rapid"

	"campusmeet/internal/schedule"
)

// checkInvariants asserts the structural invariants that must hold in
// every reachable state: exactly one owner and it is OwnerID, unique
// participant ids, capacity never exceeded, availability held only by
// approved participants.
func checkInvariants(t *rapid.T, m *Meeting) {
	owners := 0
	seen := make(map[string]bool)
	for _, p := range m.Participants {
		if seen[p.UserID] {
			t.Fatalf("duplicate participant %q", p.UserID)
		}
		seen[p.UserID] = true
		if p.Status == StatusOwner {
			owners++
			if p.UserID != m.OwnerID {
				t.Fatalf("owner status on %q but OwnerID is %q", p.UserID, m.OwnerID)
			}
		}
	}
	if owners != 1 {
		t.Fatalf("expected exactly one owner, got %d", owners)
	}
	if m.MaxParticipants > 0 && m.ApprovedCount() > m.MaxParticipants {
		t.Fatalf("capacity exceeded: %d approved of max %d", m.ApprovedCount(), m.MaxParticipants)
	}
	for user := range m.Availability {
		if !m.IsApprovedParticipant(user) {
			t.Fatalf("availability entry for non-approved user %q", user)
		}
	}
}

// TestMembershipInvariants drives random operation sequences through
// the pure API and checks the invariants after every step. Failed
// operations must leave no observable change.
func TestMembershipInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxParticipants := rapid.IntRange(0, 4).Draw(t, "max_participants")
		m, err := New(uuid.New(), "owner", "Study Group", t0)
		if err != nil {
			t.Fatalf("new meeting: %v", err)
		}
		m.MaxParticipants = maxParticipants

		users := []string{"alice", "bob", "carol", "dave", "erin"}
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(users).Draw(t, "user")
			op := rapid.SampledFrom([]string{"request", "cancel", "approve", "reject", "submit"}).Draw(t, "op")

			before := m.Clone()
			var next *Meeting
			switch op {
			case "request":
				next, err = m.RequestJoin(user, JoinInfo{}, t0)
			case "cancel":
				next, err = m.CancelJoin(user, user)
			case "approve":
				next, err = m.Decide("owner", user, DecisionApprove)
			case "reject":
				next, err = m.Decide("owner", user, DecisionReject)
			case "submit":
				next, err = m.SubmitAvailability(user, []schedule.SlotID{"0-9-0"})
			}
			if err != nil {
				// No partial mutation: a failed operation leaves the
				// input snapshot byte-for-byte unchanged.
				if !reflect.DeepEqual(m, before) {
					t.Fatalf("failed %s mutated the snapshot", op)
				}
				checkInvariants(t, m)
				continue
			}
			m = next
			checkInvariants(t, m)
		}
	})
}

// TestDensityMonotonicity adds users one at a time to a shared slot and
// checks that both the count and the band never move backwards.
func TestDensityMonotonicity(t *testing.T) {
	rank := map[DensityClass]int{
		DensityNone:       0,
		DensityVeryLow:    1,
		DensityLow:        2,
		DensityMediumLow:  3,
		DensityMedium:     4,
		DensityMediumHigh: 5,
		DensityFull:       6,
	}

	rapid.Check(t, func(t *rapid.T) {
		total := rapid.IntRange(1, 12).Draw(t, "total")
		slot := rapid.SampledFrom(schedule.AllSlots()).Draw(t, "slot")

		m, err := New(uuid.New(), "u0", "Study Group", t0)
		if err != nil {
			t.Fatalf("new meeting: %v", err)
		}
		users := []string{"u0"}
		for i := 1; i < total; i++ {
			user := rapid.StringMatching(`u[1-9][0-9]?`).Draw(t, "user")
			if m.IsApprovedParticipant(user) {
				continue
			}
			if m, err = m.RequestJoin(user, JoinInfo{}, t0); err != nil {
				t.Fatalf("request join: %v", err)
			}
			if m, err = m.Decide("u0", user, DecisionApprove); err != nil {
				t.Fatalf("approve: %v", err)
			}
			users = append(users, user)
		}

		lastCount, lastRank := 0, rank[m.DensityClassFor(slot)]
		for _, user := range users {
			m, err = m.SubmitAvailability(user, []schedule.SlotID{slot})
			if err != nil {
				t.Fatalf("submit availability: %v", err)
			}
			count := m.ParticipantCount(slot)
			if count < lastCount {
				t.Fatalf("count decreased: %d -> %d", lastCount, count)
			}
			r := rank[m.DensityClassFor(slot)]
			if r < lastRank {
				t.Fatalf("density decreased at count %d", count)
			}
			lastCount, lastRank = count, r
		}
		if m.DensityClassFor(slot) != DensityFull {
			t.Fatalf("all %d users share %q but class is %q", len(users), slot, m.DensityClassFor(slot))
		}
	})
}

// TestAvailabilityReplaceIdempotent submits a random selection twice
// and expects identical state.
func TestAvailabilityReplaceIdempotent(t *testing.T) {
	all := schedule.AllSlots()
	rapid.Check(t, func(t *rapid.T) {
		m, err := New(uuid.New(), "owner", "Study Group", t0)
		if err != nil {
			t.Fatalf("new meeting: %v", err)
		}
		sel := rapid.SliceOfN(rapid.SampledFrom(all), 0, 20).Draw(t, "selection")

		once, err := m.SubmitAvailability("owner", sel)
		if err != nil {
			t.Fatalf("first submit: %v", err)
		}
		twice, err := once.SubmitAvailability("owner", sel)
		if err != nil {
			t.Fatalf("second submit: %v", err)
		}
		if len(once.Availability["owner"]) != len(twice.Availability["owner"]) {
			t.Fatalf("resubmission changed the entry")
		}
		for i, id := range once.Availability["owner"] {
			if twice.Availability["owner"][i] != id {
				t.Fatalf("resubmission changed slot %d", i)
			}
		}
	})
}

// TestAttendanceWindowProperty checks that a submission succeeds
// exactly when the clock is inside the window, the code matches and the
// session was not ended.
func TestAttendanceWindowProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, err := New(uuid.New(), "owner", "Study Group", t0)
		if err != nil {
			t.Fatalf("new meeting: %v", err)
		}
		m, err = m.StartAttendance("owner", "ABC123", t0)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		ended := rapid.Bool().Draw(t, "ended")
		if ended {
			if m, err = m.EndAttendance("owner"); err != nil {
				t.Fatalf("end: %v", err)
			}
		}
		offset := time.Duration(rapid.Int64Range(0, int64(2*SessionWindow)).Draw(t, "offset"))
		code := rapid.SampledFrom([]string{"ABC123", "abc123", "XYZ789"}).Draw(t, "code")
		now := t0.Add(offset)

		next, err := m.SubmitCode("owner", code, now)
		shouldSucceed := !ended && offset < SessionWindow && code == "ABC123"
		if shouldSucceed {
			if err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if len(next.Attendance.Attendees) != 1 {
				t.Fatalf("attendee not recorded")
			}
		} else if err == nil {
			t.Fatalf("expected failure (ended=%v offset=%v code=%q)", ended, offset, code)
		} else if !errors.Is(err, ErrNoActiveSession) && !errors.Is(err, ErrSessionExpired) && !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("unexpected error %v", err)
		}
	})
}
