// internal/meeting/implementation_test.go
package meeting_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusmeet/internal/meeting"
	"campusmeet/internal/schedule"
	"campusmeet/internal/store"
)

// testClock is a settable clock shared by a test and its service.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (meeting.Service, *store.Broadcaster, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	bc := store.NewBroadcaster()
	svc := meeting.NewService(store.NewMemoryStore(), bc, clock.Now, func() string { return "CODE42" })
	return svc, bc, clock
}

func TestServiceCreateAndGet(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{
		Title:           "Algorithms Study Group",
		MaxParticipants: 5,
		Location:        "Library B12",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.True(t, m.IsOwner("owner"))

	got, err := svc.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: ""})
	assert.ErrorIs(t, err, meeting.ErrValidation)
	_, err = svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "x", MaxParticipants: -1})
	assert.ErrorIs(t, err, meeting.ErrValidation)
}

func TestServiceJoinFlow(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group"})
	require.NoError(t, err)

	_, err = svc.RequestJoin(ctx, m.ID, "alice", meeting.JoinInfo{DisplayName: "Alice"})
	require.NoError(t, err)

	next, err := svc.DecideJoinRequest(ctx, m.ID, "owner", "alice", meeting.DecisionApprove)
	require.NoError(t, err)
	assert.True(t, next.IsApprovedParticipant("alice"))
	// Every commit bumps the version.
	assert.Equal(t, 3, next.Version)
}

func TestServiceAvailabilityFieldScoped(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group"})
	require.NoError(t, err)
	_, err = svc.RequestJoin(ctx, m.ID, "alice", meeting.JoinInfo{})
	require.NoError(t, err)
	_, err = svc.DecideJoinRequest(ctx, m.ID, "owner", "alice", meeting.DecisionApprove)
	require.NoError(t, err)

	// Concurrent submissions from distinct users must both survive.
	var wg sync.WaitGroup
	for _, user := range []string{"owner", "alice"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := svc.SubmitAvailability(ctx, m.ID, user, []schedule.SlotID{"0-9-0"})
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()

	got, err := svc.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ParticipantCount("0-9-0"))
	assert.Equal(t, meeting.DensityFull, got.DensityClassFor("0-9-0"))
}

// Concurrent approvals against a capacity-one seat: the commit-time
// re-check lets exactly one through regardless of interleaving.
func TestServiceConcurrentApprovals(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group", MaxParticipants: 2})
	require.NoError(t, err)
	for _, user := range []string{"alice", "bob"} {
		_, err = svc.RequestJoin(ctx, m.ID, user, meeting.JoinInfo{})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, user := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = svc.DecideJoinRequest(ctx, m.ID, "owner", user, meeting.DecisionApprove)
		}(i, user)
	}
	wg.Wait()

	got, err := svc.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ApprovedCount(), "capacity must hold under concurrency")

	succeeded := 0
	for _, e := range errs {
		if e == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, e, meeting.ErrMeetingFull)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestServiceConcurrentAttendanceStart(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.StartAttendance(ctx, m.ID, "owner")
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, e := range errs {
		if e == nil {
			winners++
		} else {
			assert.ErrorIs(t, e, meeting.ErrSessionActive)
		}
	}
	assert.Equal(t, 1, winners, "exactly one concurrent start may win")
}

func TestServiceAttendanceLifecycle(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group"})
	require.NoError(t, err)
	_, err = svc.RequestJoin(ctx, m.ID, "alice", meeting.JoinInfo{})
	require.NoError(t, err)
	_, err = svc.DecideJoinRequest(ctx, m.ID, "owner", "alice", meeting.DecisionApprove)
	require.NoError(t, err)

	_, code, err := svc.StartAttendance(ctx, m.ID, "owner")
	require.NoError(t, err)
	assert.Equal(t, "CODE42", code)

	clock.Advance(meeting.SessionWindow - time.Second)
	next, err := svc.SubmitAttendanceCode(ctx, m.ID, "alice", code)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, next.Attendance.Attendees)

	clock.Advance(2 * time.Second)
	_, err = svc.SubmitAttendanceCode(ctx, m.ID, "alice", code)
	assert.ErrorIs(t, err, meeting.ErrSessionExpired)

	status, err := svc.AttendanceStatusFor(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, status.IsActive)
	assert.Equal(t, []string{"alice"}, status.Attendees)
	assert.Equal(t, 50, status.AttendanceRate)

	// Ending an expired session stays idempotent.
	_, err = svc.EndAttendance(ctx, m.ID, "owner")
	assert.NoError(t, err)
}

func TestServiceSubmitCodeRateLimited(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group"})
	require.NoError(t, err)
	_, _, err = svc.StartAttendance(ctx, m.ID, "owner")
	require.NoError(t, err)

	// The per-user burst runs out after a handful of rapid guesses.
	var limited bool
	for i := 0; i < 10; i++ {
		_, err := svc.SubmitAttendanceCode(ctx, m.ID, "guesser", "WRONG1")
		if err == meeting.ErrRateLimited {
			limited = true
			break
		}
		assert.ErrorIs(t, err, meeting.ErrInvalidCode)
	}
	assert.True(t, limited, "expected the guesser to be throttled")

	// Other users keep their own budget.
	_, err = svc.SubmitAttendanceCode(ctx, m.ID, "owner", "CODE42")
	assert.NoError(t, err)
}

func TestServiceSnapshotOrdering(t *testing.T) {
	svc, bc, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group"})
	require.NoError(t, err)

	ch, cancel := bc.Subscribe(m.ID)
	defer cancel()

	_, err = svc.RequestJoin(ctx, m.ID, "alice", meeting.JoinInfo{})
	require.NoError(t, err)
	_, err = svc.DecideJoinRequest(ctx, m.ID, "owner", "alice", meeting.DecisionApprove)
	require.NoError(t, err)

	last := 0
	for i := 0; i < 2; i++ {
		select {
		case snap := <-ch:
			assert.Greater(t, snap.Version, last, "snapshots must be monotonically newer")
			last = snap.Version
		case <-time.After(time.Second):
			t.Fatal("expected a snapshot delivery")
		}
	}

	// Republishing an old snapshot must be dropped.
	bc.Publish(m)
	select {
	case snap := <-ch:
		t.Fatalf("stale snapshot version %d delivered", snap.Version)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestServiceMeetingNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	missing := uuid.New()
	_, err := svc.GetMeeting(ctx, missing)
	assert.ErrorIs(t, err, meeting.ErrMeetingNotFound)
	_, err = svc.RequestJoin(ctx, missing, "alice", meeting.JoinInfo{})
	assert.ErrorIs(t, err, meeting.ErrMeetingNotFound)
	_, err = svc.SubmitAvailability(ctx, missing, "alice", nil)
	assert.ErrorIs(t, err, meeting.ErrMeetingNotFound)
	_, _, err = svc.StartAttendance(ctx, missing, "alice")
	assert.ErrorIs(t, err, meeting.ErrMeetingNotFound)
}

func TestServiceSlotProjections(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	m, err := svc.CreateMeeting(ctx, "owner", meeting.CreateMeetingInput{Title: "Study Group"})
	require.NoError(t, err)
	_, err = svc.SubmitAvailability(ctx, m.ID, "owner", []schedule.SlotID{"0-9-0"})
	require.NoError(t, err)

	projections, rate, err := svc.SlotProjections(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, projections, schedule.SlotCount)
	assert.Equal(t, 100, rate)

	assert.Equal(t, schedule.SlotID("0-9-0"), projections[0].Slot)
	assert.Equal(t, 1, projections[0].Count)
	assert.Equal(t, meeting.DensityFull, projections[0].Density)
	assert.Equal(t, meeting.DensityNone, projections[1].Density)
}
