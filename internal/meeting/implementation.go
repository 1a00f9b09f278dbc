// internal/meeting/implementation.go
package meeting

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"campusmeet/internal/schedule"
)

// maxCommitRetries bounds how often a mutation is replayed against
// fresh state after losing a version race.
const maxCommitRetries = 3

// codeAlphabet omits ambiguous characters (0/O, 1/I) since codes are
// read aloud and typed by hand.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode returns a fresh random attendance code. Collisions are
// acceptable: codes are short-lived and scoped to one meeting.
func GenerateCode() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in no state to
		// serve anything.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// service implements the Service interface on top of a Store and a
// snapshot Publisher.
type service struct {
	store   Store
	pub     Publisher
	now     Clock
	newCode CodeFunc
	tracer  trace.Tracer

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService creates a meeting coordination service. A nil clock or
// code generator falls back to time.Now and GenerateCode; tests inject
// deterministic ones.
func NewService(store Store, pub Publisher, clock Clock, code CodeFunc) Service {
	if clock == nil {
		clock = time.Now
	}
	if code == nil {
		code = GenerateCode
	}
	return &service{
		store:    store,
		pub:      pub,
		now:      clock,
		newCode:  code,
		tracer:   otel.Tracer("campusmeet/meeting"),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (s *service) publish(m *Meeting) {
	if s.pub != nil {
		s.pub.Publish(m)
	}
}

// mutate runs op against the latest committed snapshot and commits the
// result with a versioned CAS. On a version conflict the operation is
// replayed against re-read state, so preconditions (capacity, target
// status, active session) are always evaluated at commit time rather
// than against whatever stale view the caller rendered.
func (s *service) mutate(ctx context.Context, id uuid.UUID, op func(*Meeting) (*Meeting, error)) (*Meeting, error) {
	for attempt := 0; attempt < maxCommitRetries; attempt++ {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		next, err := op(current)
		if err != nil {
			return nil, err
		}
		committed, err := s.store.UpdateIf(ctx, id, current.Version, next)
		if errors.Is(err, ErrConcurrencyConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		s.publish(committed)
		return committed, nil
	}
	return nil, ErrConcurrencyConflict
}

func (s *service) CreateMeeting(ctx context.Context, ownerID string, input CreateMeetingInput) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.create",
		trace.WithAttributes(attribute.String("owner.id", ownerID)),
	)
	defer span.End()

	if input.MaxParticipants < 0 {
		return nil, ErrValidation
	}
	m, err := New(uuid.New(), ownerID, input.Title, s.now())
	if err != nil {
		return nil, err
	}
	m.Description = input.Description
	m.MaxParticipants = input.MaxParticipants
	m.Location = input.Location

	committed, err := s.store.Create(ctx, m)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("meeting.id", committed.ID.String()))
	s.publish(committed)
	return committed, nil
}

func (s *service) GetMeeting(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.get",
		trace.WithAttributes(attribute.String("meeting.id", id.String())),
	)
	defer span.End()
	return s.store.Get(ctx, id)
}

func (s *service) RequestJoin(ctx context.Context, id uuid.UUID, userID string, info JoinInfo) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.request_join",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	now := s.now()
	return s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.RequestJoin(userID, info, now)
	})
}

func (s *service) CancelJoin(ctx context.Context, id uuid.UUID, actorID string) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.cancel_join",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("user.id", actorID),
		),
	)
	defer span.End()

	return s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.CancelJoin(actorID, actorID)
	})
}

func (s *service) DecideJoinRequest(ctx context.Context, id uuid.UUID, actorID, userID string, decision Decision) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.decide_join",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("actor.id", actorID),
			attribute.String("user.id", userID),
			attribute.String("decision", string(decision)),
		),
	)
	defer span.End()

	return s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.Decide(actorID, userID, decision)
	})
}

// SubmitAvailability validates against the latest snapshot, then
// commits through the field-scoped write: only the caller's own entry
// is touched, so concurrent submissions from other users are never
// clobbered and no CAS retry is needed.
func (s *service) SubmitAvailability(ctx context.Context, id uuid.UUID, userID string, slots []schedule.SlotID) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.submit_availability",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("user.id", userID),
			attribute.Int("slot.count", len(slots)),
		),
	)
	defer span.End()

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := current.SubmitAvailability(userID, slots)
	if err != nil {
		return nil, err
	}
	committed, err := s.store.SetAvailability(ctx, id, userID, next.Availability[userID])
	if err != nil {
		return nil, err
	}
	s.publish(committed)
	return committed, nil
}

func (s *service) SlotProjections(ctx context.Context, id uuid.UUID) ([]SlotProjection, int, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.slot_projections",
		trace.WithAttributes(attribute.String("meeting.id", id.String())),
	)
	defer span.End()

	m, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	slots := schedule.AllSlots()
	out := make([]SlotProjection, 0, len(slots))
	for _, slot := range slots {
		out = append(out, SlotProjection{
			Slot:    slot,
			Count:   m.ParticipantCount(slot),
			Density: m.DensityClassFor(slot),
		})
	}
	return out, m.ParticipationRate(), nil
}

func (s *service) AddAnnouncement(ctx context.Context, id uuid.UUID, actorID string, draft AnnouncementDraft) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.add_announcement",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("actor.id", actorID),
		),
	)
	defer span.End()

	announcementID := uuid.New()
	now := s.now()
	return s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.AddAnnouncement(actorID, draft, announcementID, now)
	})
}

func (s *service) RemoveAnnouncement(ctx context.Context, id uuid.UUID, actorID string, announcementID uuid.UUID) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.remove_announcement",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("actor.id", actorID),
			attribute.String("announcement.id", announcementID.String()),
		),
	)
	defer span.End()

	return s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.RemoveAnnouncement(actorID, announcementID)
	})
}

// StartAttendance commits through the CAS path, so of two concurrent
// starts exactly one wins; the loser replays against the committed
// state, finds the session active and reports ErrSessionActive.
func (s *service) StartAttendance(ctx context.Context, id uuid.UUID, actorID string) (*Meeting, string, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.start_attendance",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("actor.id", actorID),
		),
	)
	defer span.End()

	code := s.newCode()
	committed, err := s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.StartAttendance(actorID, code, s.now())
	})
	if err != nil {
		return nil, "", err
	}
	return committed, code, nil
}

func (s *service) EndAttendance(ctx context.Context, id uuid.UUID, actorID string) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.end_attendance",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("actor.id", actorID),
		),
	)
	defer span.End()

	return s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.EndAttendance(actorID)
	})
}

// limiter returns the per-user throttle for code submissions.
func (s *service) limiter(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(2*time.Second), 5)
		s.limiters[userID] = l
	}
	return l
}

func (s *service) SubmitAttendanceCode(ctx context.Context, id uuid.UUID, userID, code string) (*Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.submit_code",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	if !s.limiter(userID).Allow() {
		span.SetAttributes(attribute.Bool("rate.limited", true))
		return nil, ErrRateLimited
	}
	return s.mutate(ctx, id, func(m *Meeting) (*Meeting, error) {
		return m.SubmitCode(userID, code, s.now())
	})
}

func (s *service) AttendanceStatusFor(ctx context.Context, id uuid.UUID) (AttendanceStatus, error) {
	ctx, span := s.tracer.Start(ctx, "meeting.attendance_status",
		trace.WithAttributes(attribute.String("meeting.id", id.String())),
	)
	defer span.End()

	m, err := s.store.Get(ctx, id)
	if err != nil {
		return AttendanceStatus{}, err
	}
	return m.AttendanceStatusAt(s.now()), nil
}
