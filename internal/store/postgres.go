// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"campusmeet/internal/meeting"
	"campusmeet/internal/schedule"
)

// PostgresStore persists each meeting as one JSONB document with a
// version column for optimistic concurrency control.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS meetings (
//		id      UUID PRIMARY KEY,
//		doc     JSONB NOT NULL,
//		version INT NOT NULL
//	);
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("campusmeet/store"),
	}
}

func (s *PostgresStore) Create(ctx context.Context, m *meeting.Meeting) (*meeting.Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "store.create",
		trace.WithAttributes(attribute.String("meeting.id", m.ID.String())),
	)
	defer span.End()

	stored := m.Clone()
	stored.Version = 1
	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal meeting: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, doc, version)
		VALUES ($1, $2, $3)
	`, stored.ID, doc, stored.Version)
	if err != nil {
		// Unique violation means the id is already taken.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, meeting.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert meeting: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*meeting.Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "store.get",
		trace.WithAttributes(attribute.String("meeting.id", id.String())),
	)
	defer span.End()

	var doc []byte
	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT doc, version FROM meetings WHERE id = $1
	`, id).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return nil, meeting.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query meeting: %w", err)
	}

	var m meeting.Meeting
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("unmarshal meeting: %w", err)
	}
	m.Version = version
	return &m, nil
}

// UpdateIf commits the document only if the stored version is still the
// one the caller read. The version predicate makes two racing updates
// resolve to exactly one winner; the loser gets
// meeting.ErrConcurrencyConflict.
func (s *PostgresStore) UpdateIf(ctx context.Context, id uuid.UUID, expectedVersion int, m *meeting.Meeting) (*meeting.Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "store.update",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.Int("expected.version", expectedVersion),
		),
	)
	defer span.End()

	stored := m.Clone()
	stored.Version = expectedVersion + 1
	doc, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("marshal meeting: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE meetings
		SET doc = $1, version = $2
		WHERE id = $3 AND version = $4
	`, doc, stored.Version, id, expectedVersion)
	if err != nil {
		return nil, fmt.Errorf("update meeting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM meetings WHERE id = $1)
		`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check meeting exists: %w", err)
		}
		if !exists {
			return nil, meeting.ErrMeetingNotFound
		}
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return nil, meeting.ErrConcurrencyConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return stored, nil
}

// SetAvailability rewrites only the caller's key inside the document's
// availability object. Two users submitting concurrently touch disjoint
// keys, so neither write is derived from a stale read of the other's
// entry and no CAS is needed.
func (s *PostgresStore) SetAvailability(ctx context.Context, id uuid.UUID, userID string, slots []schedule.SlotID) (*meeting.Meeting, error) {
	ctx, span := s.tracer.Start(ctx, "store.set_availability",
		trace.WithAttributes(
			attribute.String("meeting.id", id.String()),
			attribute.String("user.id", userID),
			attribute.Int("slot.count", len(slots)),
		),
	)
	defer span.End()

	if slots == nil {
		slots = []schedule.SlotID{}
	}
	entry, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("marshal slots: %w", err)
	}

	var doc []byte
	var version int
	err = s.db.QueryRowContext(ctx, `
		UPDATE meetings
		SET version = version + 1,
		    doc = jsonb_set(
		        jsonb_set(
		            jsonb_set(doc, '{availability}', COALESCE(doc->'availability', '{}'::jsonb)),
		            ARRAY['availability', $2::text],
		            $3::jsonb
		        ),
		        '{version}', to_jsonb(version + 1)
		    )
		WHERE id = $1
		RETURNING doc, version
	`, id, userID, entry).Scan(&doc, &version)
	if err == sql.ErrNoRows {
		return nil, meeting.ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update availability: %w", err)
	}

	var m meeting.Meeting
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("unmarshal meeting: %w", err)
	}
	m.Version = version
	return &m, nil
}
