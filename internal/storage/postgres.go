package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	return NewPostgresStoreDSN(ctx, cfg.DSN(), cfg.MaxConns)
}

func NewPostgresStoreDSN(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Subjects ---

// ListEnrolled returns every subject with at least one reference descriptor.
func (s *PostgresStore) ListEnrolled(ctx context.Context) ([]models.EnrollmentRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.subject_id, s.display_name, r.descriptor
		 FROM subjects s
		 JOIN subject_references r ON r.subject_id = s.subject_id
		 ORDER BY s.subject_id, r.id`)
	if err != nil {
		return nil, fmt.Errorf("list enrolled: %w", err)
	}
	defer rows.Close()

	var records []models.EnrollmentRecord
	for rows.Next() {
		var (
			id, name string
			vec      pgvector.Vector
		)
		if err := rows.Scan(&id, &name, &vec); err != nil {
			return nil, fmt.Errorf("scan reference: %w", err)
		}
		if n := len(records); n == 0 || records[n-1].SubjectID != id {
			records = append(records, models.EnrollmentRecord{SubjectID: id, DisplayName: name})
		}
		last := &records[len(records)-1]
		last.References = append(last.References, models.Descriptor(vec.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list enrolled: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.subject_id, s.display_name, s.created_at, COUNT(r.id)
		 FROM subjects s
		 LEFT JOIN subject_references r ON r.subject_id = s.subject_id
		 GROUP BY s.subject_id, s.display_name, s.created_at
		 ORDER BY s.display_name, s.subject_id`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		var sub models.Subject
		if err := rows.Scan(&sub.SubjectID, &sub.DisplayName, &sub.CreatedAt, &sub.ReferenceCount); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

// AddReferences creates the subject if needed and appends reference descriptors.
func (s *PostgresStore) AddReferences(ctx context.Context, subjectID, displayName string, refs []models.Descriptor) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO subjects (subject_id, display_name) VALUES ($1, $2)
		 ON CONFLICT (subject_id) DO UPDATE SET display_name = EXCLUDED.display_name`,
		subjectID, displayName)
	if err != nil {
		return fmt.Errorf("upsert subject: %w", err)
	}

	for _, ref := range refs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO subject_references (subject_id, descriptor) VALUES ($1, $2)`,
			subjectID, pgvector.NewVector(ref)); err != nil {
			return fmt.Errorf("add reference: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- Attendance events ---

func (s *PostgresStore) HasEventForDay(ctx context.Context, subjectID string, day time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendance_events WHERE subject_id = $1 AND day = $2)`,
		subjectID, day).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return exists, nil
}

// Record inserts ev. The unique (subject_id, day) index makes the insert the
// single point of truth; a conflicting insert returns ErrDuplicateEvent.
func (s *PostgresStore) Record(ctx context.Context, ev *models.AttendanceEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO attendance_events
		   (id, subject_id, subject_name, day, timestamp, confidence, distance, session_id, method, snapshot_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (subject_id, day) DO NOTHING
		 RETURNING created_at`,
		ev.ID, ev.SubjectID, ev.SubjectName, ev.Day, ev.Timestamp, ev.Confidence, ev.Distance,
		ev.SessionID, ev.Method, ev.SnapshotKey,
	).Scan(&ev.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert attendance event: %w", err)
	}
	return nil
}

const eventColumns = `id, subject_id, subject_name, day, timestamp, confidence, distance, session_id, method, snapshot_key, created_at`

func scanEvent(row pgx.Row, ev *models.AttendanceEvent) error {
	return row.Scan(&ev.ID, &ev.SubjectID, &ev.SubjectName, &ev.Day, &ev.Timestamp,
		&ev.Confidence, &ev.Distance, &ev.SessionID, &ev.Method, &ev.SnapshotKey, &ev.CreatedAt)
}

// ListEvents returns the events of one calendar day in insertion order.
func (s *PostgresStore) ListEvents(ctx context.Context, day time.Time) ([]models.AttendanceEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM attendance_events WHERE day = $1 ORDER BY seq`, day)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var events []models.AttendanceEvent
	for rows.Next() {
		var ev models.AttendanceEvent
		if err := scanEvent(rows, &ev); err != nil {
			return nil, fmt.Errorf("scan attendance event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.AttendanceEvent, error) {
	var ev models.AttendanceEvent
	err := scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM attendance_events WHERE id = $1`, id), &ev)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get attendance event: %w", err)
	}
	return &ev, nil
}
