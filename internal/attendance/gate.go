// Package attendance persists confirmed check-ins, at most one per subject
// per calendar day.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/storage"
)

// ErrAlreadyMarkedToday means the subject already has an event for the day.
var ErrAlreadyMarkedToday = errors.New("already marked today")

// GateError wraps a sink failure for one subject.
type GateError struct {
	SubjectID string
	Err       error
}

func (e *GateError) Error() string {
	return fmt.Sprintf("record attendance for %s: %v", e.SubjectID, e.Err)
}

func (e *GateError) Unwrap() error { return e.Err }

// EventSink is the durable attendance store. Record must be atomic per
// (subject, day) and return storage.ErrDuplicateEvent on conflict.
type EventSink interface {
	HasEventForDay(ctx context.Context, subjectID string, day time.Time) (bool, error)
	Record(ctx context.Context, ev *models.AttendanceEvent) error
}

type SnapshotStore interface {
	PutSnapshot(ctx context.Context, key string, jpeg []byte) error
	DeleteSnapshot(ctx context.Context, key string) error
}

// Request describes one confirmed identity ready to be recorded.
type Request struct {
	SubjectID   string
	SubjectName string
	Distance    float64
	Timestamp   time.Time
	SessionID   string
	Snapshot    []byte // JPEG of the confirming frame, optional
}

type Option func(*Gate)

func WithSnapshots(s SnapshotStore) Option {
	return func(g *Gate) { g.snapshots = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

type Gate struct {
	sink      EventSink
	snapshots SnapshotStore
	loc       *time.Location
	logger    *slog.Logger
}

func NewGate(sink EventSink, loc *time.Location, opts ...Option) *Gate {
	if loc == nil {
		loc = time.Local
	}
	g := &Gate{
		sink:   sink,
		loc:    loc,
		logger: slog.Default().With("component", "attendance"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CalendarDay returns the date of t in loc as a UTC midnight.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Confidence maps a match distance to a score in [0, 1].
func Confidence(distance float64) float32 {
	c := 1 - distance
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return float32(c)
}

// Day returns the calendar day of t in the gate's reference zone.
func (g *Gate) Day(t time.Time) time.Time {
	return CalendarDay(t, g.loc)
}

// TryRecord writes an event for req unless one already exists that day.
func (g *Gate) TryRecord(ctx context.Context, req Request) (*models.AttendanceEvent, error) {
	day := g.Day(req.Timestamp)

	exists, err := g.sink.HasEventForDay(ctx, req.SubjectID, day)
	if err != nil {
		observability.ConfirmationsTotal.WithLabelValues("failed").Inc()
		return nil, &GateError{SubjectID: req.SubjectID, Err: err}
	}
	if exists {
		observability.ConfirmationsTotal.WithLabelValues("already_marked").Inc()
		return nil, ErrAlreadyMarkedToday
	}

	ev := &models.AttendanceEvent{
		ID:          uuid.New(),
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		Day:         day,
		Timestamp:   req.Timestamp,
		Confidence:  Confidence(req.Distance),
		Distance:    req.Distance,
		SessionID:   req.SessionID,
		Method:      models.MethodFaceChallenge,
	}

	if g.snapshots != nil && len(req.Snapshot) > 0 {
		key := snapshotKey(ev)
		if err := g.snapshots.PutSnapshot(ctx, key, req.Snapshot); err != nil {
			g.logger.Warn("snapshot upload failed", "subject_id", req.SubjectID, "error", err)
		} else {
			ev.SnapshotKey = key
		}
	}

	if err := g.sink.Record(ctx, ev); err != nil {
		g.dropSnapshot(ctx, ev.SnapshotKey)
		if errors.Is(err, storage.ErrDuplicateEvent) {
			observability.ConfirmationsTotal.WithLabelValues("already_marked").Inc()
			return nil, ErrAlreadyMarkedToday
		}
		observability.ConfirmationsTotal.WithLabelValues("failed").Inc()
		return nil, &GateError{SubjectID: req.SubjectID, Err: err}
	}

	observability.ConfirmationsTotal.WithLabelValues("recorded").Inc()
	g.logger.Info("attendance recorded",
		"subject_id", ev.SubjectID,
		"event_id", ev.ID,
		"day", ev.Day.Format(time.DateOnly),
		"distance", ev.Distance,
	)
	return ev, nil
}

func (g *Gate) dropSnapshot(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := g.snapshots.DeleteSnapshot(ctx, key); err != nil {
		g.logger.Warn("snapshot cleanup failed", "key", key, "error", err)
	}
}

func snapshotKey(ev *models.AttendanceEvent) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.jpg", ev.Day.Format(time.DateOnly), ev.SubjectID, ev.ID)
}
