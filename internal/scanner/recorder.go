package scanner

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/session"
)

// EventPublisher announces recorded attendance events.
type EventPublisher interface {
	PublishAttendance(ctx context.Context, ev *models.AttendanceEvent) error
}

// AnnouncingRecorder publishes every event the wrapped recorder stores.
// Publishing is best effort: the event is already durable.
type AnnouncingRecorder struct {
	Recorder  session.Recorder
	Publisher EventPublisher
	Timeout   time.Duration
}

func (a *AnnouncingRecorder) TryRecord(ctx context.Context, req attendance.Request) (*models.AttendanceEvent, error) {
	ev, err := a.Recorder.TryRecord(ctx, req)
	if err != nil {
		return nil, err
	}

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	pubCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := a.Publisher.PublishAttendance(pubCtx, ev); err != nil {
		slog.Warn("publish attendance event", "event_id", ev.ID, "error", err)
	}
	return ev, nil
}
