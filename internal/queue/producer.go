package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/rollcall/internal/models"
)

const (
	StreamName            = "ROLLCALL"
	StatusSubjectBase     = "rollcall.status"
	AttendanceSubjectBase = "rollcall.attendance"
	// ControlSubject carries start/stop commands over core NATS.
	ControlSubject = "rollcall.control"
)

func StatusSubject(sessionID string) string {
	return StatusSubjectBase + "." + sessionID
}

func AttendanceSubject(sessionID string) string {
	return AttendanceSubjectBase + "." + sessionID
}

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := connect(natsURL)
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

func connect(natsURL string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// EnsureStreams creates the JetStream stream if it doesn't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{StatusSubjectBase + ".>", AttendanceSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Discard:     jetstream.DiscardOld,
		Description: "Session status transitions and attendance events",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

// Notify publishes a session status without waiting for the ack, so the
// session loop is never held up by the broker.
func (p *Producer) Notify(_ context.Context, st models.Status) {
	payload, err := json.Marshal(st)
	if err != nil {
		slog.Error("marshal status", "error", err)
		return
	}
	if _, err := p.js.PublishAsync(StatusSubject(st.SessionID), payload); err != nil {
		slog.Warn("publish status", "kind", st.Kind, "error", err)
	}
}

// PublishAttendance publishes a recorded attendance event.
func (p *Producer) PublishAttendance(ctx context.Context, ev *models.AttendanceEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal attendance event: %w", err)
	}
	if _, err := p.js.Publish(ctx, AttendanceSubject(ev.SessionID), payload); err != nil {
		return fmt.Errorf("publish attendance event: %w", err)
	}
	return nil
}

// PublishControl sends a control command via raw NATS (not JetStream).
func (p *Producer) PublishControl(cmd ControlCommand) error {
	data, err := cmd.Marshal()
	if err != nil {
		return err
	}
	return p.nc.Publish(ControlSubject, data)
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(2 * time.Second):
	}
	p.nc.Close()
}
