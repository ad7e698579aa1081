// Package session runs the per-camera verification loop: pull a frame,
// extract one face, match it, run the liveness challenge, debounce and
// record attendance.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/debounce"
	"github.com/your-org/rollcall/internal/liveness"
	"github.com/your-org/rollcall/internal/matcher"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
)

var (
	ErrDeviceUnavailable = errors.New("frame source unavailable")
	ErrNotRunning        = errors.New("session not running")
	ErrNoFace            = errors.New("no face detected")
	ErrMultipleFaces     = errors.New("multiple faces detected")
)

// FrameSource delivers the freshest available frame on demand.
// NextFrame returns (nil, nil) when no new frame is ready. Release must be
// idempotent.
type FrameSource interface {
	Open(ctx context.Context) error
	NextFrame(ctx context.Context) (*models.Frame, error)
	Release() error
}

// Extractor finds exactly one face in a frame. It returns ErrNoFace or
// ErrMultipleFaces when the frame is unusable.
type Extractor interface {
	Detect(ctx context.Context, frame *models.Frame) (*models.Detection, error)
}

type TemplateStore interface {
	ListEnrolled(ctx context.Context) ([]models.EnrollmentRecord, error)
}

type Recorder interface {
	TryRecord(ctx context.Context, req attendance.Request) (*models.AttendanceEvent, error)
}

// Notifier receives every status transition. It is called from the ticking
// goroutine and must not block or call back into the session.
type Notifier interface {
	Notify(ctx context.Context, st models.Status)
}

type NotifierFunc func(ctx context.Context, st models.Status)

func (f NotifierFunc) Notify(ctx context.Context, st models.Status) { f(ctx, st) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.Status) {}

type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Deps are the collaborators a session is built from.
type Deps struct {
	Source    FrameSource
	Extractor Extractor
	Templates TemplateStore
	Recorder  Recorder
	Notifier  Notifier
}

type Config struct {
	ID                  string
	AutoThreshold       float64
	ConfirmThreshold    float64
	ChallengeTimeout    time.Duration
	EARThreshold        float64
	LookLeftOffset      float64
	ConsecutiveRequired int
	PauseAfterMark      time.Duration
	TickInterval        time.Duration
}

// DefaultConfig returns the stock thresholds and timings.
func DefaultConfig(id string) Config {
	return Config{
		ID:                  id,
		AutoThreshold:       matcher.DefaultAutoThreshold,
		ConfirmThreshold:    matcher.DefaultConfirmThreshold,
		ChallengeTimeout:    liveness.DefaultTimeout,
		EARThreshold:        liveness.DefaultEARThreshold,
		LookLeftOffset:      liveness.DefaultLookLeftOffset,
		ConsecutiveRequired: debounce.DefaultRequired,
		PauseAfterMark:      1400 * time.Millisecond,
		TickInterval:        100 * time.Millisecond,
	}
}

// ConfigFrom maps the service configuration onto session settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		ID:                  cfg.Session.ID,
		AutoThreshold:       cfg.Matching.AutoThreshold,
		ConfirmThreshold:    cfg.Matching.ConfirmThreshold,
		ChallengeTimeout:    cfg.Liveness.ChallengeTimeout,
		EARThreshold:        cfg.Liveness.EARThreshold,
		LookLeftOffset:      cfg.Liveness.LookLeftOffset,
		ConsecutiveRequired: cfg.Confirmation.ConsecutiveRequired,
		PauseAfterMark:      cfg.Confirmation.PauseAfterMark,
		TickInterval:        cfg.Session.TickInterval,
	}
}

type Option func(*Session)

func WithClock(c Clock) Option {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithPicker(p liveness.Picker) Option {
	return func(s *Session) { s.picker = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is one camera's verification loop. Tick is driven by a single
// goroutine; Stop and State may be called from any goroutine.
type Session struct {
	id     string
	cfg    Config
	deps   Deps
	clock  Clock
	picker liveness.Picker
	logger *slog.Logger

	matcher   *matcher.Matcher
	challenge *liveness.Controller
	debounce  *debounce.Debouncer

	// tickMu serializes Start, Tick and the stop cleanup.
	tickMu  sync.Mutex
	stopReq atomic.Bool

	mu          sync.Mutex
	state       State
	pausedUntil time.Time
}

func New(deps Deps, cfg Config, opts ...Option) (*Session, error) {
	if deps.Source == nil || deps.Extractor == nil || deps.Templates == nil || deps.Recorder == nil {
		return nil, errors.New("session: source, extractor, templates and recorder are required")
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}

	m, err := matcher.New(cfg.AutoThreshold, cfg.ConfirmThreshold)
	if err != nil {
		return nil, fmt.Errorf("create matcher: %w", err)
	}

	s := &Session{
		id:      cfg.ID,
		cfg:     cfg,
		deps:    deps,
		clock:   realClock{},
		matcher: m,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "session", "session_id", s.id)
	}

	lopts := []liveness.Option{
		liveness.WithEARThreshold(cfg.EARThreshold),
		liveness.WithLookLeftOffset(cfg.LookLeftOffset),
	}
	if s.picker != nil {
		lopts = append(lopts, liveness.WithPicker(s.picker))
	}
	s.challenge = liveness.New(cfg.ChallengeTimeout, lopts...)
	s.debounce = debounce.New(cfg.ConsecutiveRequired)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConsecutiveCount exposes the debouncer counter for observers and tests.
func (s *Session) ConsecutiveCount() int {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	return s.debounce.Count()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	observability.SessionState.WithLabelValues(s.id).Set(float64(st))
}

func (s *Session) emit(ctx context.Context, st models.Status) {
	st.SessionID = s.id
	if st.Time.IsZero() {
		st.Time = s.clock.Now()
	}
	s.deps.Notifier.Notify(ctx, st)
}

// Start acquires the frame source and enters Running. On failure the
// session stays Stopped and the error wraps ErrDeviceUnavailable. A Stop
// requested while the session was stopped cancels this start: the session
// stays Stopped and Start returns nil.
func (s *Session) Start(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if s.State() != StateStopped {
		return nil
	}
	if s.stopReq.Swap(false) {
		s.logger.Info("start cancelled by pending stop")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.setState(StateStarting)

	if err := s.deps.Source.Open(ctx); err != nil {
		_ = s.deps.Source.Release()
		s.setState(StateStopped)
		s.logger.Error("frame source unavailable", "error", err)
		s.emit(ctx, models.Status{Kind: models.StatusDeviceUnavailable, Message: err.Error()})
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s.debounce.Reset()
	s.challenge.Clear()
	s.setState(StateRunning)

	if s.stopReq.Load() {
		s.shutdown(ctx, models.Status{Kind: models.StatusStopped})
		return nil
	}

	s.logger.Info("session started")
	s.emit(ctx, models.Status{Kind: models.StatusIdle})
	return nil
}

// Stop ends the session. If a tick is in flight, its result is discarded
// and that tick performs the cleanup before it returns; otherwise cleanup
// happens here. On a stopped session the request stays pending and
// cancels the next Start. Safe to call from any goroutine.
func (s *Session) Stop() {
	s.stopReq.Store(true)
	if s.tickMu.TryLock() {
		defer s.tickMu.Unlock()
		s.shutdown(context.Background(), models.Status{Kind: models.StatusStopped})
	}
}

// halt stops a running session without leaving a pending stop behind.
func (s *Session) halt() {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	s.shutdown(context.Background(), models.Status{Kind: models.StatusStopped})
}

// shutdown releases the source, clears all per-session state and consumes
// the stop request. tickMu must be held.
func (s *Session) shutdown(ctx context.Context, final models.Status) {
	if s.State() == StateStopped {
		return
	}
	s.debounce.Reset()
	s.challenge.Clear()
	if err := s.deps.Source.Release(); err != nil {
		s.logger.Warn("release frame source", "error", err)
	}
	s.setState(StateStopped)
	s.stopReq.Store(false)
	s.logger.Info("session stopped", "status", final.Kind)
	s.emit(ctx, final)
}

// stopping reports whether the current tick must discard its work.
func (s *Session) stopping(ctx context.Context) bool {
	return s.stopReq.Load() || ctx.Err() != nil
}

// Run starts the session and ticks it until ctx is done or Stop is called.
// Missed ticks are dropped, so a slow extraction never builds a backlog.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if s.State() == StateStopped {
		return nil
	}

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.halt()
			return nil
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				if errors.Is(err, ErrNotRunning) {
					return nil
				}
				if ctx.Err() != nil {
					s.halt()
					return nil
				}
				return err
			}
			if s.State() == StateStopped {
				return nil
			}
		}
	}
}

// Tick performs one sequential step of the loop.
func (s *Session) Tick(ctx context.Context) error {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()
	// A Stop that arrived mid-tick is completed before the lock is released.
	defer func() {
		if s.stopReq.Load() {
			s.shutdown(ctx, models.Status{Kind: models.StatusStopped})
		}
	}()

	if s.stopReq.Load() {
		s.shutdown(ctx, models.Status{Kind: models.StatusStopped})
		return ErrNotRunning
	}

	s.mu.Lock()
	state, until := s.state, s.pausedUntil
	s.mu.Unlock()

	now := s.clock.Now()
	switch state {
	case StateRunning:
	case StatePaused:
		if now.Before(until) {
			return nil
		}
		s.setState(StateRunning)
		s.emit(ctx, models.Status{Kind: models.StatusIdle})
	default:
		return ErrNotRunning
	}

	if ch, ok := s.challenge.Active(); ok && s.challenge.Expire(now) {
		observability.ChallengesTotal.WithLabelValues(ch.Kind.String(), "expired").Inc()
		s.debounce.Reset()
		s.logger.Debug("challenge expired", "kind", ch.Kind)
		s.emit(ctx, models.Status{Kind: models.StatusChallengeExpired, Challenge: ch.Kind.String()})
		return nil
	}

	frame, err := s.deps.Source.NextFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.shutdown(ctx, models.Status{Kind: models.StatusDeviceUnavailable, Message: err.Error()})
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if frame == nil {
		return nil
	}
	observability.FramesProcessed.WithLabelValues(s.id).Inc()

	det, err := s.deps.Extractor.Detect(ctx, frame)
	if s.stopping(ctx) {
		s.shutdown(ctx, models.Status{Kind: models.StatusStopped})
		return nil
	}
	if err != nil {
		return s.handleExtractionError(ctx, err)
	}
	observability.FacesDetected.WithLabelValues(s.id, "single").Inc()

	records, err := s.deps.Templates.ListEnrolled(ctx)
	if err != nil {
		s.logger.Warn("list enrolled templates", "error", err)
		records = nil
	}

	res := s.matcher.Match(det.Descriptor, records)
	if res.Anomalies > 0 {
		observability.DescriptorAnomalies.Add(float64(res.Anomalies))
		s.logger.Warn("descriptor length mismatch", "records", res.Anomalies, "probe_len", len(det.Descriptor))
	}

	cand := res.Candidate
	switch {
	case !res.Found || cand.Band == matcher.BandNoMatch:
		s.debounce.Advance("", false)
		s.emit(ctx, models.Status{Kind: models.StatusUnknown, Distance: cand.Distance})
		return nil
	case cand.Band == matcher.BandPossible:
		s.debounce.Advance(cand.SubjectID, false)
		s.emit(ctx, models.Status{
			Kind:      models.StatusPossibleMatch,
			SubjectID: cand.SubjectID,
			Name:      cand.Name,
			Distance:  cand.Distance,
		})
		return nil
	}

	ch, active := s.challenge.Active()
	if !active {
		ch = s.challenge.Issue(now)
		observability.ChallengesTotal.WithLabelValues(ch.Kind.String(), "issued").Inc()
		s.emit(ctx, awaiting(ch, cand))
	}

	passed := s.challenge.Evaluate(now, det.Landmarks)
	out := s.debounce.Advance(cand.SubjectID, passed)

	switch out.Kind {
	case debounce.Reset:
		if active {
			s.emit(ctx, awaiting(ch, cand))
		}
	case debounce.Progressing:
		s.emit(ctx, models.Status{
			Kind:      models.StatusProgressing,
			SubjectID: cand.SubjectID,
			Name:      cand.Name,
			Challenge: ch.Kind.String(),
			Count:     out.Count,
			Distance:  cand.Distance,
		})
	case debounce.Confirmed:
		s.confirm(ctx, cand, frame, now)
	}
	return nil
}

func awaiting(ch liveness.Challenge, cand matcher.Candidate) models.Status {
	return models.Status{
		Kind:      models.StatusAwaitingChallenge,
		SubjectID: cand.SubjectID,
		Name:      cand.Name,
		Challenge: ch.Kind.String(),
		Distance:  cand.Distance,
		Message:   ch.Kind.Prompt(),
	}
}

func (s *Session) handleExtractionError(ctx context.Context, err error) error {
	s.debounce.Reset()
	switch {
	case errors.Is(err, ErrNoFace):
		observability.FacesDetected.WithLabelValues(s.id, "none").Inc()
		s.emit(ctx, models.Status{Kind: models.StatusNoFace})
	case errors.Is(err, ErrMultipleFaces):
		observability.FacesDetected.WithLabelValues(s.id, "multiple").Inc()
		s.emit(ctx, models.Status{Kind: models.StatusMultipleFaces, Message: "Only one person in frame, please"})
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		observability.FacesDetected.WithLabelValues(s.id, "error").Inc()
		s.logger.Error("descriptor extraction failed", "error", err)
		s.emit(ctx, models.Status{Kind: models.StatusExtractionFailed, Message: err.Error()})
	}
	return nil
}

// confirm records the confirmed subject. A successful or duplicate write
// pauses the session; a failed write does not.
func (s *Session) confirm(ctx context.Context, cand matcher.Candidate, frame *models.Frame, now time.Time) {
	if s.stopping(ctx) {
		s.shutdown(ctx, models.Status{Kind: models.StatusStopped})
		return
	}

	ev, err := s.deps.Recorder.TryRecord(ctx, attendance.Request{
		SubjectID:   cand.SubjectID,
		SubjectName: cand.Name,
		Distance:    cand.Distance,
		Timestamp:   now,
		SessionID:   s.id,
		Snapshot:    frame.JPEG,
	})

	s.challenge.Clear()
	s.debounce.Reset()

	base := models.Status{SubjectID: cand.SubjectID, Name: cand.Name, Distance: cand.Distance}
	switch {
	case err == nil:
		base.Kind = models.StatusConfirmed
		base.EventID = ev.ID.String()
		base.Message = "Marked " + displayName(cand)
		s.emit(ctx, base)
		s.pause(now)
	case errors.Is(err, attendance.ErrAlreadyMarkedToday):
		base.Kind = models.StatusAlreadyMarkedToday
		base.Message = displayName(cand) + " already checked in today"
		s.emit(ctx, base)
		s.pause(now)
	default:
		s.logger.Error("record attendance", "subject_id", cand.SubjectID, "error", err)
		base.Kind = models.StatusRecordFailed
		base.Message = err.Error()
		s.emit(ctx, base)
	}
}

func (s *Session) pause(now time.Time) {
	s.mu.Lock()
	s.state = StatePaused
	s.pausedUntil = now.Add(s.cfg.PauseAfterMark)
	s.mu.Unlock()
	observability.SessionState.WithLabelValues(s.id).Set(float64(StatePaused))
}

func displayName(c matcher.Candidate) string {
	if c.Name != "" {
		return c.Name
	}
	return c.SubjectID
}
