// Package liveness issues and evaluates randomized anti-spoofing challenges.
package liveness

import (
	"math/rand/v2"
	"time"

	"github.com/your-org/rollcall/internal/models"
)

const (
	DefaultTimeout        = 3500 * time.Millisecond
	DefaultEARThreshold   = 0.18
	DefaultLookLeftOffset = 6.0
)

// Kind is the physical action a challenge asks for.
type Kind int

const (
	KindBlink Kind = iota
	KindLookLeft
)

var kinds = []Kind{KindBlink, KindLookLeft}

func (k Kind) String() string {
	switch k {
	case KindBlink:
		return "blink"
	case KindLookLeft:
		return "look_left"
	default:
		return "unknown"
	}
}

// Prompt is the operator-facing instruction for the challenge.
func (k Kind) Prompt() string {
	switch k {
	case KindBlink:
		return "Please blink"
	case KindLookLeft:
		return "Please look left"
	default:
		return ""
	}
}

type State int

const (
	StateIdle State = iota
	StateAwaiting
	StateSucceeded
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateAwaiting:
		return "awaiting"
	case StateSucceeded:
		return "succeeded"
	case StateExpired:
		return "expired"
	default:
		return "idle"
	}
}

// Challenge is an active liveness test.
type Challenge struct {
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Picker is the random source used to choose a challenge kind.
// *rand.Rand from math/rand/v2 satisfies it.
type Picker interface {
	IntN(n int) int
}

type globalPicker struct{}

func (globalPicker) IntN(n int) int { return rand.IntN(n) }

// FixedPicker always picks the given kind.
type FixedPicker Kind

func (p FixedPicker) IntN(n int) int {
	if int(p) >= n {
		return 0
	}
	return int(p)
}

type Option func(*Controller)

func WithPicker(p Picker) Option {
	return func(c *Controller) {
		if p != nil {
			c.picker = p
		}
	}
}

func WithEARThreshold(v float64) Option {
	return func(c *Controller) { c.earThreshold = v }
}

func WithLookLeftOffset(v float64) Option {
	return func(c *Controller) { c.lookLeftOffset = v }
}

// Controller tracks at most one active challenge for a session.
// It is not safe for concurrent use; the session loop owns it.
type Controller struct {
	timeout        time.Duration
	earThreshold   float64
	lookLeftOffset float64
	picker         Picker

	active *Challenge
	state  State
}

func New(timeout time.Duration, opts ...Option) *Controller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Controller{
		timeout:        timeout,
		earThreshold:   DefaultEARThreshold,
		lookLeftOffset: DefaultLookLeftOffset,
		picker:         globalPicker{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue starts a new challenge unless one is already active, in which case
// the active challenge is returned unchanged.
func (c *Controller) Issue(now time.Time) Challenge {
	if c.active != nil {
		return *c.active
	}
	ch := Challenge{
		Kind:      kinds[c.picker.IntN(len(kinds))],
		IssuedAt:  now,
		ExpiresAt: now.Add(c.timeout),
	}
	c.active = &ch
	c.state = StateAwaiting
	return ch
}

// Active returns the current challenge, if any.
func (c *Controller) Active() (Challenge, bool) {
	if c.active == nil {
		return Challenge{}, false
	}
	return *c.active, true
}

func (c *Controller) State() State {
	return c.state
}

// Evaluate reports whether this frame satisfies the active challenge.
// The result is computed fresh on every call.
func (c *Controller) Evaluate(now time.Time, l models.Landmarks) bool {
	if c.active == nil || now.After(c.active.ExpiresAt) || !l.Valid() {
		return false
	}

	var ok bool
	switch c.active.Kind {
	case KindBlink:
		ok = MeanEAR(l) < c.earThreshold
	case KindLookLeft:
		ok = HeadTurnOffset(l) > c.lookLeftOffset
	}

	if ok {
		c.state = StateSucceeded
	} else {
		c.state = StateAwaiting
	}
	return ok
}

// Expire clears the active challenge once its deadline has passed.
// It reports whether a challenge expired on this call.
func (c *Controller) Expire(now time.Time) bool {
	if c.active == nil || !now.After(c.active.ExpiresAt) {
		return false
	}
	c.active = nil
	c.state = StateExpired
	return true
}

// Clear drops any active challenge and returns to idle.
func (c *Controller) Clear() {
	c.active = nil
	c.state = StateIdle
}
