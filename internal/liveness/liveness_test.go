package liveness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/testutil"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestEyeAspectRatio(t *testing.T) {
	tests := []struct {
		name string
		ear  float64
	}{
		{"open", 0.30},
		{"half", 0.20},
		{"closed", 0.10},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := testutil.Landmarks(tc.ear, 0)
			assert.InDelta(t, tc.ear, EyeAspectRatio(l.LeftEye()), 1e-9)
			assert.InDelta(t, tc.ear, MeanEAR(l), 1e-9)
		})
	}
}

func TestEyeAspectRatio_Degenerate(t *testing.T) {
	eye := make([]models.Point, 6)
	assert.Equal(t, 1.0, EyeAspectRatio(eye))
	assert.Equal(t, 1.0, EyeAspectRatio(nil))
	assert.Equal(t, 1.0, MeanEAR(models.Landmarks{}))
}

func TestHeadTurnOffset(t *testing.T) {
	assert.InDelta(t, 0, HeadTurnOffset(testutil.Frontal()), 1e-9)
	assert.InDelta(t, 12, HeadTurnOffset(testutil.TurnedLeft()), 1e-9)
	assert.InDelta(t, -8, HeadTurnOffset(testutil.Landmarks(0.3, -8)), 1e-9)
	assert.Zero(t, HeadTurnOffset(nil))
}

func TestIssue_UsesPickerAndTimeout(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(FixedPicker(KindLookLeft)))
	assert.Equal(t, StateIdle, c.State())

	ch := c.Issue(t0)
	assert.Equal(t, KindLookLeft, ch.Kind)
	assert.Equal(t, t0, ch.IssuedAt)
	assert.Equal(t, t0.Add(3500*time.Millisecond), ch.ExpiresAt)
	assert.Equal(t, StateAwaiting, c.State())

	active, ok := c.Active()
	require.True(t, ok)
	assert.Equal(t, ch, active)
}

func TestIssue_KeepsActiveChallenge(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(FixedPicker(KindBlink)))
	first := c.Issue(t0)
	second := c.Issue(t0.Add(time.Second))
	assert.Equal(t, first, second)
}

type seqPicker struct{ n int }

func (p *seqPicker) IntN(n int) int {
	v := p.n % n
	p.n++
	return v
}

func TestIssue_CoversBothKinds(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(&seqPicker{}))
	seen := map[Kind]bool{}
	for i := 0; i < 4; i++ {
		seen[c.Issue(t0).Kind] = true
		c.Clear()
	}
	assert.True(t, seen[KindBlink])
	assert.True(t, seen[KindLookLeft])
}

func TestEvaluate_Blink(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(FixedPicker(KindBlink)))
	c.Issue(t0)

	assert.False(t, c.Evaluate(t0, testutil.Frontal()))
	assert.Equal(t, StateAwaiting, c.State())

	assert.True(t, c.Evaluate(t0.Add(100*time.Millisecond), testutil.Blinking()))
	assert.Equal(t, StateSucceeded, c.State())

	// Not latched: the next open-eyed frame fails again.
	assert.False(t, c.Evaluate(t0.Add(200*time.Millisecond), testutil.Frontal()))
	assert.Equal(t, StateAwaiting, c.State())

	// A turned head does not satisfy a blink.
	assert.False(t, c.Evaluate(t0.Add(300*time.Millisecond), testutil.TurnedLeft()))
}

func TestEvaluate_LookLeft(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(FixedPicker(KindLookLeft)))
	c.Issue(t0)

	assert.False(t, c.Evaluate(t0, testutil.Frontal()))
	assert.False(t, c.Evaluate(t0, testutil.Blinking()))
	assert.False(t, c.Evaluate(t0, testutil.Landmarks(testutil.OpenEAR, 6)), "offset must exceed the threshold")
	assert.True(t, c.Evaluate(t0, testutil.TurnedLeft()))
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(FixedPicker(KindBlink)), WithEARThreshold(0.25))
	c.Issue(t0)
	assert.True(t, c.Evaluate(t0, testutil.Landmarks(0.2, 0)))

	c = New(DefaultTimeout, WithPicker(FixedPicker(KindLookLeft)), WithLookLeftOffset(20))
	c.Issue(t0)
	assert.False(t, c.Evaluate(t0, testutil.TurnedLeft()))
}

func TestEvaluate_WithoutChallengeOrLandmarks(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(FixedPicker(KindBlink)))
	assert.False(t, c.Evaluate(t0, testutil.Blinking()))

	c.Issue(t0)
	assert.False(t, c.Evaluate(t0, nil))
	assert.False(t, c.Evaluate(t0, models.Landmarks{{X: 1, Y: 1}}))
}

func TestExpire(t *testing.T) {
	c := New(DefaultTimeout, WithPicker(FixedPicker(KindBlink)))
	assert.False(t, c.Expire(t0), "nothing to expire")

	c.Issue(t0)
	assert.False(t, c.Expire(t0.Add(3500*time.Millisecond)), "deadline itself is still valid")
	assert.False(t, c.Evaluate(t0.Add(3600*time.Millisecond), testutil.Blinking()), "late frames never satisfy")

	assert.True(t, c.Expire(t0.Add(4*time.Second)))
	assert.Equal(t, StateExpired, c.State())
	_, ok := c.Active()
	assert.False(t, ok)

	// A fresh cycle is required to retry.
	ch := c.Issue(t0.Add(5 * time.Second))
	assert.Equal(t, t0.Add(5*time.Second), ch.IssuedAt)
	assert.Equal(t, StateAwaiting, c.State())
}

func TestClear(t *testing.T) {
	c := New(0, WithPicker(FixedPicker(KindBlink)))
	ch := c.Issue(t0)
	assert.Equal(t, t0.Add(DefaultTimeout), ch.ExpiresAt)
	c.Clear()
	assert.Equal(t, StateIdle, c.State())
	_, ok := c.Active()
	assert.False(t, ok)
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "blink", KindBlink.String())
	assert.Equal(t, "look_left", KindLookLeft.String())
	assert.Equal(t, "Please look left", KindLookLeft.Prompt())
}
