package matcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/rollcall/internal/models"
)

func newDefault(t *testing.T) *Matcher {
	t.Helper()
	m, err := New(DefaultAutoThreshold, DefaultConfirmThreshold)
	require.NoError(t, err)
	return m
}

// vec returns a 4-d descriptor offset from the origin along the first axis.
func vec(x float32) models.Descriptor {
	return models.Descriptor{x, 0, 0, 0}
}

func TestEuclidean(t *testing.T) {
	d, err := Euclidean(models.Descriptor{0, 0}, models.Descriptor{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)

	_, err = Euclidean(models.Descriptor{0, 0}, models.Descriptor{1, 2, 3})
	assert.ErrorIs(t, err, ErrLengthMismatch)
}

func TestEuclidean_Symmetric(t *testing.T) {
	pairs := [][2]models.Descriptor{
		{{0.1, -0.7, 0.33}, {0.9, 0.2, -0.4}},
		{{1e-3, 2e-3, 3e-3}, {-5, 7, 11}},
		{{0, 0, 0}, {0, 0, 0}},
	}
	for _, p := range pairs {
		ab, err := Euclidean(p[0], p[1])
		require.NoError(t, err)
		ba, err := Euclidean(p[1], p[0])
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
	}
}

func TestNew_RejectsInvertedThresholds(t *testing.T) {
	_, err := New(0.6, 0.5)
	assert.Error(t, err)
	_, err = New(0, 0.5)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	m := newDefault(t)
	tests := []struct {
		name     string
		distance float64
		want     Band
	}{
		{"zero", 0, BandAuto},
		{"well inside auto", 0.30, BandAuto},
		{"auto boundary", 0.50, BandAuto},
		{"just above auto", 0.5001, BandPossible},
		{"possible", 0.55, BandPossible},
		{"confirm boundary", 0.58, BandPossible},
		{"just above confirm", 0.5801, BandNoMatch},
		{"far", 1.2, BandNoMatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, m.Classify(tc.distance))
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	m := newDefault(t)
	prev := m.Classify(0)
	for d := 0.0; d <= 1.5; d += 0.001 {
		b := m.Classify(d)
		// Bands are ordered Auto > Possible > NoMatch, so they may only decrease.
		assert.LessOrEqual(t, int(b), int(prev), "distance %v", d)
		prev = b
	}
}

func TestMatch_AveragesReferences(t *testing.T) {
	m := newDefault(t)
	records := []models.EnrollmentRecord{
		// distances 0.1 and 0.9 -> average 0.5; the minimum would be 0.1
		{SubjectID: "S1", DisplayName: "Ada", References: []models.Descriptor{vec(0.1), vec(0.9)}},
		// single reference at 0.45
		{SubjectID: "S2", DisplayName: "Bob", References: []models.Descriptor{vec(0.45)}},
	}

	res := m.Match(vec(0), records)
	require.True(t, res.Found)
	assert.Equal(t, "S2", res.Candidate.SubjectID)
	assert.Equal(t, "Bob", res.Candidate.Name)
	assert.InDelta(t, 0.45, res.Candidate.Distance, 1e-6)
	assert.Equal(t, BandAuto, res.Candidate.Band)
	assert.Zero(t, res.Anomalies)
}

func TestMatch_Bands(t *testing.T) {
	m := newDefault(t)
	tests := []struct {
		name string
		ref  float32
		want Band
	}{
		{"auto", 0.30, BandAuto},
		{"possible", 0.55, BandPossible},
		{"no match", 0.70, BandNoMatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := m.Match(vec(0), []models.EnrollmentRecord{
				{SubjectID: "S1", References: []models.Descriptor{vec(tc.ref)}},
			})
			require.True(t, res.Found)
			assert.Equal(t, tc.want, res.Candidate.Band)
		})
	}
}

func TestMatch_NoRecords(t *testing.T) {
	m := newDefault(t)
	res := m.Match(vec(0), nil)
	assert.False(t, res.Found)
	assert.Equal(t, BandNoMatch, res.Candidate.Band)
	assert.Empty(t, res.Candidate.SubjectID)
}

func TestMatch_LengthMismatchSkipsRecord(t *testing.T) {
	m := newDefault(t)
	records := []models.EnrollmentRecord{
		{SubjectID: "old-model", References: []models.Descriptor{{0, 0}}},
		{SubjectID: "mixed", References: []models.Descriptor{vec(0.1), {0, 0, 0}}},
		{SubjectID: "S1", References: []models.Descriptor{vec(0.4)}},
	}

	res := m.Match(vec(0), records)
	require.True(t, res.Found)
	assert.Equal(t, "S1", res.Candidate.SubjectID)
	assert.Equal(t, 2, res.Anomalies)
}

func TestMatch_OnlyMismatchedRecords(t *testing.T) {
	m := newDefault(t)
	res := m.Match(vec(0), []models.EnrollmentRecord{
		{SubjectID: "old-model", References: []models.Descriptor{{0, 0}}},
	})
	assert.False(t, res.Found)
	assert.Equal(t, 1, res.Anomalies)
	assert.Equal(t, BandNoMatch, res.Candidate.Band)
}

func TestMatch_Deterministic(t *testing.T) {
	m := newDefault(t)
	records := []models.EnrollmentRecord{
		{SubjectID: "S1", References: []models.Descriptor{vec(0.2), vec(0.3)}},
		{SubjectID: "S2", References: []models.Descriptor{vec(0.25)}},
	}
	first := m.Match(vec(0), records)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, m.Match(vec(0), records))
	}
	assert.False(t, math.IsInf(first.Candidate.Distance, 0))
}
