package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/rollcall/internal/models"
)

func TestParseDescriptors(t *testing.T) {
	refs, err := parseDescriptors(strings.NewReader(`[[0.1, 0.2, 0.3], [0.3, 0.2, 0.1]]`))
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, models.Descriptor{0.1, 0.2, 0.3}, refs[0])

	_, err = parseDescriptors(strings.NewReader(`{"not": "an array"}`))
	assert.Error(t, err)
}

func TestReadDescriptorFile_Stdin(t *testing.T) {
	refs, err := readDescriptorFile("-", strings.NewReader(`[[1, 2]]`))
	require.NoError(t, err)
	assert.Equal(t, []models.Descriptor{{1, 2}}, refs)

	_, err = readDescriptorFile("/nonexistent/refs.json", nil)
	assert.Error(t, err)
}

func TestCheckDescriptors(t *testing.T) {
	assert.NoError(t, checkDescriptors([]models.Descriptor{{1, 2, 3}}, 3))
	assert.NoError(t, checkDescriptors([]models.Descriptor{{1, 2, 3}}, 0))
	assert.Error(t, checkDescriptors(nil, 3))
	assert.ErrorContains(t, checkDescriptors([]models.Descriptor{{1, 2, 3}, {1, 2}}, 3), "descriptor 1")
}

func TestParseDay(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC) // already March 3rd in Tokyo

	d, err := parseDay("", now, tokyo)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)))

	d, err = parseDay("2026-01-15", now, tokyo)
	require.NoError(t, err)
	assert.True(t, d.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))

	_, err = parseDay("15.01.2026", now, tokyo)
	assert.Error(t, err)
}

func TestPrintEvents(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, printEvents(&buf, day, nil, time.UTC))
	assert.Contains(t, buf.String(), "No check-ins.")

	buf.Reset()
	events := []models.AttendanceEvent{{
		ID:          uuid.New(),
		SubjectID:   "S1",
		SubjectName: "Ada",
		Timestamp:   time.Date(2026, 3, 2, 8, 15, 30, 0, time.UTC),
		Confidence:  0.7,
		SessionID:   "front-desk",
	}}
	require.NoError(t, printEvents(&buf, day, events, time.UTC))
	out := buf.String()
	assert.Contains(t, out, "Attendance for 2026-03-02")
	assert.Contains(t, out, "08:15:30")
	assert.Contains(t, out, "0.70")
	assert.Contains(t, out, "front-desk")
}

func TestPrintSubjects(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSubjects(&buf, []models.Subject{
		{SubjectID: "S1", DisplayName: "Ada", ReferenceCount: 2},
	}))
	assert.Contains(t, buf.String(), "Ada")
	assert.Contains(t, buf.String(), "1 subjects")
}
