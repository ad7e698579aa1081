package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/rollcall/internal/models"
)

var day1 = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func TestMemoryStore_Enrollment(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.AddReferences(ctx, "S2", "Bob", []models.Descriptor{{1, 2}}))
	require.NoError(t, m.AddReferences(ctx, "S1", "Ada", []models.Descriptor{{0, 1}, {0, 2}}))
	require.NoError(t, m.AddReferences(ctx, "S3", "Cy", nil))

	recs, err := m.ListEnrolled(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 2, "subjects without references are not enrolled")
	assert.Equal(t, "S1", recs[0].SubjectID)
	assert.Len(t, recs[0].References, 2)

	subs, err := m.ListSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, "Ada", subs[0].DisplayName)
	assert.Equal(t, 2, subs[0].ReferenceCount)
	assert.Zero(t, subs[2].ReferenceCount)
}

func TestMemoryStore_RecordOncePerDay(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	ev := &models.AttendanceEvent{SubjectID: "S1", Day: day1}
	require.NoError(t, m.Record(ctx, ev))
	assert.NotEqual(t, uuid.Nil, ev.ID)

	has, err := m.HasEventForDay(ctx, "S1", day1)
	require.NoError(t, err)
	assert.True(t, has)

	err = m.Record(ctx, &models.AttendanceEvent{SubjectID: "S1", Day: day1})
	assert.ErrorIs(t, err, ErrDuplicateEvent)

	require.NoError(t, m.Record(ctx, &models.AttendanceEvent{SubjectID: "S1", Day: day1.AddDate(0, 0, 1)}))

	got, err := m.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "S1", got.SubjectID)

	_, err = m.GetEvent(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListEventsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	for _, id := range []string{"S3", "S1", "S2"} {
		require.NoError(t, m.Record(ctx, &models.AttendanceEvent{SubjectID: id, Day: day1}))
	}
	require.NoError(t, m.Record(ctx, &models.AttendanceEvent{SubjectID: "S1", Day: day1.AddDate(0, 0, -1)}))

	evs, err := m.ListEvents(ctx, day1)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, []string{"S3", "S1", "S2"}, []string{evs[0].SubjectID, evs[1].SubjectID, evs[2].SubjectID})
}

func TestMemoryStore_ConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		oks int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Record(ctx, &models.AttendanceEvent{SubjectID: "S1", Day: day1}); err == nil {
				mu.Lock()
				oks++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	evs, err := m.ListEvents(ctx, day1)
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestMemorySnapshots(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySnapshots()

	require.NoError(t, s.PutSnapshot(ctx, "a.jpg", []byte{0xff, 0xd8}))
	data, err := s.GetSnapshot(ctx, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, data)
	assert.Equal(t, []string{"a.jpg"}, s.Keys())

	require.NoError(t, s.DeleteSnapshot(ctx, "a.jpg"))
	_, err = s.GetSnapshot(ctx, "a.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}
