//go:build integration

package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/your-org/rollcall/internal/models"
)

func setupPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "rollcall",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker not available, skipping integration test: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/rollcall?sslmode=disable", host, port.Port())
	require.NoError(t, Migrate(ctx, dsn))

	version, err := MigrationVersion(ctx, dsn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	store, err := NewPostgresStoreDSN(ctx, dsn, 5)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestPostgresStore(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("enrollment", func(t *testing.T) {
		require.NoError(t, store.AddReferences(ctx, "S1", "Ada", []models.Descriptor{{0.1, 0.2, 0.3}, {0.2, 0.2, 0.3}}))
		require.NoError(t, store.AddReferences(ctx, "S2", "Bob", []models.Descriptor{{0.9, 0.1, 0.0}}))
		require.NoError(t, store.AddReferences(ctx, "S3", "Cy", nil))

		recs, err := store.ListEnrolled(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "S1", recs[0].SubjectID)
		assert.Equal(t, models.Descriptor{0.1, 0.2, 0.3}, recs[0].References[0])

		subs, err := store.ListSubjects(ctx)
		require.NoError(t, err)
		require.Len(t, subs, 3)
		assert.Equal(t, 2, subs[0].ReferenceCount)
	})

	t.Run("record once per day", func(t *testing.T) {
		ev := &models.AttendanceEvent{
			SubjectID: "S1", SubjectName: "Ada", Day: day,
			Timestamp: day.Add(9 * time.Hour), Confidence: 0.7, Distance: 0.3,
			Method: models.MethodFaceChallenge,
		}
		require.NoError(t, store.Record(ctx, ev))

		has, err := store.HasEventForDay(ctx, "S1", day)
		require.NoError(t, err)
		assert.True(t, has)

		err = store.Record(ctx, &models.AttendanceEvent{SubjectID: "S1", Day: day, Timestamp: day, Method: models.MethodFaceChallenge})
		assert.ErrorIs(t, err, ErrDuplicateEvent)

		got, err := store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", got.SubjectName)
		assert.True(t, got.Day.Equal(day))
	})

	t.Run("concurrent record", func(t *testing.T) {
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			oks int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Record(ctx, &models.AttendanceEvent{SubjectID: "S2", Day: day, Timestamp: day, Method: models.MethodFaceChallenge})
				if err == nil {
					mu.Lock()
					oks++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, oks)
	})

	t.Run("list in insertion order", func(t *testing.T) {
		evs, err := store.ListEvents(ctx, day)
		require.NoError(t, err)
		require.Len(t, evs, 2)
		assert.Equal(t, "S1", evs[0].SubjectID)
		assert.Equal(t, "S2", evs[1].SubjectID)
	})
}
