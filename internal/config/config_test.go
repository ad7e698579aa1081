package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "database:\n  host: db\n"))
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 0.50, cfg.Matching.AutoThreshold)
	assert.Equal(t, 0.58, cfg.Matching.ConfirmThreshold)
	assert.Equal(t, 3500*time.Millisecond, cfg.Liveness.ChallengeTimeout)
	assert.Equal(t, 0.18, cfg.Liveness.EARThreshold)
	assert.Equal(t, 6.0, cfg.Liveness.LookLeftOffset)
	assert.Equal(t, 3, cfg.Confirmation.ConsecutiveRequired)
	assert.Equal(t, 1400*time.Millisecond, cfg.Confirmation.PauseAfterMark)
	assert.Equal(t, 100*time.Millisecond, cfg.Session.TickInterval)
	assert.Equal(t, "Local", cfg.Attendance.Timezone)
	assert.False(t, cfg.MinIO.Enabled())
}

func TestLoad_YAMLValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
matching:
  auto_threshold: 0.4
  confirm_threshold: 0.45
liveness:
  challenge_timeout: 5s
confirmation:
  consecutive_required: 5
attendance:
  timezone: Europe/Berlin
session:
  source_url: rtsp://cam/stream
`))
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.Matching.AutoThreshold)
	assert.Equal(t, 5*time.Second, cfg.Liveness.ChallengeTimeout)
	assert.Equal(t, 5, cfg.Confirmation.ConsecutiveRequired)
	assert.Equal(t, "rtsp://cam/stream", cfg.Session.SourceURL)

	loc, err := cfg.Attendance.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ROLLCALL_DB_HOST", "envhost")
	t.Setenv("ROLLCALL_SERVER_PORT", "9090")
	t.Setenv("ROLLCALL_AUTO_THRESHOLD", "0.3")
	t.Setenv("ROLLCALL_SESSION_ID", "gate-2")

	cfg, err := Load(writeConfig(t, "database:\n  host: filehost\n"))
	require.NoError(t, err)

	assert.Equal(t, "envhost", cfg.Database.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.3, cfg.Matching.AutoThreshold)
	assert.Equal(t, "gate-2", cfg.Session.ID)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"inverted thresholds", "matching:\n  auto_threshold: 0.7\n  confirm_threshold: 0.6\n"},
		{"negative consecutive", "confirmation:\n  consecutive_required: -1\n"},
		{"unknown timezone", "attendance:\n  timezone: Mars/Olympus\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}
