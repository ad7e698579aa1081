package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/rollcall/internal/api/ws"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/storage"
)

type nopPublisher struct{}

func (nopPublisher) PublishControl(queue.ControlCommand) error { return nil }

func newTestRouter(apiKey string) http.Handler {
	store := storage.NewMemoryStore()
	return NewRouter(RouterConfig{
		APIKey:     apiKey,
		Attendance: store,
		Subjects:   store,
		Snapshots:  storage.NewMemorySnapshots(),
		Control:    nopPublisher{},
		Hub:        ws.NewHub(),
		Location:   time.UTC,
	})
}

func TestRouter_APIKey(t *testing.T) {
	r := newTestRouter("secret")

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{"health is public", "/healthz", "", http.StatusOK},
		{"ready without checks", "/readyz", "", http.StatusOK},
		{"metrics is public", "/metrics", "", http.StatusOK},
		{"missing key", "/v1/subjects", "", http.StatusUnauthorized},
		{"wrong key", "/v1/subjects", "nope", http.StatusForbidden},
		{"valid key", "/v1/subjects", "secret", http.StatusOK},
		{"attendance", "/v1/attendance?day=2026-03-02", "secret", http.StatusOK},
		{"unknown route", "/v1/streams", "secret", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRouter_AuthDisabled(t *testing.T) {
	r := newTestRouter("")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/session/stop", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}
