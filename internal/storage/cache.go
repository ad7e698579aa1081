package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/your-org/rollcall/internal/models"
)

// EnrolledLister loads the full set of enrollment records.
type EnrolledLister interface {
	ListEnrolled(ctx context.Context) ([]models.EnrollmentRecord, error)
}

// TemplateCache serves a snapshot of the enrolled templates and reloads it
// from the backing store at most once per refresh interval.
type TemplateCache struct {
	src     EnrolledLister
	refresh time.Duration
	now     func() time.Time

	mu       sync.Mutex
	records  []models.EnrollmentRecord
	loadedAt time.Time
	loaded   bool
}

func NewTemplateCache(src EnrolledLister, refresh time.Duration) *TemplateCache {
	return &TemplateCache{src: src, refresh: refresh, now: time.Now}
}

// ListEnrolled returns the cached records, reloading them when stale. If a
// reload fails and an earlier snapshot exists, the old snapshot is served.
func (c *TemplateCache) ListEnrolled(ctx context.Context) ([]models.EnrollmentRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.loaded && now.Sub(c.loadedAt) < c.refresh {
		return c.records, nil
	}

	records, err := c.src.ListEnrolled(ctx)
	if err != nil {
		if c.loaded {
			slog.Warn("template reload failed, serving cached snapshot", "error", err, "age", now.Sub(c.loadedAt))
			return c.records, nil
		}
		return nil, err
	}

	c.records = records
	c.loadedAt = now
	c.loaded = true
	return records, nil
}

// Invalidate forces the next ListEnrolled to reload.
func (c *TemplateCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}
