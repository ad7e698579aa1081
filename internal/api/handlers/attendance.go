package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/pkg/dto"
)

type AttendanceReader interface {
	ListEvents(ctx context.Context, day time.Time) ([]models.AttendanceEvent, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*models.AttendanceEvent, error)
}

type SnapshotReader interface {
	GetSnapshot(ctx context.Context, key string) ([]byte, error)
}

type AttendanceHandler struct {
	events    AttendanceReader
	snapshots SnapshotReader // nil when object storage is disabled
	loc       *time.Location
	now       func() time.Time
}

func NewAttendanceHandler(events AttendanceReader, snapshots SnapshotReader, loc *time.Location) *AttendanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceHandler{events: events, snapshots: snapshots, loc: loc, now: time.Now}
}

// List returns the events of one calendar day in check-in order.
// Without ?day= it lists today in the attendance time zone.
func (h *AttendanceHandler) List(c *gin.Context) {
	day := attendance.CalendarDay(h.now(), h.loc)
	if s := c.Query("day"); s != "" {
		d, err := time.ParseInLocation(dto.DayLayout, s, time.UTC)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
			return
		}
		day = d
	}

	events, err := h.events.ListEvents(c.Request.Context(), day)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.AttendanceResponse, 0, len(events))
	for i := range events {
		resp = append(resp, dto.NewAttendanceResponse(&events[i]))
	}

	c.JSON(http.StatusOK, dto.AttendanceListResponse{
		Day:    day.Format(dto.DayLayout),
		Events: resp,
		Total:  len(resp),
	})
}

func (h *AttendanceHandler) Get(c *gin.Context) {
	ev, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.NewAttendanceResponse(ev))
}

// Snapshot proxies the confirming frame from object storage.
func (h *AttendanceHandler) Snapshot(c *gin.Context) {
	ev, ok := h.lookup(c)
	if !ok {
		return
	}
	if ev.SnapshotKey == "" || h.snapshots == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}

	data, err := h.snapshots.GetSnapshot(c.Request.Context(), ev.SnapshotKey)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *AttendanceHandler) lookup(c *gin.Context) (*models.AttendanceEvent, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return nil, false
	}

	ev, err := h.events.GetEvent(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return ev, true
}
