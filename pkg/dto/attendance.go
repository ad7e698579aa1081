package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
)

const DayLayout = "2006-01-02"

type AttendanceResponse struct {
	ID          uuid.UUID `json:"id"`
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name"`
	Day         string    `json:"day"`
	Timestamp   string    `json:"timestamp"`
	Confidence  float32   `json:"confidence"`
	Distance    float64   `json:"distance"`
	SessionID   string    `json:"session_id"`
	Method      string    `json:"method"`
	SnapshotURL string    `json:"snapshot_url,omitempty"`
}

type AttendanceListResponse struct {
	Day    string               `json:"day"`
	Events []AttendanceResponse `json:"events"`
	Total  int                  `json:"total"`
}

// NewAttendanceResponse converts a stored event to its API form.
func NewAttendanceResponse(ev *models.AttendanceEvent) AttendanceResponse {
	r := AttendanceResponse{
		ID:          ev.ID,
		SubjectID:   ev.SubjectID,
		SubjectName: ev.SubjectName,
		Day:         ev.Day.Format(DayLayout),
		Timestamp:   ev.Timestamp.Format(time.RFC3339),
		Confidence:  ev.Confidence,
		Distance:    ev.Distance,
		SessionID:   ev.SessionID,
		Method:      ev.Method,
	}
	if ev.SnapshotKey != "" {
		r.SnapshotURL = "/v1/attendance/" + ev.ID.String() + "/snapshot"
	}
	return r
}
