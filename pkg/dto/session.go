package dto

import "github.com/your-org/rollcall/internal/models"

type SessionControlRequest struct {
	SessionID string `json:"session_id"`
}

type SessionControlResponse struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

const (
	WSTypeStatus     = "status"
	WSTypeAttendance = "attendance"
)

// WSMessage is a WebSocket message for real-time session updates.
type WSMessage struct {
	Type       string              `json:"type"` // status, attendance
	SessionID  string              `json:"session_id"`
	Status     *models.Status      `json:"status,omitempty"`
	Attendance *AttendanceResponse `json:"attendance,omitempty"`
}
