package models

import (
	"time"

	"github.com/google/uuid"
)

// MethodFaceChallenge tags events confirmed by face match plus liveness challenge.
const MethodFaceChallenge = "face+challenge"

// AttendanceEvent is a confirmed, persisted check-in.
type AttendanceEvent struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SubjectID   string    `json:"subject_id" db:"subject_id"`
	SubjectName string    `json:"subject_name" db:"subject_name"`
	Day         time.Time `json:"day" db:"day"` // calendar day in the reference zone, UTC midnight
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	Confidence  float32   `json:"confidence" db:"confidence"`
	Distance    float64   `json:"distance" db:"distance"`
	SessionID   string    `json:"session_id" db:"session_id"`
	Method      string    `json:"method" db:"method"`
	SnapshotKey string    `json:"snapshot_key,omitempty" db:"snapshot_key"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
