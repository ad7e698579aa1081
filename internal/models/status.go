package models

import "time"

type StatusKind string

const (
	StatusIdle               StatusKind = "idle"
	StatusAwaitingChallenge  StatusKind = "awaiting_challenge"
	StatusChallengeExpired   StatusKind = "challenge_expired"
	StatusProgressing        StatusKind = "progressing"
	StatusConfirmed          StatusKind = "confirmed"
	StatusAlreadyMarkedToday StatusKind = "already_marked_today"
	StatusNoFace             StatusKind = "no_face"
	StatusMultipleFaces      StatusKind = "multiple_faces"
	StatusDeviceUnavailable  StatusKind = "device_unavailable"
	StatusPossibleMatch      StatusKind = "possible_match"
	StatusUnknown            StatusKind = "unknown"
	StatusExtractionFailed   StatusKind = "extraction_failed"
	StatusRecordFailed       StatusKind = "record_failed"
	StatusStopped            StatusKind = "stopped"
)

// Status is one observable transition of a camera session.
type Status struct {
	Kind      StatusKind `json:"kind"`
	SessionID string     `json:"session_id"`
	SubjectID string     `json:"subject_id,omitempty"`
	Name      string     `json:"name,omitempty"`
	Challenge string     `json:"challenge,omitempty"`
	Count     int        `json:"count,omitempty"`
	Distance  float64    `json:"distance,omitempty"`
	EventID   string     `json:"event_id,omitempty"`
	Message   string     `json:"message,omitempty"`
	Time      time.Time  `json:"time"`
}
