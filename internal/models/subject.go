package models

import "time"

// EnrollmentRecord is one enrolled subject with its reference descriptors.
type EnrollmentRecord struct {
	SubjectID   string       `json:"subject_id" db:"subject_id"`
	DisplayName string       `json:"display_name" db:"display_name"`
	References  []Descriptor `json:"-"`
}

// Subject is the listing view of an enrolled subject.
type Subject struct {
	SubjectID      string    `json:"subject_id" db:"subject_id"`
	DisplayName    string    `json:"display_name" db:"display_name"`
	ReferenceCount int       `json:"reference_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
