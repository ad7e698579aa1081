package storage

import "errors"

var (
	// ErrDuplicateEvent is returned by Record when the subject already has an
	// event on that calendar day.
	ErrDuplicateEvent = errors.New("attendance event already exists for subject and day")
	ErrNotFound       = errors.New("not found")
)
