// Package debounce turns noisy per-frame match results into a single confirmation.
package debounce

import "fmt"

const DefaultRequired = 3

type OutcomeKind int

const (
	Reset OutcomeKind = iota
	Progressing
	Confirmed
)

func (k OutcomeKind) String() string {
	switch k {
	case Progressing:
		return "progressing"
	case Confirmed:
		return "confirmed"
	default:
		return "reset"
	}
}

// Outcome is the result of one Advance call.
type Outcome struct {
	Kind  OutcomeKind
	Count int
}

func (o Outcome) String() string {
	if o.Kind == Progressing {
		return fmt.Sprintf("%s(%d)", o.Kind, o.Count)
	}
	return o.Kind.String()
}

// Debouncer counts consecutive qualifying frames for the same subject.
type Debouncer struct {
	required    int
	lastSubject string
	count       int
}

func New(required int) *Debouncer {
	if required <= 0 {
		required = DefaultRequired
	}
	return &Debouncer{required: required}
}

// Advance feeds one frame. A frame qualifies when it carries an auto-band
// candidate whose challenge is satisfied in this frame; subjectID is the
// candidate's subject, or empty when there was none.
func (d *Debouncer) Advance(subjectID string, qualifying bool) Outcome {
	if !qualifying || subjectID == "" {
		d.lastSubject = subjectID
		d.count = 0
		return Outcome{Kind: Reset}
	}

	if subjectID != d.lastSubject {
		d.lastSubject = subjectID
		d.count = 1
	} else {
		d.count++
	}

	if d.count >= d.required {
		return Outcome{Kind: Confirmed, Count: d.count}
	}
	return Outcome{Kind: Progressing, Count: d.count}
}

// Reset clears all state, e.g. after a confirmation or when no face is found.
func (d *Debouncer) Reset() {
	d.lastSubject = ""
	d.count = 0
}

func (d *Debouncer) Count() int { return d.count }

func (d *Debouncer) LastSubject() string { return d.lastSubject }

func (d *Debouncer) Required() int { return d.required }
