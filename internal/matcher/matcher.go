// Package matcher compares a probe descriptor against enrolled templates.
package matcher

import (
	"errors"
	"fmt"
	"math"

	"github.com/your-org/rollcall/internal/models"
)

const (
	DefaultAutoThreshold    = 0.50
	DefaultConfirmThreshold = 0.58
)

// ErrLengthMismatch is returned when two descriptors have different lengths.
var ErrLengthMismatch = errors.New("descriptor length mismatch")

// Band classifies a match distance.
type Band int

const (
	BandNoMatch Band = iota
	BandPossible
	BandAuto
)

func (b Band) String() string {
	switch b {
	case BandAuto:
		return "auto"
	case BandPossible:
		return "possible"
	default:
		return "no_match"
	}
}

// Candidate is the closest enrolled subject for one probe.
type Candidate struct {
	SubjectID string
	Name      string
	Distance  float64 // average Euclidean distance over the subject's references
	Band      Band
}

// Result is the outcome of matching one probe.
type Result struct {
	Candidate Candidate
	Found     bool // false when no record could be compared
	Anomalies int  // records skipped because of a descriptor length mismatch
}

// Matcher holds the band thresholds. It has no mutable state.
type Matcher struct {
	auto    float64
	confirm float64
}

// New returns a matcher with the given thresholds.
func New(auto, confirm float64) (*Matcher, error) {
	if auto <= 0 || confirm <= 0 {
		return nil, fmt.Errorf("thresholds must be positive: auto=%v confirm=%v", auto, confirm)
	}
	if auto > confirm {
		return nil, fmt.Errorf("auto threshold %v exceeds confirm threshold %v", auto, confirm)
	}
	return &Matcher{auto: auto, confirm: confirm}, nil
}

// Classify maps a distance to its band.
func (m *Matcher) Classify(distance float64) Band {
	switch {
	case distance <= m.auto:
		return BandAuto
	case distance <= m.confirm:
		return BandPossible
	default:
		return BandNoMatch
	}
}

// Match returns the record with the lowest average distance to probe.
func (m *Matcher) Match(probe models.Descriptor, records []models.EnrollmentRecord) Result {
	var res Result
	best := math.Inf(1)

	for _, rec := range records {
		avg, err := averageDistance(probe, rec.References)
		if err != nil {
			if errors.Is(err, ErrLengthMismatch) {
				res.Anomalies++
			}
			continue
		}
		if avg < best {
			best = avg
			res.Found = true
			res.Candidate = Candidate{
				SubjectID: rec.SubjectID,
				Name:      rec.DisplayName,
				Distance:  avg,
			}
		}
	}

	if res.Found {
		res.Candidate.Band = m.Classify(res.Candidate.Distance)
	}
	return res
}

func averageDistance(probe models.Descriptor, refs []models.Descriptor) (float64, error) {
	if len(refs) == 0 {
		return 0, errors.New("no reference descriptors")
	}
	var sum float64
	for _, ref := range refs {
		d, err := Euclidean(probe, ref)
		if err != nil {
			return 0, err
		}
		sum += d
	}
	return sum / float64(len(refs)), nil
}

// Euclidean computes the L2 distance between two descriptors.
func Euclidean(a, b models.Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}
