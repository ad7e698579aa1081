package liveness

import (
	"math"

	"github.com/your-org/rollcall/internal/models"
)

// EyeAspectRatio computes (|p1-p5| + |p2-p4|) / (2|p0-p3|) for a six-point eye.
// A degenerate eye (zero width) counts as open.
func EyeAspectRatio(eye []models.Point) float64 {
	if len(eye) != 6 {
		return 1
	}
	a := dist(eye[1], eye[5])
	b := dist(eye[2], eye[4])
	c := dist(eye[0], eye[3])
	if c == 0 {
		return 1
	}
	return (a + b) / (2 * c)
}

// MeanEAR averages the eye aspect ratio of both eyes.
func MeanEAR(l models.Landmarks) float64 {
	if !l.Valid() {
		return 1
	}
	return (EyeAspectRatio(l.LeftEye()) + EyeAspectRatio(l.RightEye())) / 2
}

// HeadTurnOffset returns how far the eye midpoint sits to the right of the nose, in pixels.
// Positive values mean the head is turned to the subject's left as seen by the camera.
func HeadTurnOffset(l models.Landmarks) float64 {
	if !l.Valid() {
		return 0
	}
	eyeMidX := (l.LeftEye()[0].X + l.RightEye()[3].X) / 2
	noseX := l.Nose()[3].X
	return eyeMidX - noseX
}

func dist(p, q models.Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}
