// Package testutil builds synthetic biometric fixtures for tests.
package testutil

import "github.com/your-org/rollcall/internal/models"

const (
	OpenEAR   = 0.30
	ClosedEAR = 0.10
)

// Landmarks builds a 68-point face whose eyes have the given aspect ratio and
// whose eye midpoint sits turn pixels to the right of the nose.
func Landmarks(ear, turn float64) models.Landmarks {
	l := make(models.Landmarks, models.LandmarkCount)
	for i := range l {
		l[i] = models.Point{X: 115, Y: 150}
	}

	h := 15 * ear // eye width is 30, so EAR = 4h/60
	eye := func(start int, x0 float64) {
		const y = 100.0
		l[start+0] = models.Point{X: x0, Y: y}
		l[start+1] = models.Point{X: x0 + 10, Y: y - h}
		l[start+2] = models.Point{X: x0 + 20, Y: y - h}
		l[start+3] = models.Point{X: x0 + 30, Y: y}
		l[start+4] = models.Point{X: x0 + 20, Y: y + h}
		l[start+5] = models.Point{X: x0 + 10, Y: y + h}
	}
	eye(36, 70)
	eye(42, 130)

	// Eye midpoint is (70 + 160) / 2 = 115.
	for i := 27; i <= 35; i++ {
		l[i] = models.Point{X: 115 - turn, Y: 110 + float64(i-27)*3}
	}
	return l
}

// Blinking returns a frontal face with closed eyes.
func Blinking() models.Landmarks { return Landmarks(ClosedEAR, 0) }

// Frontal returns a frontal face with open eyes.
func Frontal() models.Landmarks { return Landmarks(OpenEAR, 0) }

// TurnedLeft returns a face with open eyes turned to the subject's left.
func TurnedLeft() models.Landmarks { return Landmarks(OpenEAR, 12) }

// Descriptor returns a descriptor of length dim offset by x along the first axis.
func Descriptor(dim int, x float32) models.Descriptor {
	d := make(models.Descriptor, dim)
	d[0] = x
	return d
}
