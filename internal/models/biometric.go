package models

import (
	"image"
	"time"
)

// Descriptor is the fixed-length embedding of one detected face.
type Descriptor []float32

// Point is a landmark position in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkCount is the size of the iBUG 68-point layout produced by the landmarker.
const LandmarkCount = 68

// Landmarks holds the 68 facial landmark points of one face.
type Landmarks []Point

// Valid reports whether the landmark set has the full 68-point layout.
func (l Landmarks) Valid() bool {
	return len(l) == LandmarkCount
}

// LeftEye returns the six points of the eye on the image's left (36-41).
func (l Landmarks) LeftEye() []Point {
	return l[36:42]
}

// RightEye returns the six points of the eye on the image's right (42-47).
func (l Landmarks) RightEye() []Point {
	return l[42:48]
}

// Nose returns the nine nose points (27-35): bridge first, then the lower contour.
func (l Landmarks) Nose() []Point {
	return l[27:36]
}

// Frame is one video frame pulled from a frame source.
type Frame struct {
	Image      image.Image
	JPEG       []byte // original encoded bytes, used for snapshots
	CapturedAt time.Time
}

// Detection is the single face the extractor found in a frame.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
	Descriptor Descriptor
	Landmarks  Landmarks
}
