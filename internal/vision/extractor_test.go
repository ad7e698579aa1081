package vision

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/session"
)

type stubDetector struct {
	faces []faceBox
	err   error
}

func (s stubDetector) Detect(image.Image) ([]faceBox, error) { return s.faces, s.err }
func (stubDetector) Close()                                  {}

type stubEmbedder struct{ lastSize image.Point }

func (s *stubEmbedder) Embed(face image.Image) (models.Descriptor, error) {
	s.lastSize = face.Bounds().Size()
	return models.Descriptor{0.6, 0.8}, nil
}
func (*stubEmbedder) Close() {}

// stubLandmarker puts every point at the centre of the crop.
type stubLandmarker struct{}

func (stubLandmarker) Landmarks(image.Image) (models.Landmarks, error) {
	pts := make(models.Landmarks, models.LandmarkCount)
	for i := range pts {
		pts[i] = models.Point{X: 0.5, Y: 0.5}
	}
	return pts, nil
}
func (stubLandmarker) Close() {}

func box(x1, y1, x2, y2, conf float32) faceBox {
	return faceBox{BBox: [4]float32{x1, y1, x2, y2}, Confidence: conf}
}

func grayFrame(w, h int) *models.Frame {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	return &models.Frame{Image: img}
}

func TestExtractor_Detect(t *testing.T) {
	emb := &stubEmbedder{}
	e := &Extractor{
		detector:   stubDetector{faces: []faceBox{box(100, 100, 200, 200, 0.9)}},
		embedder:   emb,
		landmarker: stubLandmarker{},
	}

	det, err := e.Detect(context.Background(), grayFrame(640, 480))
	require.NoError(t, err)

	assert.Equal(t, models.Descriptor{0.6, 0.8}, det.Descriptor)
	assert.Equal(t, float32(0.9), det.Confidence)
	// 10% padding on each side of a 100px box.
	assert.Equal(t, image.Pt(120, 120), emb.lastSize)
	require.True(t, det.Landmarks.Valid())
	assert.InDelta(t, 150, det.Landmarks[0].X, 1e-9)
	assert.InDelta(t, 150, det.Landmarks[0].Y, 1e-9)
}

func TestExtractor_FaceCount(t *testing.T) {
	tests := []struct {
		name  string
		faces []faceBox
		want  error
	}{
		{"none", nil, session.ErrNoFace},
		{"two", []faceBox{box(0, 0, 50, 50, 0.9), box(300, 0, 350, 50, 0.8)}, session.ErrMultipleFaces},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := &Extractor{
				detector:   stubDetector{faces: tc.faces},
				embedder:   &stubEmbedder{},
				landmarker: stubLandmarker{},
			}
			_, err := e.Detect(context.Background(), grayFrame(640, 480))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestExtractor_DetectorError(t *testing.T) {
	e := &Extractor{
		detector:   stubDetector{err: errors.New("session closed")},
		embedder:   &stubEmbedder{},
		landmarker: stubLandmarker{},
	}
	_, err := e.Detect(context.Background(), grayFrame(64, 64))
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrNoFace)
}

func TestExtractor_DecodesJPEGFrames(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	e := &Extractor{
		detector:   stubDetector{faces: []faceBox{box(10, 10, 110, 110, 0.8)}},
		embedder:   &stubEmbedder{},
		landmarker: stubLandmarker{},
	}
	_, err := e.Detect(context.Background(), &models.Frame{JPEG: buf.Bytes()})
	require.NoError(t, err)

	_, err = e.Detect(context.Background(), &models.Frame{})
	assert.Error(t, err)
}

func TestExtractor_EmbedImage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 200, 200)), nil))

	e := &Extractor{
		detector:   stubDetector{faces: []faceBox{box(20, 20, 120, 120, 0.95), box(130, 130, 190, 190, 0.6)}},
		embedder:   &stubEmbedder{},
		landmarker: stubLandmarker{},
	}
	desc, conf, err := e.EmbedImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, models.Descriptor{0.6, 0.8}, desc)
	assert.Equal(t, float32(0.95), conf)

	_, _, err = e.EmbedImage([]byte("not an image"))
	assert.Error(t, err)
}

func TestCropRect_ClipsToBounds(t *testing.T) {
	r := cropRect(image.Rect(0, 0, 100, 100), [4]float32{0, 0, 50, 50})
	assert.Equal(t, image.Rect(0, 0, 55, 55), r)

	assert.True(t, cropRect(image.Rect(0, 0, 100, 100), [4]float32{50, 50, 50, 80}).Empty())
}

func TestToCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 51, A: 255})
		}
	}
	data := toCHW(img, 2, 2, landmarkNorm)
	require.Len(t, data, 12)
	assert.InDelta(t, 1.0, data[0], 0.01)
	assert.InDelta(t, 0.0, data[4], 0.01)
	assert.InDelta(t, 0.2, data[8], 0.01)
}

func TestNMS(t *testing.T) {
	kept := nms([]faceBox{
		box(0, 0, 100, 100, 0.7),
		box(5, 5, 105, 105, 0.9),
		box(300, 300, 400, 400, 0.8),
	}, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, float32(0.8), kept[1].Confidence)
}

func TestIOU(t *testing.T) {
	assert.InDelta(t, 1.0, iou([4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}), 1e-6)
	assert.Zero(t, iou([4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}))
	assert.InDelta(t, 25.0/175.0, iou([4]float32{0, 0, 10, 10}, [4]float32{5, 5, 15, 15}), 1e-6)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := []float32{0, 0}
	normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
