package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/your-org/rollcall/internal/models"
)

// norm is a per-channel (pixel - mean) / std normalisation.
type norm struct {
	mean [3]float32
	std  [3]float32
}

var (
	detectorNorm = norm{mean: [3]float32{127.5, 127.5, 127.5}, std: [3]float32{128, 128, 128}}
	embedderNorm = norm{mean: [3]float32{127.5, 127.5, 127.5}, std: [3]float32{127.5, 127.5, 127.5}}
	landmarkNorm = norm{mean: [3]float32{0, 0, 0}, std: [3]float32{255, 255, 255}}
)

// facePadding widens a face box on every side before cropping.
const facePadding = 0.1

func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// toCHW resizes img to w x h and lays it out as normalised planar RGB.
func toCHW(img image.Image, w, h int, n norm) []float32 {
	rgba := resize(img, w, h)
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			px := row[x*4:]
			i := y*w + x
			data[i] = (float32(px[0]) - n.mean[0]) / n.std[0]
			data[plane+i] = (float32(px[1]) - n.mean[1]) / n.std[1]
			data[2*plane+i] = (float32(px[2]) - n.mean[2]) / n.std[2]
		}
	}
	return data
}

// cropRect pads bbox by facePadding and clips it to bounds.
func cropRect(bounds image.Rectangle, bbox [4]float32) image.Rectangle {
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	padW := w * facePadding
	padH := h * facePadding
	r := image.Rect(
		int(bbox[0]-padW), int(bbox[1]-padH),
		int(bbox[2]+padW), int(bbox[3]+padH),
	)
	return r.Intersect(bounds)
}

// cropFace copies the padded face region into a new image whose origin is
// (0,0). It returns the region in frame coordinates alongside.
func cropFace(img image.Image, bbox [4]float32) (image.Image, image.Rectangle, error) {
	r := cropRect(img.Bounds(), bbox)
	if r.Empty() {
		return nil, r, fmt.Errorf("empty face region %v", bbox)
	}
	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Copy(crop, image.Point{}, img, r, draw.Src, nil)
	return crop, r, nil
}

// toFrame maps crop-normalised landmarks back into frame pixels.
func toFrame(pts models.Landmarks, r image.Rectangle) models.Landmarks {
	out := make(models.Landmarks, len(pts))
	for i, p := range pts {
		out[i] = models.Point{
			X: float64(r.Min.X) + p.X*float64(r.Dx()),
			Y: float64(r.Min.Y) + p.Y*float64(r.Dy()),
		}
	}
	return out
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
