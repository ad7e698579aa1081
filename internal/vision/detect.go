package vision

import (
	"fmt"
	"image"
	"math"
	"sort"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/rollcall/internal/observability"
)

// faceBox is one raw RetinaFace detection in frame pixel coordinates.
type faceBox struct {
	BBox       [4]float32    // x1, y1, x2, y2
	Confidence float32
	Keypoints  [5][2]float32 // eyes, nose tip, mouth corners
}

func (b faceBox) width() float32  { return b.BBox[2] - b.BBox[0] }
func (b faceBox) height() float32 { return b.BBox[3] - b.BBox[1] }

// Detector runs RetinaFace (det_10g) face detection using ONNX Runtime.
type Detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	iouThreshold  float32
	inputW        int
	inputH        int
}

var strides = []int{8, 16, 32}

const anchorsPerStride = 2

// NewDetector loads the RetinaFace ONNX model.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	inputW, inputH := 640, 640

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Outputs carry no batch dimension. Per stride s there are
	// (640/s)^2 * 2 anchors: 12800, 3200 and 800.
	outputs := []struct {
		name  string
		shape ort.Shape
	}{
		{"448", ort.NewShape(12800, 1)},
		{"471", ort.NewShape(3200, 1)},
		{"494", ort.NewShape(800, 1)},
		{"451", ort.NewShape(12800, 4)},
		{"474", ort.NewShape(3200, 4)},
		{"497", ort.NewShape(800, 4)},
		{"454", ort.NewShape(12800, 10)},
		{"477", ort.NewShape(3200, 10)},
		{"500", ort.NewShape(800, 10)},
	}

	names := make([]string, len(outputs))
	tensors := make([]*ort.Tensor[float32], len(outputs))
	values := make([]ort.Value, len(outputs))
	destroy := func() {
		inputTensor.Destroy()
		for _, t := range tensors {
			if t != nil {
				t.Destroy()
			}
		}
	}

	for i, spec := range outputs {
		t, err := ort.NewEmptyTensor[float32](spec.shape)
		if err != nil {
			destroy()
			return nil, fmt.Errorf("create output tensor %s: %w", spec.name, err)
		}
		names[i] = spec.name
		tensors[i] = t
		values[i] = t
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		names,
		[]ort.Value{inputTensor},
		values,
		opts,
	)
	if err != nil {
		destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: tensors,
		threshold:     threshold,
		iouThreshold:  0.4,
		inputW:        inputW,
		inputH:        inputH,
	}, nil
}

// Detect returns all faces above the confidence threshold after NMS.
func (d *Detector) Detect(img image.Image) ([]faceBox, error) {
	b := img.Bounds()

	start := time.Now()
	copy(d.inputTensor.GetData(), toCHW(img, d.inputW, d.inputH, detectorNorm))
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	boxes := d.decode(b.Dx(), b.Dy())
	return nms(boxes, d.iouThreshold), nil
}

// decode turns anchor-relative outputs into frame coordinates.
func (d *Detector) decode(origW, origH int) []faceBox {
	var boxes []faceBox

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for si, stride := range strides {
		scores := d.outputTensors[si].GetData()
		deltas := d.outputTensors[si+3].GetData()
		kps := d.outputTensors[si+6].GetData()

		st := float32(stride)
		fmW := d.inputW / stride
		fmH := d.inputH / stride

		idx := 0
		for cy := 0; cy < fmH; cy++ {
			for cx := 0; cx < fmW; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					if scores[idx] < d.threshold {
						idx++
						continue
					}
					ax := float32(cx) * st
					ay := float32(cy) * st

					box := faceBox{
						BBox: [4]float32{
							clampF((ax-deltas[idx*4+0]*st)*scaleW, 0, float32(origW)),
							clampF((ay-deltas[idx*4+1]*st)*scaleH, 0, float32(origH)),
							clampF((ax+deltas[idx*4+2]*st)*scaleW, 0, float32(origW)),
							clampF((ay+deltas[idx*4+3]*st)*scaleH, 0, float32(origH)),
						},
						Confidence: scores[idx],
					}
					for k := 0; k < 5; k++ {
						box.Keypoints[k][0] = (ax + kps[idx*10+k*2]*st) * scaleW
						box.Keypoints[k][1] = (ay + kps[idx*10+k*2+1]*st) * scaleH
					}
					boxes = append(boxes, box)
					idx++
				}
			}
		}
	}
	return boxes
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

// nms keeps the highest-confidence box of every overlapping cluster.
func nms(boxes []faceBox, iouThreshold float32) []faceBox {
	if len(boxes) == 0 {
		return boxes
	}

	sort.Slice(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})

	suppressed := make([]bool, len(boxes))
	var kept []faceBox
	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])
		for j := i + 1; j < len(boxes); j++ {
			if !suppressed[j] && iou(boxes[i].BBox, boxes[j].BBox) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}

func iou(a, b [4]float32) float32 {
	x1 := math.Max(float64(a[0]), float64(b[0]))
	y1 := math.Max(float64(a[1]), float64(b[1]))
	x2 := math.Min(float64(a[2]), float64(b[2]))
	y2 := math.Min(float64(a[3]), float64(b[3]))

	inter := float32(math.Max(0, x2-x1) * math.Max(0, y2-y1))
	union := (a[2]-a[0])*(a[3]-a[1]) + (b[2]-b[0])*(b[3]-b[1]) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
