package vision

import (
	"fmt"
	"image"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
)

// Landmarker predicts the 68-point iBUG landmark layout on a face crop.
// The model emits 136 values: x,y pairs normalised to the crop size.
type Landmarker struct {
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputW       int
	inputH       int
}

func NewLandmarker(modelPath string, opts *ort.SessionOptions) (*Landmarker, error) {
	inputW, inputH := 112, 112

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(inputH), int64(inputW)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, models.LandmarkCount*2))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create landmark session: %w", err)
	}

	return &Landmarker{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Landmarks returns the 68 points in crop-normalised [0,1] coordinates.
func (l *Landmarker) Landmarks(face image.Image) (models.Landmarks, error) {
	start := time.Now()
	copy(l.inputTensor.GetData(), toCHW(face, l.inputW, l.inputH, landmarkNorm))

	if err := l.session.Run(); err != nil {
		return nil, fmt.Errorf("run landmarks: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("landmarks").Observe(time.Since(start).Seconds())

	data := l.outputTensor.GetData()
	if len(data) < models.LandmarkCount*2 {
		return nil, fmt.Errorf("unexpected landmark output size: %d", len(data))
	}

	pts := make(models.Landmarks, models.LandmarkCount)
	for i := range pts {
		pts[i] = models.Point{X: float64(data[2*i]), Y: float64(data[2*i+1])}
	}
	return pts, nil
}

func (l *Landmarker) Close() {
	if l.session != nil {
		l.session.Destroy()
	}
	if l.inputTensor != nil {
		l.inputTensor.Destroy()
	}
	if l.outputTensor != nil {
		l.outputTensor.Destroy()
	}
}
