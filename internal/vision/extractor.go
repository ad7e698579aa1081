package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/session"
)

const (
	detectorModel   = "det_10g.onnx"
	embedderModel   = "w600k_r50.onnx"
	landmarkerModel = "landmarks_68.onnx"
)

type faceDetector interface {
	Detect(img image.Image) ([]faceBox, error)
	Close()
}

type descriptorModel interface {
	Embed(face image.Image) (models.Descriptor, error)
	Close()
}

type landmarkModel interface {
	Landmarks(face image.Image) (models.Landmarks, error)
	Close()
}

// Extractor turns a frame into the descriptor and landmarks of its single
// face. ONNX sessions reuse their tensors, so calls are serialised.
type Extractor struct {
	mu         sync.Mutex
	detector   faceDetector
	embedder   descriptorModel
	landmarker landmarkModel
}

// NewExtractor loads the three models from cfg.ModelsDir. InitRuntime must
// have been called first.
func NewExtractor(cfg config.VisionConfig) (*Extractor, error) {
	detPath := filepath.Join(cfg.ModelsDir, detectorModel)
	embPath := filepath.Join(cfg.ModelsDir, embedderModel)
	lmPath := filepath.Join(cfg.ModelsDir, landmarkerModel)

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold), nil)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath, "dim", cfg.DescriptorDim)
	emb, err := NewEmbedder(embPath, cfg.DescriptorDim, nil)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("loading landmark model", "path", lmPath)
	lm, err := NewLandmarker(lmPath, nil)
	if err != nil {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("load landmarker: %w", err)
	}

	slog.Info("vision extractor ready")
	return &Extractor{detector: det, embedder: emb, landmarker: lm}, nil
}

// Detect implements session.Extractor.
func (e *Extractor) Detect(ctx context.Context, frame *models.Frame) (*models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := frameImage(frame)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	faces, err := e.detector.Detect(img)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	switch len(faces) {
	case 0:
		return nil, session.ErrNoFace
	case 1:
	default:
		return nil, fmt.Errorf("%d faces: %w", len(faces), session.ErrMultipleFaces)
	}
	face := faces[0]

	crop, region, err := cropFace(img, face.BBox)
	if err != nil {
		return nil, fmt.Errorf("crop face: %w", err)
	}

	desc, err := e.embedder.Embed(crop)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	pts, err := e.landmarker.Landmarks(crop)
	if err != nil {
		return nil, fmt.Errorf("landmarks: %w", err)
	}

	return &models.Detection{
		BBox:       face.BBox,
		Confidence: face.Confidence,
		Descriptor: desc,
		Landmarks:  toFrame(pts, region),
	}, nil
}

// EmbedImage extracts the descriptor of the most confident face in an
// encoded image. Used for importing enrollment references.
func (e *Extractor) EmbedImage(data []byte) (models.Descriptor, float32, error) {
	img, err := decodeImage(data)
	if err != nil {
		return nil, 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	faces, err := e.detector.Detect(img)
	if err != nil {
		return nil, 0, fmt.Errorf("detect: %w", err)
	}
	if len(faces) == 0 {
		return nil, 0, session.ErrNoFace
	}
	// faces are sorted by confidence
	best := faces[0]

	crop, _, err := cropFace(img, best.BBox)
	if err != nil {
		return nil, 0, fmt.Errorf("crop face: %w", err)
	}
	desc, err := e.embedder.Embed(crop)
	if err != nil {
		return nil, 0, fmt.Errorf("embed: %w", err)
	}
	return desc, best.Confidence, nil
}

// Close releases all ONNX sessions.
func (e *Extractor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
	if e.landmarker != nil {
		e.landmarker.Close()
	}
}

func frameImage(f *models.Frame) (image.Image, error) {
	if f == nil {
		return nil, errors.New("nil frame")
	}
	if f.Image != nil {
		return f.Image, nil
	}
	if len(f.JPEG) == 0 {
		return nil, errors.New("frame has no image data")
	}
	return decodeImage(f.JPEG)
}
