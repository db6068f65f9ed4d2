// Package vision runs object detection and id-stable tracking on video
// frames: players, the ball, and hoops.
package vision

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/goplai/courtside/pkg/geom"
)

// Class ids in the detection model's output. Defaults follow COCO;
// court-specific models remap them in DetectorConfig.
const (
	PersonClassID = 0
	BallClassID   = 32

	// NoClass disables a class lookup.
	NoClass = -1
)

// Detection is one detected object in frame pixel coordinates.
type Detection struct {
	Box        geom.Box
	Confidence float64
	ClassID    int
}

// DetectorConfig holds YOLO detector configuration.
type DetectorConfig struct {
	ModelPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputWidth       int
	InputHeight      int
}

// DefaultDetectorConfig returns production defaults for a YOLOv8
// model exported to ONNX at 640x640.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// Detector runs a YOLOv8 ONNX model through the OpenCV DNN backend.
// Safe for concurrent use; forward passes are serialized.
type Detector struct {
	net       gocv.Net
	config    DetectorConfig
	mu        sync.Mutex
	inputSize image.Point
}

// NewDetector loads the ONNX model at cfg.ModelPath.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Detector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds objects in a JPEG frame.
func (d *Detector) Detect(jpeg []byte) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("empty frame")
	}

	imgW := float32(img.Cols())
	imgH := float32(img.Rows())

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	return d.parseOutput(output, imgW, imgH), nil
}

// DetectClass finds objects of one class.
func (d *Detector) DetectClass(jpeg []byte, classID int) ([]Detection, error) {
	all, err := d.Detect(jpeg)
	if err != nil {
		return nil, err
	}
	var filtered []Detection
	for _, det := range all {
		if det.ClassID == classID {
			filtered = append(filtered, det)
		}
	}
	return filtered, nil
}

// parseOutput decodes the YOLOv8 output tensor. Shape is
// [1, 4+classes, N]: 4 bbox values followed by per-class scores,
// transposed over N candidate detections.
func (d *Detector) parseOutput(output gocv.Mat, imgW, imgH float32) []Detection {
	rows := output.Cols()
	cols := output.Rows()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil
	}

	var boxes []image.Rectangle
	var confidences []float32
	var classIDs []int

	for i := 0; i < rows; i++ {
		maxScore := float32(0)
		maxClassID := 0
		for c := 4; c < cols; c++ {
			if score := data[c*rows+i]; score > maxScore {
				maxScore = score
				maxClassID = c - 4
			}
		}
		if maxScore < d.config.ConfidenceThresh {
			continue
		}

		cx := data[0*rows+i]
		cy := data[1*rows+i]
		w := data[2*rows+i]
		h := data[3*rows+i]

		x1 := int((cx - w/2) * imgW / float32(d.config.InputWidth))
		y1 := int((cy - h/2) * imgH / float32(d.config.InputHeight))
		x2 := int((cx + w/2) * imgW / float32(d.config.InputWidth))
		y2 := int((cy + h/2) * imgH / float32(d.config.InputHeight))

		boxes = append(boxes, image.Rect(x1, y1, x2, y2))
		confidences = append(confidences, maxScore)
		classIDs = append(classIDs, maxClassID)
	}
	if len(boxes) == 0 {
		return nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.config.ConfidenceThresh, d.config.NMSThresh)

	detections := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		box := boxes[idx]
		detections = append(detections, Detection{
			Box: geom.NewBox(
				float64(box.Min.X), float64(box.Min.Y),
				float64(box.Max.X), float64(box.Max.Y)),
			Confidence: float64(confidences[idx]),
			ClassID:    classIDs[idx],
		})
	}
	return detections
}

// Close releases the model.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.net.Close()
	return nil
}
