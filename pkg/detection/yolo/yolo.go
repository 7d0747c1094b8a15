// Package yolo runs a YOLOv8 ONNX model through OpenCV's dnn module.
package yolo

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/teslashibe/go-narrator/pkg/detection"
	"gocv.io/x/gocv"
)

// ErrEmptyImage is returned when the frame has no pixels.
var ErrEmptyImage = errors.New("yolo: empty image")

// Config holds YOLO detector configuration
type Config struct {
	ModelPath   string
	ScoreThresh float32 // pre-NMS class score cutoff
	NMSThresh   float32
	InputWidth  int
	InputHeight int
	Classes     []string // index → label, defaults to COCO
	Logger      *slog.Logger
}

// DefaultConfig returns production defaults for YOLOv8n
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/yolov8n.onnx",
		ScoreThresh: 0.25,
		NMSThresh:   0.45,
		InputWidth:  640,
		InputHeight: 640,
		Classes:     COCOClasses,
		Logger:      slog.Default(),
	}
}

// Detector uses YOLOv8 for general object detection
type Detector struct {
	net       gocv.Net
	cfg       Config
	mu        sync.Mutex
	inputSize image.Point
	logger    *slog.Logger
}

// New loads the ONNX model at cfg.ModelPath.
func New(cfg Config) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("yolo: model file: %w", err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("yolo: failed to load model from %s", cfg.ModelPath)
	}

	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("yolo: set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("yolo: set target: %w", err)
	}

	if len(cfg.Classes) == 0 {
		cfg.Classes = COCOClasses
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Detector{
		net:       net,
		cfg:       cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
		logger:    logger.With("component", "detection.yolo"),
	}, nil
}

// Detect finds objects in img and returns boxes in img's pixel coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]detection.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil || img.Bounds().Empty() {
		return nil, ErrEmptyImage
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("yolo: convert image: %w", err)
	}
	defer mat.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	imgW := float32(mat.Cols())
	imgH := float32(mat.Rows())

	blob := gocv.BlobFromImage(mat, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	dets, err := d.parse(output, imgW, imgH)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("detected objects", "count", len(dets))
	return dets, nil
}

// parse decodes the [1, 4+classes, anchors] YOLOv8 output tensor and applies NMS.
func (d *Detector) parse(output gocv.Mat, imgW, imgH float32) ([]detection.RawDetection, error) {
	size := output.Size()
	if len(size) != 3 {
		return nil, fmt.Errorf("yolo: unexpected output shape %v", size)
	}
	attrs, anchors := size[1], size[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("yolo: read output: %w", err)
	}

	var (
		boxes       []image.Rectangle
		confidences []float32
		classIDs    []int
	)

	scaleX := imgW / float32(d.cfg.InputWidth)
	scaleY := imgH / float32(d.cfg.InputHeight)

	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		maxClass := 0
		for c := 4; c < attrs; c++ {
			if score := data[c*anchors+i]; score > maxScore {
				maxScore = score
				maxClass = c - 4
			}
		}
		if maxScore < d.cfg.ScoreThresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		boxes = append(boxes, image.Rect(
			int((cx-w/2)*scaleX),
			int((cy-h/2)*scaleY),
			int((cx+w/2)*scaleX),
			int((cy+h/2)*scaleY),
		))
		confidences = append(confidences, maxScore)
		classIDs = append(classIDs, maxClass)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	indices := gocv.NMSBoxes(boxes, confidences, d.cfg.ScoreThresh, d.cfg.NMSThresh)

	out := make([]detection.RawDetection, 0, len(indices))
	for _, idx := range indices {
		out = append(out, detection.RawDetection{
			Label:      ClassName(d.cfg.Classes, classIDs[idx]),
			Confidence: float64(confidences[idx]),
			Box:        detection.Box(boxes[idx]),
		})
	}
	return out, nil
}

// Close releases the detector resources
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// ClassName returns the label for id, or "class_<id>" when out of range.
func ClassName(classes []string, id int) string {
	if id < 0 || id >= len(classes) {
		return fmt.Sprintf("class_%d", id)
	}
	return classes[id]
}

// COCOClasses contains the 80 COCO class names
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink", "refrigerator",
	"book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// Verify Detector implements detection.Detector at compile time.
var _ detection.Detector = (*Detector)(nil)
