// Package detection defines the boundary to the object-detection model:
// raw per-frame detections, the Detector interface and confidence filtering.
package detection

import (
	"context"
	"image"
)

// BoundingBox is an axis-aligned box in pixel coordinates.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int {
	return b.X2 - b.X1
}

// Height returns the box height in pixels.
func (b BoundingBox) Height() int {
	return b.Y2 - b.Y1
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Box builds a BoundingBox from an image.Rectangle.
func Box(r image.Rectangle) BoundingBox {
	return BoundingBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// RawDetection is one detected instance in one frame.
type RawDetection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"` // 0-1
	Box        BoundingBox `json:"box"`
}

// Detector is the interface for object detection backends.
type Detector interface {
	// Detect finds objects in the image. No ordering is guaranteed.
	Detect(ctx context.Context, img image.Image) ([]RawDetection, error)

	// Close releases resources
	Close() error
}

// Filter keeps detections with confidence >= minConfidence and a strictly
// positive box height. Degenerate boxes never reach distance estimation.
func Filter(dets []RawDetection, minConfidence float64) []RawDetection {
	out := make([]RawDetection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < minConfidence {
			continue
		}
		if d.Box.Height() <= 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Labels returns the distinct labels in first-seen order.
func Labels(dets []RawDetection) []string {
	seen := make(map[string]bool, len(dets))
	var out []string
	for _, d := range dets {
		if seen[d.Label] {
			continue
		}
		seen[d.Label] = true
		out = append(out, d.Label)
	}
	return out
}
