// Package distance estimates how far away a detected object is from the
// pinhole-camera relation between its known real height and its pixel height.
package distance

import "fmt"

// DefaultFocalLength is the assumed camera focal length in pixels.
const DefaultFocalLength = 500.0

// UnknownText is shown when no real-world height is known for a label.
const UnknownText = "Unknown"

// Table maps a class label to its assumed real-world height in meters.
type Table map[string]float64

// DefaultTable returns the average heights of common objects.
func DefaultTable() Table {
	return Table{
		"person": 1.7,
		"car":    1.5,
		"chair":  1.0,
		"bottle": 0.2,
		"cup":    0.1,
	}
}

// Lookup returns the real height for label and whether it is known.
func (t Table) Lookup(label string) (float64, bool) {
	h, ok := t[label]
	return h, ok
}

// Estimate returns realHeight * focalLength / boxHeight.
// boxHeight must be strictly positive; callers filter degenerate boxes.
func Estimate(boxHeight, realHeight, focalLength float64) float64 {
	return realHeight * focalLength / boxHeight
}

// Estimator combines a height table with a focal length.
type Estimator struct {
	Table       Table
	FocalLength float64
}

// NewEstimator returns an Estimator over the default table and focal length.
func NewEstimator() Estimator {
	return Estimator{Table: DefaultTable(), FocalLength: DefaultFocalLength}
}

// ForLabel estimates the distance of a label whose box is boxHeight pixels tall.
// ok is false when the label has no known height.
func (e Estimator) ForLabel(label string, boxHeight float64) (meters float64, ok bool) {
	h, ok := e.Table.Lookup(label)
	if !ok {
		return 0, false
	}
	return Estimate(boxHeight, h, e.FocalLength), true
}

// Text formats a distance for display: "8.50m", or "Unknown" when !ok.
func Text(meters float64, ok bool) string {
	if !ok {
		return UnknownText
	}
	return fmt.Sprintf("%.2fm", meters)
}

// UnknownCategory is the category of an unmeasured distance.
const UnknownCategory = "unknown"

// bands are upper bounds in meters, nearest first.
var bands = []struct {
	below float64
	name  string
}{
	{0.5, "very close"},
	{1.0, "close"},
	{2.0, "nearby"},
	{3.0, "moderate"},
}

// Category buckets a distance into a coarse band for the detections panel:
// "very close", "close", "nearby", "moderate" or "far".
func Category(meters float64, ok bool) string {
	if !ok || meters <= 0 {
		return UnknownCategory
	}
	for _, b := range bands {
		if meters < b.below {
			return b.name
		}
	}
	return "far"
}
