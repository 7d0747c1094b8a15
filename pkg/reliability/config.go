package reliability

import (
	"fmt"
	"time"
)

// Config holds the tracker's tunable parameters.
type Config struct {
	// Window is how far back detections are remembered.
	Window time.Duration

	// MinDetectionCount is how many detections a label needs inside the
	// window before it is reported.
	MinDetectionCount int

	// Bucket is the rounding granularity used to count distinct detection
	// instants when estimating how many instances are present.
	Bucket time.Duration
}

// DefaultConfig returns a one second window needing three detections.
func DefaultConfig() Config {
	return Config{
		Window:            time.Second,
		MinDetectionCount: 3,
		Bucket:            100 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("reliability: window must be positive, got %v", c.Window)
	}
	if c.MinDetectionCount < 1 {
		return fmt.Errorf("reliability: min detection count must be >= 1, got %d", c.MinDetectionCount)
	}
	if c.Bucket <= 0 {
		return fmt.Errorf("reliability: bucket must be positive, got %v", c.Bucket)
	}
	return nil
}
