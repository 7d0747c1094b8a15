package narrator

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-narrator/pkg/distance"
	"github.com/teslashibe/go-narrator/pkg/reliability"
)

// Config holds the narrator's tunables.
type Config struct {
	// MinDetectionConfidence is the floor a detection must reach to be drawn
	// or counted.
	MinDetectionConfidence float64

	// ConfidenceThreshold is a general confidence setting kept separate from
	// MinDetectionConfidence. Nothing in the pipeline reads it yet.
	ConfidenceThreshold float64

	// Cooldown is the minimum gap between two announcements.
	Cooldown time.Duration

	// VoiceEnabled is the initial state of the voice flag.
	VoiceEnabled bool

	Distance    distance.Estimator
	Reliability reliability.Config
}

// DefaultConfig returns the standard tuning: 0.6 confidence, 5s cooldown,
// voice off until toggled.
func DefaultConfig() Config {
	return Config{
		MinDetectionConfidence: 0.6,
		ConfidenceThreshold:    0.5,
		Cooldown:               5 * time.Second,
		VoiceEnabled:           false,
		Distance:               distance.NewEstimator(),
		Reliability:            reliability.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinDetectionConfidence < 0 || c.MinDetectionConfidence > 1 {
		return fmt.Errorf("narrator: min detection confidence must be in [0,1], got %v", c.MinDetectionConfidence)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("narrator: confidence threshold must be in [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("narrator: cooldown must not be negative, got %v", c.Cooldown)
	}
	if c.Distance.FocalLength <= 0 {
		return fmt.Errorf("narrator: focal length must be positive, got %v", c.Distance.FocalLength)
	}
	return c.Reliability.Validate()
}
