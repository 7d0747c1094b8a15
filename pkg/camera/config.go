// Package camera captures frames from a webcam or a video file through OpenCV.
package camera

import (
	"strconv"
	"strings"
)

// Config holds capture settings.
type Config struct {
	// Device is a camera index ("0") or a video file path or URL.
	Device string `json:"device"`

	// Requested resolution and rate. Zero leaves the driver default.
	Width     int `json:"width"`
	Height    int `json:"height"`
	Framerate int `json:"framerate"`

	// MaxReadFailures is how many consecutive failed reads a live camera
	// tolerates before the source gives up.
	MaxReadFailures int `json:"max_read_failures"`
}

// Preset names for common resolutions.
const (
	PresetVGA   = "vga"
	Preset720p  = "720p"
	Preset1080p = "1080p"
)

// DefaultConfig opens camera 0 at 640x480, 30fps.
func DefaultConfig() Config {
	return Config{
		Device:          "0",
		Width:           640,
		Height:          480,
		Framerate:       30,
		MaxReadFailures: 5,
	}
}

// Preset returns the default config at a named resolution, or nil if the
// name is unknown.
func Preset(name string) *Config {
	cfg := DefaultConfig()
	switch strings.ToLower(name) {
	case PresetVGA:
	case Preset720p:
		cfg.Width, cfg.Height = 1280, 720
	case Preset1080p:
		cfg.Width, cfg.Height = 1920, 1080
	default:
		return nil
	}
	return &cfg
}

// PresetNames returns the available preset names.
func PresetNames() []string {
	return []string{PresetVGA, Preset720p, Preset1080p}
}

// Index returns the device as a camera index when it is one.
func (c *Config) Index() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(c.Device))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Live reports whether the device is a camera rather than a file.
func (c *Config) Live() bool {
	_, ok := c.Index()
	return ok
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if strings.TrimSpace(c.Device) == "" {
		errors = append(errors, "device must not be empty")
	}
	if c.Width != 0 && (c.Width < 160 || c.Width > 4096) {
		errors = append(errors, "width must be 0 (driver default) or between 160 and 4096")
	}
	if c.Height != 0 && (c.Height < 120 || c.Height > 2160) {
		errors = append(errors, "height must be 0 (driver default) or between 120 and 2160")
	}
	if c.Framerate < 0 || c.Framerate > 120 {
		errors = append(errors, "framerate must be between 0 and 120")
	}
	if c.MaxReadFailures < 1 {
		errors = append(errors, "max_read_failures must be at least 1")
	}

	return errors
}
