// Package preview scales annotated frames down and encodes them for the web UI.
package preview

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is an output encoding.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
)

// ParseFormat accepts "jpeg", "jpg" or "webp".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg", "":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", fmt.Errorf("preview: unknown format %q", s)
	}
}

// MIME returns the content type for f.
func (f Format) MIME() string {
	if f == FormatWebP {
		return "image/webp"
	}
	return "image/jpeg"
}

// Config controls preview size and encoding.
type Config struct {
	Width   int
	Height  int
	Format  Format
	Quality int // 1-100
}

// DefaultConfig returns an 800x600 JPEG at quality 75.
func DefaultConfig() Config {
	return Config{Width: 800, Height: 600, Format: FormatJPEG, Quality: 75}
}

// Encoder resizes and encodes frames.
type Encoder struct {
	cfg Config
}

// NewEncoder creates an encoder, filling zero fields from DefaultConfig.
func NewEncoder(cfg Config) *Encoder {
	def := DefaultConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.Quality < 1 || cfg.Quality > 100 {
		cfg.Quality = def.Quality
	}
	return &Encoder{cfg: cfg}
}

// Config returns the effective configuration.
func (e *Encoder) Config() Config {
	return e.cfg
}

// Resize scales img to exactly the configured size.
func (e *Encoder) Resize(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == e.cfg.Width && b.Dy() == e.cfg.Height {
		return imaging.Clone(img)
	}
	return imaging.Resize(img, e.cfg.Width, e.cfg.Height, imaging.Linear)
}

// Encode resizes img and returns the encoded bytes.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("preview: empty image")
	}
	scaled := e.Resize(img)

	var buf bytes.Buffer
	switch e.cfg.Format {
	case FormatWebP:
		if err := webp.Encode(&buf, scaled, &webp.Options{Quality: float32(e.cfg.Quality)}); err != nil {
			return nil, fmt.Errorf("preview: encode webp: %w", err)
		}
	default:
		if err := imaging.Encode(&buf, scaled, imaging.JPEG, imaging.JPEGQuality(e.cfg.Quality)); err != nil {
			return nil, fmt.Errorf("preview: encode jpeg: %w", err)
		}
	}
	return buf.Bytes(), nil
}
