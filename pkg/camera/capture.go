package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-narrator/pkg/vision"
)

// ErrReadFailed is returned when a live camera stops delivering frames.
var ErrReadFailed = errors.New("camera: read failed")

// Source reads frames from an OpenCV VideoCapture.
// It implements vision.Source.
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	vc   *gocv.VideoCapture
	mat  gocv.Mat
	seq  uint64
	done bool
}

// Open opens the configured device.
func Open(cfg Config, logger *slog.Logger) (*Source, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}

	var device any = cfg.Device
	if idx, ok := cfg.Index(); ok {
		device = idx
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("camera: open %s: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera: %s did not open", cfg.Device)
	}

	if cfg.Live() {
		if cfg.Width > 0 {
			vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		}
		if cfg.Height > 0 {
			vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		}
		if cfg.Framerate > 0 {
			vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
		}
	}

	s := &Source{
		cfg:    cfg,
		logger: logger.With("component", "camera", "device", cfg.Device),
		vc:     vc,
		mat:    gocv.NewMat(),
	}
	s.logger.Info("camera opened",
		"width", vc.Get(gocv.VideoCaptureFrameWidth),
		"height", vc.Get(gocv.VideoCaptureFrameHeight),
		"fps", vc.Get(gocv.VideoCaptureFPS),
	)
	return s, nil
}

// Next blocks for the next frame. A file source returns io.EOF at its end.
func (s *Source) Next(ctx context.Context) (*vision.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return nil, io.EOF
	}

	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if s.vc.Read(&s.mat) && !s.mat.Empty() {
			break
		}
		if !s.cfg.Live() {
			s.done = true
			return nil, io.EOF
		}

		failures++
		if failures >= s.cfg.MaxReadFailures {
			return nil, fmt.Errorf("%w after %d attempts", ErrReadFailed, failures)
		}
		s.logger.Debug("empty frame, retrying", "attempt", failures)
		time.Sleep(20 * time.Millisecond)
	}

	img, err := s.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("camera: convert frame: %w", err)
	}

	f := &vision.Frame{Image: img, Seq: s.seq, CapturedAt: time.Now()}
	s.seq++
	return f, nil
}

// Close releases the capture device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.done = true
	if s.vc == nil {
		return nil
	}
	s.mat.Close()
	err := s.vc.Close()
	s.vc = nil
	return err
}

// Opener returns a function that opens a fresh Source on each call,
// suitable for narrator.Controller.
func Opener(cfg Config, logger *slog.Logger) func(context.Context) (vision.Source, error) {
	return func(context.Context) (vision.Source, error) {
		return Open(cfg, logger)
	}
}

var _ vision.Source = (*Source)(nil)
