package detection

import (
	"context"
	"image"
	"sync"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, Detect returns the next scripted frame from Frames.
	DetectFunc func(ctx context.Context, img image.Image) ([]RawDetection, error)

	// Frames is consumed one entry per Detect call. Once exhausted,
	// Detect returns no detections.
	Frames [][]RawDetection

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewMock creates a mock that returns the given detections frame by frame.
func NewMock(frames ...[]RawDetection) *Mock {
	return &Mock{Frames: frames}
}

// Detect returns scripted detections.
func (m *Mock) Detect(ctx context.Context, img image.Image) ([]RawDetection, error) {
	m.mu.Lock()
	m.calls++
	fn := m.DetectFunc
	var next []RawDetection
	if fn == nil && len(m.Frames) > 0 {
		next = m.Frames[0]
		m.Frames = m.Frames[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, img)
	}
	return next, nil
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns how many times Detect was called.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Verify Mock implements Detector at compile time.
var _ Detector = (*Mock)(nil)
