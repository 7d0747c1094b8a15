// Package vision defines the frame type shared by capture, detection and rendering.
package vision

import (
	"context"
	"image"
	"io"
	"time"
)

// Frame is one captured video frame.
type Frame struct {
	Image      image.Image
	Seq        uint64    // monotonically increasing per source
	CapturedAt time.Time // wall clock with monotonic reading
}

// Bounds returns the frame's pixel bounds, or an empty rectangle for a nil image.
func (f *Frame) Bounds() image.Rectangle {
	if f == nil || f.Image == nil {
		return image.Rectangle{}
	}
	return f.Image.Bounds()
}

// Source supplies frames on demand.
// Next returns io.EOF once the stream is exhausted.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}

// SliceSource replays a fixed list of images, then returns io.EOF.
type SliceSource struct {
	images []image.Image
	next   int
	closed bool
	now    func() time.Time
}

// NewSliceSource creates a source over images.
func NewSliceSource(images ...image.Image) *SliceSource {
	return &SliceSource{images: images, now: time.Now}
}

// Next returns the next image as a frame.
func (s *SliceSource) Next(ctx context.Context) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.closed || s.next >= len(s.images) {
		return nil, io.EOF
	}
	f := &Frame{Image: s.images[s.next], Seq: uint64(s.next), CapturedAt: s.now()}
	s.next++
	return f, nil
}

// Close stops the source. Further calls to Next return io.EOF.
func (s *SliceSource) Close() error {
	s.closed = true
	return nil
}
