package narrator

import (
	"errors"

	"github.com/teslashibe/go-narrator/pkg/overlay"
	"github.com/teslashibe/go-narrator/pkg/vision"
)

// Sink receives every processed frame with its draw instructions.
type Sink interface {
	Render(frame *vision.Frame, anns []overlay.Annotation) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(frame *vision.Frame, anns []overlay.Annotation) error

// Render calls f.
func (f SinkFunc) Render(frame *vision.Frame, anns []overlay.Annotation) error {
	return f(frame, anns)
}

// MultiSink fans a frame out to several sinks. Every sink is called even if
// an earlier one fails.
type MultiSink []Sink

// Render forwards to each sink and joins their errors.
func (m MultiSink) Render(frame *vision.Frame, anns []overlay.Annotation) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Render(frame, anns); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type discardSink struct{}

func (discardSink) Render(*vision.Frame, []overlay.Annotation) error { return nil }
