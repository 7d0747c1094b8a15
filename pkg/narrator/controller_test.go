package narrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-narrator/internal/log"
	"github.com/teslashibe/go-narrator/pkg/vision"
)

// blockingSource yields blank frames until its context is cancelled.
type blockingSource struct {
	closed chan struct{}
}

func (s *blockingSource) Next(ctx context.Context) (*vision.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
		return blank, nil
	}
}

func (s *blockingSource) Close() error {
	close(s.closed)
	return nil
}

func TestControllerStartStop(t *testing.T) {
	h := newHarness(t, false)
	src := &blockingSource{closed: make(chan struct{})}
	c := NewController(context.Background(), h.n, func(context.Context) (vision.Source, error) {
		return src, nil
	}, log.Discard())

	if c.Running() {
		t.Fatal("idle controller reports running")
	}
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !c.Running() {
		t.Error("expected running after Start")
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}

	c.Stop()
	if err := c.Wait(); err != nil {
		t.Errorf("Wait after Stop = %v, want nil", err)
	}
	if c.Running() {
		t.Error("still running after Wait")
	}
	select {
	case <-src.closed:
	default:
		t.Error("source should be closed when the loop ends")
	}

	c.Stop() // idle stop is a no-op
}

func TestControllerRunsToEndOfStream(t *testing.T) {
	h := newHarness(t, false)
	c := NewController(context.Background(), h.n, func(context.Context) (vision.Source, error) {
		return vision.NewSliceSource(blank.Image, blank.Image), nil
	}, log.Discard())

	for run := 0; run < 2; run++ {
		if err := c.Start(); err != nil {
			t.Fatalf("run %d: Start: %v", run, err)
		}
		select {
		case <-c.Done():
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d did not finish", run)
		}
		if err := c.Wait(); err != nil {
			t.Errorf("run %d: Wait = %v", run, err)
		}
	}
	if h.det.Calls() != 4 {
		t.Errorf("detector calls = %d, want 4", h.det.Calls())
	}
}

func TestControllerOpenError(t *testing.T) {
	h := newHarness(t, false)
	boom := errors.New("no camera")
	c := NewController(context.Background(), h.n, func(context.Context) (vision.Source, error) {
		return nil, boom
	}, nil)

	if err := c.Start(); !errors.Is(err, boom) {
		t.Errorf("Start = %v, want wrapped open error", err)
	}
	if c.Running() {
		t.Error("failed Start should leave the controller idle")
	}
	if err := c.Wait(); err != nil {
		t.Errorf("Wait on idle controller = %v", err)
	}
}
