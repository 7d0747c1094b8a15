package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-narrator/pkg/vision"
)

// ErrAlreadyRunning is returned by Start while a loop is active.
var ErrAlreadyRunning = errors.New("narrator: already running")

// OpenFunc opens a frame source for a new run.
type OpenFunc func(ctx context.Context) (vision.Source, error)

// Controller starts and stops the frame loop on demand, for control surfaces
// like the web API or the display window.
type Controller struct {
	base   context.Context
	n      *Narrator
	open   OpenFunc
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr error
}

// NewController creates a controller. Every run derives from base.
func NewController(base context.Context, n *Narrator, open OpenFunc, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	close(done)
	return &Controller{
		base:   base,
		n:      n,
		open:   open,
		logger: logger.With("component", "narrator.controller"),
		done:   done,
	}
}

// Narrator returns the controlled narrator.
func (c *Controller) Narrator() *Narrator {
	return c.n
}

// Start opens a source and runs the loop in the background.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(c.base)
	src, err := c.open(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("narrator: open source: %w", err)
	}

	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.lastErr = nil

	go func() {
		err := c.n.Run(ctx, src)
		if cerr := src.Close(); cerr != nil {
			c.logger.Warn("source close failed", "error", cerr)
		}
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		if err != nil {
			c.logger.Error("narration loop ended", "error", err)
		}

		c.mu.Lock()
		c.lastErr = err
		c.cancel = nil
		c.mu.Unlock()

		cancel()
		close(done)
	}()

	c.logger.Info("detection started")
	return nil
}

// Stop asks the loop to end after the current frame. It does not wait; use
// Wait for that. Stopping an idle controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.logger.Info("detection stopping")
	}
}

// Wait blocks until the current loop, if any, has exited and returns its error.
func (c *Controller) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Done returns a channel closed when the current loop exits.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Running reports whether a loop is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// VoiceEnabled reports whether announcements are on.
func (c *Controller) VoiceEnabled() bool {
	return c.n.VoiceEnabled()
}

// ToggleVoice flips the voice flag and returns the new state.
func (c *Controller) ToggleVoice() bool {
	return c.n.ToggleVoice()
}

// SetVoice sets the voice flag.
func (c *Controller) SetVoice(on bool) {
	c.n.SetVoice(on)
}

// SessionID returns the narrator's session ID.
func (c *Controller) SessionID() string {
	return c.n.Session().ID
}
