// Package display shows annotated frames in an OpenCV window and turns key
// presses into control actions.
package display

import (
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-narrator/pkg/overlay"
	"github.com/teslashibe/go-narrator/pkg/vision"
)

// Action is what a key press asks for.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
	ActionToggleVoice
)

func (a Action) String() string {
	switch a {
	case ActionQuit:
		return "quit"
	case ActionToggleVoice:
		return "toggle_voice"
	default:
		return "none"
	}
}

// KeyAction maps a WaitKey code to an action: q or Esc quits, v toggles voice.
func KeyAction(key int) Action {
	if key < 0 {
		return ActionNone
	}
	switch key & 0xff {
	case 'q', 'Q', 27:
		return ActionQuit
	case 'v', 'V':
		return ActionToggleVoice
	default:
		return ActionNone
	}
}

// Handlers receive window actions. Both run on the frame loop goroutine and
// must not block on it.
type Handlers struct {
	OnQuit        func()
	OnToggleVoice func()
}

// Window is a narrator sink backed by an OpenCV highgui window.
type Window struct {
	title    string
	renderer *overlay.Renderer
	handlers Handlers
	logger   *slog.Logger

	mu  sync.Mutex
	win *gocv.Window
}

// NewWindow creates the window lazily on the first frame.
func NewWindow(title string, r *overlay.Renderer, h Handlers, logger *slog.Logger) *Window {
	if r == nil {
		r = overlay.NewRenderer(overlay.DefaultStyle())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{
		title:    title,
		renderer: r,
		handlers: h,
		logger:   logger.With("component", "display"),
	}
}

// Render draws the annotations, shows the frame and polls the keyboard once.
func (w *Window) Render(frame *vision.Frame, anns []overlay.Annotation) error {
	if frame == nil || frame.Image == nil {
		return nil
	}

	img := w.renderer.Render(frame.Image, anns)
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return fmt.Errorf("display: convert frame: %w", err)
	}
	defer mat.Close()

	w.mu.Lock()
	if w.win == nil {
		w.win = gocv.NewWindow(w.title)
	}
	win := w.win
	w.mu.Unlock()

	win.IMShow(mat)
	w.dispatch(KeyAction(win.WaitKey(1)))
	return nil
}

func (w *Window) dispatch(a Action) {
	if a == ActionNone {
		return
	}
	w.logger.Debug("key action", "action", a.String())
	switch a {
	case ActionQuit:
		if w.handlers.OnQuit != nil {
			w.handlers.OnQuit()
		}
	case ActionToggleVoice:
		if w.handlers.OnToggleVoice != nil {
			w.handlers.OnToggleVoice()
		}
	}
}

// Close destroys the window.
func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}
