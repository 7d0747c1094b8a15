// Package narrator turns a stream of object detections into short spoken
// summaries of what is in front of the camera.
//
// Each frame is detected, filtered, annotated with distances and fed into a
// per-label reliability tracker. When voice is on and the cooldown has
// passed, the reliable labels are described in one sentence and spoken. The
// call blocks until playback ends, so announcements never overlap.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/teslashibe/go-narrator/pkg/describe"
	"github.com/teslashibe/go-narrator/pkg/detection"
	"github.com/teslashibe/go-narrator/pkg/distance"
	"github.com/teslashibe/go-narrator/pkg/overlay"
	"github.com/teslashibe/go-narrator/pkg/vision"
)

// Sentinel errors.
var (
	ErrNoDetector = errors.New("narrator: detector is required")
	ErrNoSpeaker  = errors.New("narrator: speaker is required")
	ErrNilFrame   = errors.New("narrator: nil frame")
)

// Speaker speaks a sentence and returns once playback has finished.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Detection is a surviving detection with its estimated distance.
type Detection struct {
	detection.RawDetection
	Distance         float64 `json:"distance_m,omitempty"`
	DistanceKnown    bool    `json:"distance_known"`
	DistanceCategory string  `json:"distance_category"`
}

// DistanceText returns "1.23m" or "Unknown".
func (d Detection) DistanceText() string {
	return distance.Text(d.Distance, d.DistanceKnown)
}

// Result is everything produced for one frame.
type Result struct {
	Seq         uint64
	At          time.Time
	Detections  []Detection
	Annotations []overlay.Annotation

	// Labels are the distinct labels of this frame, first seen first.
	Labels []string

	// Counts and Summary describe this frame alone, independent of the
	// reliability windows.
	Counts  describe.Counts
	Summary string

	// Tracking is each tracked label's window size after pruning, taken
	// before any announcement clears the windows.
	Tracking []describe.Entry

	// Announcement is the sentence handed to the speaker, empty if none.
	Announcement string
	SpeechErr    error
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithSink sets where annotated frames go.
func WithSink(s Sink) Option {
	return func(n *Narrator) {
		if s != nil {
			n.sink = s
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Narrator) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Narrator) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithResultHook registers a callback invoked with every frame's Result.
// It runs on the frame loop goroutine.
func WithResultHook(fn func(Result)) Option {
	return func(n *Narrator) {
		n.onResult = fn
	}
}

// WithVoiceHook registers a callback invoked after the voice flag changes.
func WithVoiceHook(fn func(enabled bool)) Option {
	return func(n *Narrator) {
		n.onVoice = fn
	}
}

// WithSpeechErrorHook registers a callback invoked when an announcement fails.
func WithSpeechErrorHook(fn func(text string, err error)) Option {
	return func(n *Narrator) {
		n.onSpeechErr = fn
	}
}

// Narrator runs the detection-to-speech pipeline.
type Narrator struct {
	cfg      Config
	detector detection.Detector
	speaker  Speaker
	sink     Sink
	session  *Session
	now      func() time.Time
	logger   *slog.Logger

	onResult    func(Result)
	onVoice     func(bool)
	onSpeechErr func(string, error)
}

// New creates a Narrator with a fresh session.
func New(cfg Config, det detection.Detector, sp Speaker, opts ...Option) (*Narrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if det == nil {
		return nil, ErrNoDetector
	}
	if sp == nil {
		return nil, ErrNoSpeaker
	}

	n := &Narrator{
		cfg:      cfg,
		detector: det,
		speaker:  sp,
		sink:     discardSink{},
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "narrator")
	n.session = NewSession(cfg.Reliability, cfg.VoiceEnabled, n.now())
	return n, nil
}

// Config returns the active configuration.
func (n *Narrator) Config() Config {
	return n.cfg
}

// Session returns the current session.
func (n *Narrator) Session() *Session {
	return n.session
}

// VoiceEnabled reports whether announcements are on. Safe for concurrent use.
func (n *Narrator) VoiceEnabled() bool {
	return n.session.VoiceEnabled()
}

// ToggleVoice flips the voice flag and returns the new state. It touches
// nothing else: the windows and the cooldown keep running.
// Safe for concurrent use.
func (n *Narrator) ToggleVoice() bool {
	on := n.session.ToggleVoice()
	n.voiceChanged(on)
	return on
}

// SetVoice sets the voice flag. Safe for concurrent use.
func (n *Narrator) SetVoice(on bool) {
	if n.session.SwapVoice(on) != on {
		n.voiceChanged(on)
	}
}

func (n *Narrator) voiceChanged(on bool) {
	if on {
		n.logger.Info("Voice output enabled")
	} else {
		n.logger.Info("Voice output disabled")
	}
	if n.onVoice != nil {
		n.onVoice(on)
	}
}

// ProcessFrame runs one frame through the pipeline. Frames must be processed
// one at a time, in order.
//
// A detection failure is returned after the bare frame has been rendered.
// Speech failures are logged and reported in Result.SpeechErr only.
func (n *Narrator) ProcessFrame(ctx context.Context, frame *vision.Frame) (Result, error) {
	if frame == nil {
		return Result{}, ErrNilFrame
	}
	now := n.now()
	res := Result{Seq: frame.Seq, At: now}

	raw, err := n.detector.Detect(ctx, frame.Image)
	if err != nil {
		n.render(frame, nil)
		n.publish(res)
		return res, fmt.Errorf("narrator: detect frame %d: %w", frame.Seq, err)
	}

	tracker := n.session.tracker
	kept := detection.Filter(raw, n.cfg.MinDetectionConfidence)
	seen := make([]string, 0, len(kept))
	for _, d := range kept {
		m, ok := n.cfg.Distance.ForLabel(d.Label, float64(d.Box.Height()))
		res.Detections = append(res.Detections, Detection{
			RawDetection:     d,
			Distance:         m,
			DistanceKnown:    ok,
			DistanceCategory: distance.Category(m, ok),
		})
		res.Annotations = append(res.Annotations, overlay.Annotation{
			Box:  d.Box.Rect(),
			Text: fmt.Sprintf("%s (%s)", d.Label, distance.Text(m, ok)),
		})
		seen = append(seen, d.Label)
		tracker.Observe(d.Label, now)
	}
	tracker.Prune(now)
	for _, label := range tracker.Labels() {
		res.Tracking = append(res.Tracking, describe.Entry{Label: label, Count: len(tracker.Window(label))})
	}

	res.Labels = detection.Labels(kept)
	res.Counts = describe.FromLabels(seen)
	res.Summary = describe.Sentence(res.Counts)

	n.render(frame, res.Annotations)
	res.Announcement, res.SpeechErr = n.announce(ctx, now)
	n.publish(res)
	return res, nil
}

// announce speaks the reliable set if voice is on and the cooldown allows.
// Every attempt clears the windows, even when nothing is reliable.
func (n *Narrator) announce(ctx context.Context, now time.Time) (string, error) {
	s := n.session
	if !s.VoiceEnabled() || !s.cooledDown(now, n.cfg.Cooldown) {
		return "", nil
	}

	reliable := s.tracker.Reliable()
	s.tracker.Clear()
	if reliable.Len() == 0 {
		return "", nil
	}

	text := describe.Sentence(reliable)
	s.lastAnnouncement = now
	n.logger.Info("announcing", "text", text, "session", s.ID)

	if err := n.speaker.Speak(ctx, text); err != nil {
		n.logger.Error("speech failed", "error", err, "text", text)
		if n.onSpeechErr != nil {
			n.onSpeechErr(text, err)
		}
		return text, err
	}
	return text, nil
}

func (n *Narrator) render(frame *vision.Frame, anns []overlay.Annotation) {
	if err := n.sink.Render(frame, anns); err != nil {
		n.logger.Warn("render failed", "seq", frame.Seq, "error", err)
	}
}

func (n *Narrator) publish(res Result) {
	if n.onResult != nil {
		n.onResult(res)
	}
}

// Run pulls frames from src until it is exhausted or ctx is cancelled.
// Exhaustion (io.EOF) returns nil. Cancellation returns ctx.Err() once the
// current frame, including any announcement, has finished.
func (n *Narrator) Run(ctx context.Context, src vision.Source) error {
	n.logger.Info("narration started", "session", n.session.ID, "voice", n.VoiceEnabled())
	defer n.logger.Info("narration stopped", "session", n.session.ID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("narrator: next frame: %w", err)
		}

		if _, err := n.ProcessFrame(ctx, frame); err != nil {
			n.logger.Warn("frame failed", "error", err)
		}
	}
}

// Close tears down the session.
func (n *Narrator) Close() error {
	n.session.Close()
	return nil
}
