// Package speech implements the blocking speech collaborator: Speak returns
// only after the sentence has been synthesized and played in full.
//
// An announcement in flight is never cancelled. Each Speaker detaches from
// the caller's cancellation before starting, so a shutdown request takes
// effect after the current sentence finishes.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/teslashibe/go-narrator/pkg/tts"
)

// ErrEmptyText is returned when asked to speak an empty sentence.
var ErrEmptyText = errors.New("speech: empty text")

// Speaker speaks one sentence and blocks until playback completes.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// AudioPlayer plays little-endian PCM16 audio to completion.
type AudioPlayer interface {
	Play(pcm []byte, sampleRate, channels int) error
}

// TTS synthesizes with a tts.Provider and plays the result.
type TTS struct {
	provider tts.Provider
	player   AudioPlayer
	logger   *slog.Logger
}

// NewTTS creates a Speaker backed by a TTS provider and an audio player.
func NewTTS(provider tts.Provider, player AudioPlayer, logger *slog.Logger) *TTS {
	if logger == nil {
		logger = slog.Default()
	}
	return &TTS{
		provider: provider,
		player:   player,
		logger:   logger.With("component", "speech.tts"),
	}
}

// Speak synthesizes text and plays it.
func (s *TTS) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	ctx = context.WithoutCancel(ctx)

	result, err := s.provider.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("speech: synthesize: %w", err)
	}
	if err := s.player.Play(result.Audio, result.Format.SampleRate, result.Format.Channels); err != nil {
		return fmt.Errorf("speech: play: %w", err)
	}

	s.logger.Debug("spoke",
		"chars", result.CharCount,
		"duration", result.Duration,
		"latency_ms", result.LatencyMs,
	)
	return nil
}

// Command speaks through an external program that takes the text as its
// last argument, such as espeak or macOS say.
type Command struct {
	Name string
	Args []string
}

// NewCommand creates a command Speaker.
func NewCommand(name string, args ...string) *Command {
	return &Command{Name: name, Args: args}
}

// Available reports whether the program is on PATH.
func (c *Command) Available() bool {
	_, err := exec.LookPath(c.Name)
	return err == nil
}

// Speak runs the program and waits for it to exit.
func (c *Command) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	args := append(append([]string{}, c.Args...), text)
	cmd := exec.CommandContext(context.WithoutCancel(ctx), c.Name, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("speech: %s: %w: %s", c.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Writer "speaks" by writing each sentence on its own line.
// Useful headless and in tests.
type Writer struct {
	W io.Writer
}

// Speak writes text followed by a newline.
func (w Writer) Speak(_ context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	_, err := fmt.Fprintln(w.W, text)
	return err
}

// Fallback tries each speaker in order until one succeeds.
type Fallback struct {
	speakers []Speaker
	logger   *slog.Logger
}

// NewFallback creates a Fallback over speakers.
func NewFallback(logger *slog.Logger, speakers ...Speaker) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{speakers: speakers, logger: logger.With("component", "speech.fallback")}
}

// Speak returns nil as soon as one speaker succeeds, otherwise all errors joined.
func (f *Fallback) Speak(ctx context.Context, text string) error {
	if len(f.speakers) == 0 {
		return errors.New("speech: no speakers configured")
	}
	var errs []error
	for i, s := range f.speakers {
		err := s.Speak(ctx, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrEmptyText) {
			return err
		}
		errs = append(errs, err)
		f.logger.Warn("speaker failed, trying next", "index", i, "error", err)
	}
	return errors.Join(errs...)
}

// Verify implementations satisfy Speaker at compile time.
var (
	_ Speaker = (*TTS)(nil)
	_ Speaker = (*Command)(nil)
	_ Speaker = Writer{}
	_ Speaker = (*Fallback)(nil)
)
