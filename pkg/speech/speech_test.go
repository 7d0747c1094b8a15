package speech

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/teslashibe/go-narrator/internal/log"
	"github.com/teslashibe/go-narrator/pkg/tts"
)

type fakePlayer struct {
	pcm      []byte
	rate, ch int
	err      error
}

func (p *fakePlayer) Play(pcm []byte, sampleRate, channels int) error {
	p.pcm, p.rate, p.ch = pcm, sampleRate, channels
	return p.err
}

func TestTTSSpeak(t *testing.T) {
	provider := tts.NewMock()
	player := &fakePlayer{}
	s := NewTTS(provider, player, log.Discard())

	if err := s.Speak(context.Background(), "There is one cup in front of you."); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if provider.CallCount("Synthesize") != 1 {
		t.Errorf("expected one synthesis, got %d", provider.CallCount("Synthesize"))
	}
	if player.rate != 24000 || player.ch != 1 || len(player.pcm) == 0 {
		t.Errorf("player got rate=%d ch=%d bytes=%d", player.rate, player.ch, len(player.pcm))
	}
}

func TestTTSSpeakIgnoresCancellation(t *testing.T) {
	provider := tts.NewMock()
	base := provider.SynthesizeFunc
	provider.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return base(ctx, text)
	}
	s := NewTTS(provider, &fakePlayer{}, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Speak(ctx, "There is one chair in front of you."); err != nil {
		t.Errorf("announcement should run to completion, got %v", err)
	}
}

func TestTTSSpeakErrors(t *testing.T) {
	boom := errors.New("api down")

	s := NewTTS(tts.WithError(boom), &fakePlayer{}, log.Discard())
	if err := s.Speak(context.Background(), "hello"); !errors.Is(err, boom) {
		t.Errorf("expected synthesis error, got %v", err)
	}

	playErr := errors.New("no device")
	s = NewTTS(tts.NewMock(), &fakePlayer{err: playErr}, log.Discard())
	if err := s.Speak(context.Background(), "hello"); !errors.Is(err, playErr) {
		t.Errorf("expected playback error, got %v", err)
	}

	if err := s.Speak(context.Background(), " "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := Writer{W: &buf}

	w.Speak(context.Background(), "There is one chair in front of you.")
	w.Speak(context.Background(), "There are 2 cups in front of you.")

	want := "There is one chair in front of you.\nThere are 2 cups in front of you.\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestCommand(t *testing.T) {
	c := NewCommand("definitely-not-a-tts-binary")
	if c.Available() {
		t.Fatal("fake binary should not be available")
	}
	if err := c.Speak(context.Background(), "hello"); err == nil {
		t.Error("expected error for missing binary")
	}

	echo := NewCommand("echo", "-n")
	if !echo.Available() {
		t.Skip("echo not on PATH")
	}
	if err := echo.Speak(context.Background(), "hello"); err != nil {
		t.Errorf("echo speak: %v", err)
	}
}

func TestFallback(t *testing.T) {
	ctx := context.Background()
	failing := &Mock{SpeakFunc: func(context.Context, string) error { return errors.New("no audio") }}
	working := NewMock()

	f := NewFallback(log.Discard(), failing, working)
	if err := f.Speak(ctx, "There is one car in front of you."); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if failing.Count() != 1 || working.Count() != 1 {
		t.Errorf("counts failing=%d working=%d", failing.Count(), working.Count())
	}

	allFail := NewFallback(log.Discard(), failing, failing)
	if err := allFail.Speak(ctx, "x"); err == nil {
		t.Error("expected joined error")
	}

	if err := NewFallback(nil).Speak(ctx, "x"); err == nil {
		t.Error("empty fallback should fail")
	}
}

func TestMockRecordsSentences(t *testing.T) {
	m := NewMock()
	m.Speak(context.Background(), "a")
	m.Speak(context.Background(), "b")
	if got := m.Sentences(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Sentences = %v", got)
	}
}
