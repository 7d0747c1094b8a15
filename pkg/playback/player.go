// Package playback plays raw PCM16 audio on the default output device
// through PortAudio. Play blocks until the last buffer has been written.
package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// FramesPerBuffer is the PortAudio buffer size in frames.
const FramesPerBuffer = 1024

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("playback: player closed")

// Player writes PCM to the default output stream.
// Calls to Play are serialized; only one utterance plays at a time.
type Player struct {
	mu     sync.Mutex
	closed bool
	logger *slog.Logger
}

// New initializes PortAudio. Close must be called to terminate it.
func New(logger *slog.Logger) (*Player, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("playback: init portaudio: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{logger: logger.With("component", "playback")}, nil
}

// Play plays little-endian PCM16 audio and returns once it has been handed
// to the device in full. It cannot be interrupted.
func (p *Player) Play(pcm []byte, sampleRate, channels int) error {
	if err := ValidateFormat(sampleRate, channels); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	samples := DecodePCM16(pcm)
	if len(samples) == 0 {
		return nil
	}

	buf := make([]int16, FramesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), FramesPerBuffer, buf)
	if err != nil {
		return fmt.Errorf("playback: open stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("playback: start stream: %w", err)
	}

	for _, chunk := range Chunks(samples, len(buf)) {
		n := copy(buf, chunk)
		clear(buf[n:])
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			stream.Stop()
			return fmt.Errorf("playback: write: %w", err)
		}
	}

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("playback: stop stream: %w", err)
	}

	p.logger.Debug("played audio", "samples", len(samples), "sample_rate", sampleRate)
	return nil
}

// Close terminates PortAudio. It is safe to call more than once.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return portaudio.Terminate()
}

// ValidateFormat rejects sample rates and channel counts PortAudio cannot use.
func ValidateFormat(sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("playback: invalid sample rate %d", sampleRate)
	}
	if channels < 1 || channels > 2 {
		return fmt.Errorf("playback: unsupported channel count %d", channels)
	}
	return nil
}

// DecodePCM16 converts little-endian PCM16 bytes to samples.
// A trailing odd byte is dropped.
func DecodePCM16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// Chunks splits samples into consecutive slices of at most size samples.
func Chunks(samples []int16, size int) [][]int16 {
	if size <= 0 {
		return nil
	}
	var out [][]int16
	for off := 0; off < len(samples); off += size {
		end := min(off+size, len(samples))
		out = append(out, samples[off:end])
	}
	return out
}
