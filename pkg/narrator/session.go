package narrator

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-narrator/pkg/reliability"
)

// Session owns the speech state of one narration run: the voice flag, the
// time of the last announcement and the reliability windows.
//
// Only the voice flag may be touched from other goroutines. Everything else
// belongs to the frame loop.
type Session struct {
	ID        string
	CreatedAt time.Time

	enabled          atomic.Bool
	lastAnnouncement time.Time // zero until the first announcement
	tracker          *reliability.Tracker
}

// NewSession creates a session with its own tracker.
func NewSession(cfg reliability.Config, voice bool, now time.Time) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		tracker:   reliability.New(cfg),
	}
	s.enabled.Store(voice)
	return s
}

// VoiceEnabled reports whether announcements are on.
func (s *Session) VoiceEnabled() bool {
	return s.enabled.Load()
}

// SwapVoice sets the voice flag and returns the previous value.
func (s *Session) SwapVoice(on bool) (old bool) {
	return s.enabled.Swap(on)
}

// ToggleVoice flips the voice flag and returns the new value.
func (s *Session) ToggleVoice() bool {
	for {
		old := s.enabled.Load()
		if s.enabled.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// LastAnnouncement returns when speech was last dispatched.
func (s *Session) LastAnnouncement() time.Time {
	return s.lastAnnouncement
}

// Tracker returns the session's reliability tracker.
func (s *Session) Tracker() *reliability.Tracker {
	return s.tracker
}

// cooledDown reports whether now is strictly past the cooldown.
func (s *Session) cooledDown(now time.Time, cooldown time.Duration) bool {
	if s.lastAnnouncement.IsZero() {
		return true
	}
	return now.Sub(s.lastAnnouncement) > cooldown
}

// Close tears the session down: voice off, windows cleared.
func (s *Session) Close() {
	s.enabled.Store(false)
	s.tracker.Clear()
}
