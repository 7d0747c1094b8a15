package speech

import (
	"context"
	"sync"
	"time"
)

// Mock implements Speaker for testing and records every sentence.
type Mock struct {
	// SpeakFunc, if set, is called for each sentence after it is recorded.
	SpeakFunc func(ctx context.Context, text string) error

	mu        sync.Mutex
	sentences []string
}

// NewMock creates a Mock that always succeeds.
func NewMock() *Mock {
	return &Mock{}
}

// WithDelay returns a Mock that blocks for d per sentence.
func WithDelay(d time.Duration) *Mock {
	return &Mock{SpeakFunc: func(context.Context, string) error {
		time.Sleep(d)
		return nil
	}}
}

// Speak records text and calls SpeakFunc.
func (m *Mock) Speak(ctx context.Context, text string) error {
	m.mu.Lock()
	m.sentences = append(m.sentences, text)
	fn := m.SpeakFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return nil
}

// Sentences returns everything spoken so far.
func (m *Mock) Sentences() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sentences))
	copy(out, m.sentences)
	return out
}

// Count returns how many sentences were spoken.
func (m *Mock) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sentences)
}

var _ Speaker = (*Mock)(nil)
