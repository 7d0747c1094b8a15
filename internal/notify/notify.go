// Package notify shows desktop notifications for narrator events.
package notify

import (
	"log/slog"
	"sync/atomic"

	"github.com/gen2brain/beeep"
)

const appName = "Narrator"

// maxMessage bounds notification bodies.
const maxMessage = 100

// Notifier sends desktop notifications.
type Notifier struct {
	enabled atomic.Bool
	logger  *slog.Logger

	// send defaults to beeep.Notify.
	send func(title, message, icon string) error
}

// New creates a Notifier.
func New(enabled bool, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Notifier{
		logger: logger.With("component", "notify"),
		send:   beeep.Notify,
	}
	n.enabled.Store(enabled)
	return n
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// Voice reports a voice toggle.
func (n *Notifier) Voice(on bool) {
	if on {
		n.notify("", "Voice output enabled")
	} else {
		n.notify("", "Voice output disabled")
	}
}

// SpeechFailed reports an announcement that could not be spoken.
func (n *Notifier) SpeechFailed(text string, err error) {
	msg := text
	if err != nil {
		msg = err.Error() + ": " + text
	}
	n.notify("speech failed", msg)
}

// Started reports the detection loop starting.
func (n *Notifier) Started() {
	n.notify("", "Detection started")
}

// Stopped reports the detection loop ending.
func (n *Notifier) Stopped() {
	n.notify("", "Detection stopped")
}

func (n *Notifier) notify(title, message string) {
	if !n.enabled.Load() {
		return
	}
	if len(message) > maxMessage {
		message = message[:maxMessage] + "..."
	}
	full := appName
	if title != "" {
		full = appName + ": " + title
	}
	// Notification failures are not worth surfacing beyond debug.
	if err := n.send(full, message, ""); err != nil {
		n.logger.Debug("notification failed", "error", err)
	}
}
