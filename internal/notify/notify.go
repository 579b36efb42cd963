// Package notify shows desktop notifications.
package notify

import (
	"sync/atomic"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

const appName = "Mudra"

const maxMessageLen = 100

// Notifier sends desktop notifications.
type Notifier struct {
	enabled atomic.Bool
	send    func(title, message string) error
	logger  *zap.Logger
}

// New creates a Notifier.
func New(enabled bool, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Notifier{
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		logger: logger.Named("notify"),
	}
	n.enabled.Store(enabled)
	return n
}

// SetEnabled turns notifications on or off.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled.Store(enabled)
}

// Enabled reports whether notifications are shown.
func (n *Notifier) Enabled() bool {
	return n.enabled.Load()
}

// Connected announces a connected recognizer.
func (n *Notifier) Connected() {
	n.notify("Recognition started", "Connected to the gesture recognizer")
}

// Disconnected announces an unexpected disconnect.
func (n *Notifier) Disconnected(reason string) {
	n.notify("Recognition stopped", reason)
}

// Error shows a failure.
func (n *Notifier) Error(msg string) {
	n.notify("Error", msg)
}

// Info shows an informational message.
func (n *Notifier) Info(msg string) {
	n.notify("", msg)
}

func (n *Notifier) notify(title, message string) {
	if n == nil || !n.enabled.Load() {
		return
	}
	if len(message) > maxMessageLen {
		message = message[:maxMessageLen] + "..."
	}

	full := appName
	if title != "" {
		full = appName + ": " + title
	}
	// A missing notification daemon is not worth more than a debug line.
	if err := n.send(full, message); err != nil {
		n.logger.Debug("Notification failed", zap.Error(err))
	}
}
