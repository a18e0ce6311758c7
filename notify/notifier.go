// Package notify delivers operator notifications about deployments.
package notify

import (
	"log/slog"
)

// Notifier receives a subject and a plain-text body. Implementations must
// not return errors to the caller; delivery failures are logged.
type Notifier interface {
	Notify(subject, body string)
}

// Func adapts a plain function to Notifier.
type Func func(subject, body string)

// Notify calls f.
func (f Func) Notify(subject, body string) { f(subject, body) }

// LogNotifier writes notifications to the structured log. It is used when
// no mail server is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the message at info level.
func (n LogNotifier) Notify(subject, body string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "subject", subject, "body", body)
}

// Multi fans one notification out to several notifiers.
type Multi []Notifier

// Notify delivers to every notifier in order.
func (m Multi) Notify(subject, body string) {
	for _, n := range m {
		if n != nil {
			n.Notify(subject, body)
		}
	}
}
