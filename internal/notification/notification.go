package notification

import (
	"context"
	"log/slog"
)

const (
	// KindVerificationCode is the activation code an admin relays to a user
	// out-of-band to confirm phone ownership.
	KindVerificationCode = "verification_code"
)

// Message describes a notification payload. Destination is a deep link the
// admin opens (the delivery channel itself is outside the gateway).
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier hands notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger so the admin
// sees the link to open.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
