// Package notify delivers the summary message to the operator.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Sender sends a short text message to a fixed destination and returns
// a delivery id from the transport.
type Sender interface {
	Send(ctx context.Context, body string) (string, error)
}

// LogSender logs the message instead of sending it.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger.With("component", "notify")}
}

// Send logs the body and returns a random delivery id
func (s *LogSender) Send(ctx context.Context, body string) (string, error) {
	id := "log-" + uuid.NewString()
	s.logger.Info("NOTIFICATION", "delivery_id", id, "body", body)
	return id, nil
}
