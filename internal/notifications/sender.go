package notifications

import (
	"context"

	"github.com/printforge/printforge-backend/pkg/config"
	"github.com/printforge/printforge-backend/pkg/logger"
)

// Message is the outbound payload handed to the external sink.
type Message struct {
	CustomerID string
	Subject    string
	Body       string
}

// Sender is the boundary to the external notification sink. Failures are
// logged by callers and never propagated into the primary operation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NopSender discards messages; used when no sink is configured.
type NopSender struct{}

func (NopSender) Send(ctx context.Context, msg Message) error { return nil }

// LogSender writes each outbound message to the structured log. It stands in
// for the real email provider until one is wired up.
type LogSender struct {
	cfg  config.NotificationsConfig
	logg *logger.Logger
}

func NewLogSender(cfg config.NotificationsConfig, logg *logger.Logger) *LogSender {
	return &LogSender{cfg: cfg, logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if s.logg == nil {
		return nil
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"from_email":  s.cfg.FromEmail,
		"from_name":   s.cfg.FromName,
		"customer_id": msg.CustomerID,
		"subject":     msg.Subject,
	})
	s.logg.Info(ctx, "notification sent")
	return nil
}
