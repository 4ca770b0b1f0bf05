package notify

import (
	"context"

	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// LogSender writes alerts to the log instead of delivering them. It is
// meant for dry runs and local development.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a new log-only sender
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendAlert logs the composed alert
func (s *LogSender) SendAlert(_ context.Context, alert *core.Alert) error {
	fields := []zap.Field{
		zap.String("recipient", alert.Recipient),
		zap.String("decoy", alert.DecoyAddress),
		zap.String("subject", alert.Subject),
		zap.String("body", alert.Body),
	}
	if alert.Attachment != nil {
		fields = append(fields,
			zap.String("attachment", alert.Attachment.Filename),
			zap.Int("attachment_bytes", len(alert.Attachment.Data)))
	}
	s.logger.Info("Alert (dry run)", fields...)
	return nil
}
