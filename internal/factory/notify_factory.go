package factory

import (
	"fmt"

	"github.com/mikey/decoy-alerts/internal/adapters/notify"
	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/core"
	"github.com/mikey/decoy-alerts/internal/dispatch"
	"github.com/mikey/decoy-alerts/internal/ports"
	"go.uber.org/zap"
)

// NotifyFactory creates the alert sender and dispatcher
type NotifyFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics core.Metrics
}

// NewNotifyFactory creates a new notify factory
func NewNotifyFactory(cfg *config.Config, logger *zap.Logger, metrics core.Metrics) *NotifyFactory {
	return &NotifyFactory{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// CreateAlertSender creates the sender selected by alert.transport
func (f *NotifyFactory) CreateAlertSender() (core.AlertSender, error) {
	alert, err := f.cfg.GetAlert()
	if err != nil {
		return nil, fmt.Errorf("invalid alert configuration: %w", err)
	}

	switch alert.Transport {
	case "sendgrid":
		sg := f.cfg.GetSendGrid()
		if sg.APIKey == "" {
			f.logger.Warn("SendGrid API key not configured, alerts will fail to send")
		}
		return notify.NewSendGridSender(sg.APIKey, sg.BaseURL, alert.SenderAddress, alert.SenderName, f.logger), nil
	case "smtp":
		relay := f.cfg.GetSMTP()
		return notify.NewSMTPSender(relay.Address, relay.Helo, alert.SenderAddress, alert.SenderName, f.logger), nil
	case "log":
		return notify.NewLogSender(f.logger), nil
	default:
		return nil, fmt.Errorf("unsupported alert transport: %s", alert.Transport)
	}
}

// CreateDispatcher wraps sender in a worker pool, or a synchronous
// dispatcher when dispatch.workers is 0
func (f *NotifyFactory) CreateDispatcher(sender core.AlertSender) (ports.AlertDispatcher, error) {
	alert, err := f.cfg.GetAlert()
	if err != nil {
		return nil, fmt.Errorf("invalid alert configuration: %w", err)
	}

	d := f.cfg.GetDispatch()
	if d.Workers <= 0 {
		return dispatch.NewSync(sender, alert.Timeout, f.metrics, f.logger), nil
	}
	return dispatch.NewPool(sender, d.Workers, d.QueueSize, alert.Timeout, f.metrics, f.logger), nil
}
