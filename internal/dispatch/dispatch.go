package dispatch

import (
	"context"
	"time"

	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single send when none is configured
const DefaultTimeout = 15 * time.Second

// deliverer performs one send attempt and reports its outcome
type deliverer struct {
	sender  core.AlertSender
	timeout time.Duration
	metrics core.Metrics
	logger  *zap.Logger
}

func newDeliverer(sender core.AlertSender, timeout time.Duration, metrics core.Metrics, logger *zap.Logger) deliverer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return deliverer{sender: sender, timeout: timeout, metrics: metrics, logger: logger}
}

// deliver sends the alert once under the configured timeout. There is no retry.
func (d deliverer) deliver(ctx context.Context, alert *core.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.sender.SendAlert(ctx, alert); err != nil {
		d.metrics.DispatchOutcome(core.DispatchFailed)
		d.logger.Error("Failed to send alert",
			zap.String("decoy", alert.DecoyAddress),
			zap.String("recipient", alert.Recipient),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return err
	}

	d.metrics.DispatchOutcome(core.DispatchSent)
	d.logger.Info("Alert sent",
		zap.String("decoy", alert.DecoyAddress),
		zap.String("recipient", alert.Recipient),
		zap.Bool("attachment", alert.Attachment != nil),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// Sync sends alerts inline on the caller's goroutine
type Sync struct {
	deliverer
}

// NewSync creates a synchronous dispatcher
func NewSync(sender core.AlertSender, timeout time.Duration, metrics core.Metrics, logger *zap.Logger) *Sync {
	return &Sync{deliverer: newDeliverer(sender, timeout, metrics, logger)}
}

// Dispatch sends the alert and returns the send error. The caller's
// cancellation is not inherited so a dropped webhook request does not
// abort a send that is already under way.
func (s *Sync) Dispatch(ctx context.Context, alert *core.Alert) error {
	return s.deliver(context.WithoutCancel(ctx), alert)
}

// Stop is a no-op
func (s *Sync) Stop(context.Context) error {
	return nil
}
