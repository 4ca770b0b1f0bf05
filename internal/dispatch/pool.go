package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// ErrStopped is returned when an alert is submitted after Stop
var ErrStopped = errors.New("dispatcher stopped")

// Pool delivers alerts from a bounded queue using a fixed set of workers
type Pool struct {
	deliverer
	queue chan *core.Alert

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool starts workers goroutines reading from a queue of queueSize alerts
func NewPool(sender core.AlertSender, workers, queueSize int, timeout time.Duration, metrics core.Metrics, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		deliverer: newDeliverer(sender, timeout, metrics, logger),
		queue:     make(chan *core.Alert, queueSize),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.work()
	}

	logger.Info("Alert dispatcher started",
		zap.Int("workers", workers),
		zap.Int("queue_size", queueSize))
	return p
}

// Dispatch queues the alert without blocking. A full queue rejects the
// alert with core.ErrQueueFull; it is not retried.
func (p *Pool) Dispatch(_ context.Context, alert *core.Alert) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.metrics.DispatchOutcome(core.DispatchRejected)
		return ErrStopped
	}

	select {
	case p.queue <- alert:
		return nil
	default:
		p.metrics.DispatchOutcome(core.DispatchRejected)
		p.logger.Error("Alert queue full, dropping alert",
			zap.String("decoy", alert.DecoyAddress),
			zap.String("recipient", alert.Recipient),
			zap.Int("queue_size", cap(p.queue)))
		return core.ErrQueueFull
	}
}

// Stop refuses new alerts and waits for the queued ones to be sent, or
// for ctx to end
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Alert dispatcher drained")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Alert dispatcher stopped before the queue drained",
			zap.Int("pending", len(p.queue)))
		return ctx.Err()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for alert := range p.queue {
		// Errors are logged and counted by deliver
		_ = p.deliver(context.Background(), alert)
	}
}
