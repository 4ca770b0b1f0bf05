package ports

import (
	"context"

	"github.com/mikey/decoy-alerts/internal/core"
)

// AlertDispatcher schedules alerts for delivery and can be drained on shutdown
type AlertDispatcher interface {
	core.AlertDispatcher

	// Stop refuses new alerts and waits for pending ones until ctx ends
	Stop(ctx context.Context) error
}
