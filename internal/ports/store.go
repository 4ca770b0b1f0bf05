package ports

import (
	"github.com/mikey/decoy-alerts/internal/core"
)

// Store is a decoy registry and event log sharing one backing database
type Store interface {
	core.DecoyRegistry
	core.EventLog

	// Close releases the underlying connections
	Close() error
}
