package core

import (
	"context"
	"errors"
)

var (
	// ErrDecoyNotFound is returned by a registry when no decoy matches the address
	ErrDecoyNotFound = errors.New("decoy not found")
	// ErrRegistryUnavailable marks a lookup that failed for a reason other than no match
	ErrRegistryUnavailable = errors.New("decoy registry unavailable")
	// ErrEventPersistence marks a failure to record a decoy hit
	ErrEventPersistence = errors.New("failed to record event")
	// ErrQueueFull is returned when the alert queue cannot accept more work
	ErrQueueFull = errors.New("alert queue full")
)

// DecoyRegistry maps decoy addresses to their owners
type DecoyRegistry interface {
	// LookupDecoy returns the decoy registered for address or ErrDecoyNotFound
	LookupDecoy(ctx context.Context, address string) (*Decoy, error)

	// UpsertDecoy creates or replaces the decoy for its address
	UpsertDecoy(ctx context.Context, decoy *Decoy) error

	// ListDecoys returns all decoys with their event counts, newest first
	ListDecoys(ctx context.Context) ([]*DecoyStats, error)
}

// EventLog is the append-only record of decoy hits
type EventLog interface {
	// RecordEvent appends an event and returns its sequence number
	RecordEvent(ctx context.Context, event *Event) (int64, error)

	// RecentEvents returns up to limit events, newest first
	RecentEvents(ctx context.Context, limit int) ([]*Event, error)
}

// GeoResolver translates an IP address into a location string.
// Implementations never fail; they return GeoDegraded instead.
type GeoResolver interface {
	ResolveGeo(ctx context.Context, ip string) GeoResult
}

// RawMessageFetcher retrieves the original message from the inbound-mail provider.
// Implementations never fail; they return RawMessageAbsent instead.
type RawMessageFetcher interface {
	FetchRawMessage(ctx context.Context, referenceURL string) RawMessageResult
}

// AlertSender delivers one alert through an outbound provider
type AlertSender interface {
	SendAlert(ctx context.Context, alert *Alert) error
}

// AlertDispatcher schedules an alert for delivery
type AlertDispatcher interface {
	Dispatch(ctx context.Context, alert *Alert) error
}

// Metrics receives pipeline outcomes
type Metrics interface {
	IngestionOutcome(outcome string)
	EnrichmentDegraded(call string)
	DispatchOutcome(outcome string)
}

// Outcome labels reported through Metrics
const (
	OutcomeMatched   = "matched"
	OutcomeUnmatched = "unmatched"
	OutcomeFailed    = "failed"

	CallGeo        = "geo"
	CallRawMessage = "raw_message"

	DispatchSent     = "sent"
	DispatchFailed   = "failed"
	DispatchRejected = "rejected"
)

// NopMetrics discards all observations
type NopMetrics struct{}

func (NopMetrics) IngestionOutcome(string)   {}
func (NopMetrics) EnrichmentDegraded(string) {}
func (NopMetrics) DispatchOutcome(string)    {}
