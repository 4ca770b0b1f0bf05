package core

import (
	"time"
)

// UnknownLocation is substituted whenever the sender IP cannot be geolocated
const UnknownLocation = "Unknown location"

// Decoy is a planted address owned by a customer
type Decoy struct {
	Address       string
	CustomerEmail string
	UseCase       string
	CreatedAt     time.Time
}

// DecoyStats is a decoy together with the number of events recorded against it
type DecoyStats struct {
	Decoy
	Alerts int64
}

// Event is a durable record that a decoy received a message
type Event struct {
	ID           int64
	DecoyAddress string
	Sender       string
	IP           string
	Subject      string
	CreatedAt    time.Time
}

// InboundMessage holds the fields of one inbound-mail webhook call.
// Every field may be empty.
type InboundMessage struct {
	Recipient        string
	Sender           string
	Subject          string
	Body             string
	SenderIPHeader   string
	MessageReference string
	PeerIP           string
}

// Attachment is a file carried by an alert
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Alert is the notification sent to a decoy owner. It is never persisted.
type Alert struct {
	Recipient    string
	DecoyAddress string
	Sender       string
	IP           string
	Geo          string
	UseCase      string
	// OriginalSubject is the subject of the message that hit the decoy
	OriginalSubject string
	BodyPreview     string
	// Subject and Body are the rendered notification
	Subject    string
	Body       string
	Attachment *Attachment
	ComposedAt time.Time
}

// GeoResult is the outcome of a reverse-geo lookup
type GeoResult struct {
	Location string
	Degraded bool
	Cause    error
}

// GeoResolved returns a successful lookup
func GeoResolved(location string) GeoResult {
	return GeoResult{Location: location}
}

// GeoDegraded returns the placeholder location together with the reason
func GeoDegraded(cause error) GeoResult {
	return GeoResult{Location: UnknownLocation, Degraded: true, Cause: cause}
}

// RawMessageResult is the outcome of fetching the original message
type RawMessageResult struct {
	Data    []byte
	Present bool
	Cause   error
}

// RawMessageFetched returns the retrieved bytes
func RawMessageFetched(data []byte) RawMessageResult {
	return RawMessageResult{Data: data, Present: true}
}

// RawMessageAbsent returns an empty result. cause is nil when no fetch was attempted.
func RawMessageAbsent(cause error) RawMessageResult {
	return RawMessageResult{Cause: cause}
}

// IngestionResult describes what one HandleInbound call did
type IngestionResult struct {
	IngestionID string
	Matched     bool
	// EventID is the recorded event's sequence number. It can be 0 for a
	// matched hit whose row was committed but whose id the driver could
	// not report; use Matched, not EventID, to tell a hit from a miss.
	EventID     int64
	Location    string
	GeoDegraded bool
	Attachment  bool
	// Dispatched is true when the alert was handed to the dispatcher without error
	Dispatched bool
}
