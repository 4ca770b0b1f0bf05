package ports

// InboundServer receives inbound-mail notifications from the provider
type InboundServer interface {
	// Start begins accepting notifications; it does not block
	Start() error

	// Stop stops accepting notifications and waits for in-flight ones
	Stop() error
}
