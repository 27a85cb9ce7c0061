package port

import "context"

// EventListenerPort is the contract for a component that listens for
// external events (queue messages) and dispatches them into the core.
type EventListenerPort interface {
	// Start runs the listener until the context is cancelled.
	Start(ctx context.Context) error

	// Close stops the listener, waiting for in-flight handlers.
	Close() error
}
