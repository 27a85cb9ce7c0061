package rabbitmq_consumer

import "context"

// Consumer is what adapters hold instead of a concrete consumer type.
type Consumer interface {
	StartConsuming(ctx context.Context) error
	Close() error
}
