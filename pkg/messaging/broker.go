package messaging

import (
	"context"
)

// Broker is the pub/sub transport between the outbox worker and the
// notification consumers.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
