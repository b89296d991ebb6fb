// Package eventbus publishes refinement lifecycle events and dispatches them to handlers.
package eventbus

import (
	"context"
	"errors"

	"github.com/dukex/refiner/pkg/events"
)

var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrHandlerExists    = errors.New("handler already registered")
)

// Event is a refinement lifecycle event.
type Event interface {
	GetType() events.EventType
}

// Publisher publishes events under a partition key. Events sharing a key are
// delivered in publish order by partitioned transports.
type Publisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// Handler consumes one decoded event. A returned error asks the transport to
// redeliver the message.
type Handler func(ctx context.Context, event Event) error

type Subscriber interface {
	Handle(eventType events.EventType, handler Handler) error
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	Publisher
	Subscriber
	Close() error
}
