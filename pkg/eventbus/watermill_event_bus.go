package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/refiner/pkg/events"
)

// Option configures a WatermillEventBus.
type Option func(*WatermillEventBus)

// WithTopic publishes and subscribes on topic instead of events.Topic.
func WithTopic(topic string) Option {
	return func(eb *WatermillEventBus) {
		eb.topic = topic
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(eb *WatermillEventBus) {
		eb.logger = logger.With("module", "event_bus")
	}
}

// WatermillEventBus carries events as JSON Watermill messages on a single topic. The
// event type and partition key travel in the message metadata.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	logger     *slog.Logger
	mu         sync.RWMutex
	handlers   map[events.EventType]Handler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, opts ...Option) *WatermillEventBus {
	eb := &WatermillEventBus{
		publisher:  pub,
		subscriber: sub,
		topic:      events.Topic,
		logger:     slog.Default().With("module", "event_bus"),
		handlers:   make(map[events.EventType]Handler),
	}

	for _, opt := range opts {
		opt(eb)
	}

	return eb
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))
	msg.SetContext(ctx)

	if err := eb.publisher.Publish(eb.topic, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.GetType(), err)
	}

	return nil
}

// Handle registers the handler of eventType. Each type has at most one handler.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler Handler) error {
	if _, known := factories[eventType]; !known {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, exists := eb.handlers[eventType]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, eventType)
	}

	eb.handlers[eventType] = handler

	return nil
}

// Subscribe starts dispatching messages to the registered handlers until ctx is done
// or the subscriber is closed. Messages without a handler are acknowledged and dropped.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, eb.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", eb.topic, err)
	}

	go func() {
		for msg := range messages {
			eb.dispatch(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

	eb.mu.RLock()
	handler, exists := eb.handlers[eventType]
	eb.mu.RUnlock()

	if !exists {
		msg.Ack()

		return
	}

	logger := eb.logger.With("event_type", eventType, "message_id", msg.UUID)

	event, err := decode(eventType, msg.Payload)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping undecodable event", "error", err)
		msg.Ack()

		return
	}

	if err := handler(ctx, event); err != nil {
		logger.WarnContext(ctx, "Event handler failed", "error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

var factories = map[events.EventType]func() Event{
	events.LineageRecordedEvent:  func() Event { return &events.LineageRecorded{} },
	events.WorkflowSavedEvent:    func() Event { return &events.WorkflowSaved{} },
	events.RefinementHaltedEvent: func() Event { return &events.RefinementHalted{} },
}

func decode(eventType events.EventType, payload []byte) (Event, error) {
	factory, ok := factories[eventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	event := factory()
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", eventType, err)
	}

	return event, nil
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return err
	}

	return eb.subscriber.Close()
}
