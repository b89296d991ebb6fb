package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/refiner/pkg/channels/gochannel"
	"github.com/dukex/refiner/pkg/channels/kafka"
	"github.com/dukex/refiner/pkg/eventbus"
)

// NewEventBus creates the event bus for provider. An empty provider or "none"
// disables event publishing and returns a nil bus.
func NewEventBus(provider string, kafkaBrokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "", "none":
		return nil, nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, eventbus.WithLogger(logger)), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), kafka.ParseBrokers(kafkaBrokers), "refiner")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, eventbus.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

// SubscribeProjection stores the workflows and lineage published on bus into store
// until ctx is done.
func SubscribeProjection(ctx context.Context, bus eventbus.EventBus, store eventbus.Store, logger *slog.Logger) error {
	if err := eventbus.NewProjection(store, logger).Register(bus); err != nil {
		return fmt.Errorf("failed to register projection: %w", err)
	}

	return bus.Subscribe(ctx)
}
