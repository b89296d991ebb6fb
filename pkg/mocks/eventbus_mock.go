package mocks

import (
	"context"

	"github.com/dukex/refiner/pkg/eventbus"
	"github.com/dukex/refiner/pkg/events"
	"github.com/stretchr/testify/mock"
)

var _ eventbus.EventBus = (*MockEventBus)(nil)

// MockEventBus records published events and handler registrations.
type MockEventBus struct {
	mock.Mock
}

func (m *MockEventBus) Publish(ctx context.Context, key string, event eventbus.Event) error {
	return m.Called(ctx, key, event).Error(0)
}

func (m *MockEventBus) Handle(eventType events.EventType, handler eventbus.Handler) error {
	return m.Called(eventType, handler).Error(0)
}

func (m *MockEventBus) Subscribe(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockEventBus) Close() error {
	return m.Called().Error(0)
}
