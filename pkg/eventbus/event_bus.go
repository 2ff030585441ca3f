// Package eventbus provides event-driven communication infrastructure for
// execution orchestration.
package eventbus

import (
	"context"

	"github.com/dukex/cascade/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

// EventPublisher accepts any value implementing Event. The parameter is typed
// any so the bus satisfies protocol.EventPublisher directly.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event interface{}) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
