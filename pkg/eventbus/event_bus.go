// Package eventbus provides event-driven communication infrastructure for
// the workflow and decision engines.
package eventbus

import (
	"context"

	"github.com/Nirvasoft/FlowForge-sub003/pkg/events"
)

type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
