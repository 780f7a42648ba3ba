package outbox

import "context"

// Event is any domain event with a name identifier.
type Event interface {
	EventName() string
}

// Keyed events name the aggregate they belong to; the bus logs it for correlation.
type Keyed interface {
	AggregateID() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Middleware decorates a Handler, e.g. to attach an event-scoped logger.
type Middleware func(Handler) Handler

// Publisher publishes events to interested subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers handlers for event names.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// AggregateID returns the aggregate of e, or "" for unkeyed events.
func AggregateID(e Event) string {
	if k, ok := e.(Keyed); ok {
		return k.AggregateID()
	}
	return ""
}
