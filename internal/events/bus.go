// Package events is the in-process publish/subscribe bus.
package events

import "github.com/kelindar/event"

// Publisher is the side of the bus producers depend on.
type Publisher interface {
	Publish(ev Event)
}

// Bus fans events out to subscribers through a kelindar/event dispatcher.
// Delivery is asynchronous and per subscriber.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New returns an empty bus.
func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish delivers ev to every subscriber of its concrete type. Unknown
// event types are dropped.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SessionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case CandidateProbedEvent:
		event.Publish(b.dispatcher, e)
	case FrameFrozenEvent:
		event.Publish(b.dispatcher, e)
	case RecognitionEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler, whose parameter type selects the events it
// receives, e.g. func(RecognitionEvent). It returns the unsubscribe func; an
// unsupported handler type gets a no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SessionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CandidateProbedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameFrozenEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecognitionEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
