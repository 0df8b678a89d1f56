package events

import (
	"fmt"
	"slices"
	"sync"
)

type Handler func(Event)

// Subscription identifies a registered handler. The zero value is not a
// valid subscription.
type Subscription struct {
	id   uint64
	kind Kind
}

// Kind returns the kind the subscription is filtered on, or an empty kind
// for subscriptions receiving every event.
func (s Subscription) Kind() Kind { return s.kind }

type subscriber struct {
	id      uint64
	kind    Kind
	handler Handler
}

// Bus is a multi-subscriber registry. Handlers are called synchronously by
// Publish in subscription order; a handler panic is recovered and logged
// and does not prevent delivery to the remaining handlers.
type Bus struct {
	mu          sync.RWMutex
	lastID      uint64
	subscribers []subscriber
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers handler for events of the given kind.
func (b *Bus) Subscribe(kind Kind, handler Handler) Subscription {
	return b.subscribe(kind, handler)
}

// SubscribeAll registers handler for every published event.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	return b.subscribe("", handler)
}

func (b *Bus) subscribe(kind Kind, handler Handler) Subscription {
	if handler == nil {
		return Subscription{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastID++
	b.subscribers = append(b.subscribers, subscriber{id: b.lastID, kind: kind, handler: handler})
	return Subscription{id: b.lastID, kind: kind}
}

// Unsubscribe removes the handler registered under sub. It reports whether
// the subscription was still registered. A publish already in progress may
// still call the handler once.
func (b *Bus) Unsubscribe(sub Subscription) bool {
	if sub.id == 0 {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.IndexFunc(b.subscribers, func(s subscriber) bool { return s.id == sub.id })
	if i < 0 {
		return false
	}
	b.subscribers = slices.Delete(b.subscribers, i, i+1)
	return true
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish delivers event to every matching handler before returning.
func (b *Bus) Publish(event Event) {
	if b == nil || event == nil {
		return
	}

	b.mu.RLock()
	subscribers := slices.Clone(b.subscribers)
	b.mu.RUnlock()

	kind := event.Kind()
	for _, s := range subscribers {
		if s.kind != "" && s.kind != kind {
			continue
		}
		deliver(s, event)
	}
}

func deliver(s subscriber, event Event) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("event handler panicked",
				"kind", string(event.Kind()),
				"subscription", s.id,
				"error", fmt.Sprint(recovered))
		}
	}()
	s.handler(event)
}

// On registers a handler for every event of type T.
func On[T Event](b *Bus, handler func(T)) Subscription {
	if handler == nil {
		return Subscription{}
	}
	return b.SubscribeAll(func(event Event) {
		if typed, ok := event.(T); ok {
			handler(typed)
		}
	})
}
