// Package events is a typed publish/subscribe bus. Topics carry their payload
// type, so publishers and subscribers agree on the schema at compile time.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Topic names an event stream whose payloads are of type T.
type Topic[T any] struct {
	name string
}

func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

func (t Topic[T]) Name() string {
	return t.name
}

// Envelope is the untyped view of a published event, delivered to taps.
type Envelope struct {
	Topic   string    `json:"topic"`
	Payload any       `json:"payload"`
	At      time.Time `json:"at"`
}

type subscription struct {
	id uint64
	fn func(any)
}

// Bus delivers events synchronously, in subscription order, on the publisher's
// goroutine.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]subscription
	taps     []subscription
	logger   zerolog.Logger
	now      func() time.Time
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]subscription),
		logger:   logger,
		now:      time.Now,
	}
}

// Subscribe registers fn for topic and returns a function that removes it.
func Subscribe[T any](b *Bus, topic Topic[T], fn func(T)) func() {
	if b == nil || fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[topic.name] = append(b.handlers[topic.name], subscription{
		id: id,
		fn: func(payload any) {
			typed, ok := payload.(T)
			if !ok {
				return
			}
			fn(typed)
		},
	})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.handlers[topic.name] = removeSubscription(b.handlers[topic.name], id)
	}
}

// Publish delivers payload to every subscriber of topic, then to every tap.
func Publish[T any](b *Bus, topic Topic[T], payload T) {
	if b == nil {
		return
	}

	b.mu.RLock()
	handlers := append([]subscription(nil), b.handlers[topic.name]...)
	taps := append([]subscription(nil), b.taps...)
	b.mu.RUnlock()

	for _, sub := range handlers {
		b.deliver(topic.name, sub, payload)
	}
	if len(taps) == 0 {
		return
	}

	envelope := Envelope{Topic: topic.name, Payload: payload, At: b.now().UTC()}
	for _, sub := range taps {
		b.deliver(topic.name, sub, envelope)
	}
}

// Tap registers fn to receive every event on every topic.
func (b *Bus) Tap(fn func(Envelope)) func() {
	if b == nil || fn == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.taps = append(b.taps, subscription{
		id: id,
		fn: func(payload any) {
			if envelope, ok := payload.(Envelope); ok {
				fn(envelope)
			}
		},
	})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.taps = removeSubscription(b.taps, id)
	}
}

func (b *Bus) deliver(topic string, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("topic", topic).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	sub.fn(payload)
}

func removeSubscription(subs []subscription, id uint64) []subscription {
	out := subs[:0:0]
	for _, sub := range subs {
		if sub.id != id {
			out = append(out, sub)
		}
	}
	return out
}
