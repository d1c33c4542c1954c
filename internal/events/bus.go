// Package events provides the app-scoped event bus: foreground/background
// transitions and deep links. A Bus is constructed explicitly and passed to
// whoever needs it.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Topic names a kind of app event.
type Topic string

const (
	TopicAppForeground Topic = "app.foreground"
	TopicAppBackground Topic = "app.background"
	TopicDeepLink      Topic = "app.deeplink"
)

// Event is a single app event. Target is set for deep links (a room id).
type Event struct {
	Topic  Topic
	Target string
	At     time.Time
}

// Handler handles one event. Handlers run on the bus goroutine, one at a
// time, in publish order.
type Handler func(Event)

type subscription struct {
	id int
	h  Handler
}

// Bus dispatches published events to subscribers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]subscription
	nextID   int

	queue chan Event

	linkMu      sync.Mutex
	pendingLink string
}

// New creates a Bus. Nothing is dispatched until Run is called.
func New() *Bus {
	return &Bus{
		handlers: make(map[Topic][]subscription),
		queue:    make(chan Event, 64),
	}
}

// Subscribe registers h for topic and returns a function removing it.
func (b *Bus) Subscribe(topic Topic, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[topic] = append(b.handlers[topic], subscription{id: id, h: h})
	log.Debug().Str("topic", string(topic)).Msg("[events] subscribed")

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[topic]
		for i, s := range subs {
			if s.id == id {
				b.handlers[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish queues an event without blocking. The event is dropped if the
// queue is full. A deep link is also retained until PendingDeepLink reads it.
func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.Topic == TopicDeepLink {
		b.linkMu.Lock()
		b.pendingLink = ev.Target
		b.linkMu.Unlock()
	}

	select {
	case b.queue <- ev:
	default:
		log.Warn().Str("topic", string(ev.Topic)).Msg("[events] queue full, event dropped")
	}
}

// PendingDeepLink returns and clears the most recent deep link target.
func (b *Bus) PendingDeepLink() (string, bool) {
	b.linkMu.Lock()
	defer b.linkMu.Unlock()
	target := b.pendingLink
	b.pendingLink = ""
	return target, target != ""
}

// Run dispatches events until ctx is done.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-b.queue:
			b.dispatch(ev)
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.handlers[ev.Topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("topic", string(ev.Topic)).Msg("[events] handler panic")
				}
			}()
			s.h(ev)
		}()
	}
}
