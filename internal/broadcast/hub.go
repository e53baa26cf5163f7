// Package broadcast is an in-process topic hub. Publishing never blocks:
// an event is dropped for any subscriber whose buffer is full, and dropped
// altogether when a topic has no subscribers.
package broadcast

import (
	"sync"
	"time"
)

// Event is one named notification on a topic.
type Event struct {
	Name    string    `json:"event"`
	OwnerID uint64    `json:"-"`
	Payload any       `json:"data"`
	At      time.Time `json:"at"`
}

// Publisher is the publishing half of the hub.
type Publisher interface {
	Publish(topic string, event Event) int
}

// Hub fans events out to topic subscribers.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	buffer int
}

// NewHub creates a hub whose subscriptions buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		topics: make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscription receives the events of one topic until closed.
type Subscription struct {
	hub    *Hub
	topic  string
	events chan Event
	once   sync.Once
}

// Subscribe registers a new subscription on topic.
func (h *Hub) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		hub:    h,
		topic:  topic,
		events: make(chan Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	return sub
}

// Publish delivers event to every subscriber of topic that has room and
// returns how many received it.
func (h *Hub) Publish(topic string, event Event) int {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.topics[topic] {
		select {
		case sub.events <- event:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Events returns the receive channel. It is closed by Close.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close unregisters the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		if subs, ok := s.hub.topics[s.topic]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(s.hub.topics, s.topic)
			}
		}
		close(s.events)
	})
}
