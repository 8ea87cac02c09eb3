// Package watch provides change notification for the shared document
// store. A Hub fans out per-topic dirty ticks; subscribers re-read the
// store and deliver full snapshots downstream.
//
// Ticks are coalesced: a subscriber that has not drained its pending tick
// does not accumulate more. Consumers therefore see the same logical state
// at least once, may see it twice, and may miss intermediate states, but
// never a stale final state.
package watch

import "sync"

// Hub fans out change ticks to topic subscribers.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[uint64]*Subscription
	nextID uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]*Subscription)}
}

// Subscription is one live channel of dirty ticks for a topic.
type Subscription struct {
	// C receives a tick whenever the topic changes. Closed on Cancel.
	C <-chan struct{}

	ch     chan struct{}
	topic  string
	id     uint64
	hub    *Hub
	cancel sync.Once
}

// Subscribe registers a new subscription for topic.
func (h *Hub) Subscribe(topic string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan struct{}, 1)
	sub := &Subscription{C: ch, ch: ch, topic: topic, id: h.nextID, hub: h}

	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]*Subscription)
	}
	h.subs[topic][sub.id] = sub
	return sub
}

// Notify marks topic dirty. Subscribers with an undrained tick are skipped;
// they will re-read the latest state anyway.
func (h *Hub) Notify(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs[topic] {
		select {
		case sub.ch <- struct{}{}:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions for topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}

// Cancel removes the subscription and closes C. It is synchronous: once
// Cancel returns, no further tick is delivered. Safe to call twice.
func (s *Subscription) Cancel() {
	s.cancel.Do(func() {
		s.hub.mu.Lock()
		if subs, ok := s.hub.subs[s.topic]; ok {
			delete(subs, s.id)
			if len(subs) == 0 {
				delete(s.hub.subs, s.topic)
			}
		}
		s.hub.mu.Unlock()
		close(s.ch)
	})
}
