package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"tourneykit/core"
)

type subscriber struct {
	ch    chan core.Event
	users map[core.UserID]struct{}
}

func (s subscriber) wants(ev core.Event) bool {
	if len(s.users) == 0 {
		return true
	}
	_, ok := s.users[ev.UserID]
	return ok
}

// Hub is a simple pub/sub for broadcasting events to channels. Slow
// subscribers lose events rather than blocking publishers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]subscriber
	next   int
	onDrop func(core.Event)
}

// HubOption customizes a Hub.
type HubOption func(*Hub)

// OnDrop registers a callback invoked when a subscriber's buffer is full.
func OnDrop(fn func(core.Event)) HubOption { return func(h *Hub) { h.onDrop = fn } }

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{subs: map[int]subscriber{}}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers a buffered channel. When users are given only events
// about those users are delivered.
func (h *Hub) Subscribe(buffer int, users ...core.UserID) (int, <-chan core.Event) {
	sub := subscriber{ch: make(chan core.Event, buffer)}
	if len(users) > 0 {
		sub.users = make(map[core.UserID]struct{}, len(users))
		for _, u := range users {
			sub.users[u] = struct{}{}
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.subs[id] = sub
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast delivers ev to every interested subscriber. The read lock is
// held across sends so Unsubscribe cannot close a channel mid-send; sends
// never block.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			if h.onDrop != nil {
				h.onDrop(ev)
			}
		}
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
