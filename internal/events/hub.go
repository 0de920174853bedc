package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Hub fans events out to in-process subscribers. A subscriber that falls
// behind loses events instead of blocking Publish.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription receives events for one order, or all orders when the
// order id is empty.
type Subscription struct {
	orderID string
	ch      chan Event
	once    sync.Once
	hub     *Hub
}

// C delivers matching events. It is closed by Close.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Subscribe registers interest in orderID ("" for every order).
func (h *Hub) Subscribe(orderID string) *Subscription {
	s := &Subscription{
		orderID: orderID,
		ch:      make(chan Event, subscriberBuffer),
		hub:     h,
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if s.orderID != "" && s.orderID != e.OrderID {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
	return nil
}
