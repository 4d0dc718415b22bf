package notify

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Filter selects the notifications a subscriber receives.
type Filter func(Notification) bool

// ForEvent matches notifications about one event.
func ForEvent(eventID uint64) Filter {
	return func(n Notification) bool { return n.EventID == eventID }
}

// ForUser matches notifications about one user's bookings.
func ForUser(userID uint64) Filter {
	return func(n Notification) bool { return n.UserID == userID }
}

// Subscription is a buffered feed of notifications.  C is closed by
// Unsubscribe or Close.
type Subscription struct {
	ID     string
	C      <-chan Notification
	ch     chan Notification
	filter Filter
}

// Hub is an in-process publish/subscribe fan-out.  Publish never blocks: a
// subscriber whose buffer is full misses the notification and OnDrop is
// called.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]*Subscription
	closed bool

	buffer  int
	dropped atomic.Uint64

	// OnDrop, when set, is called for every dropped notification.
	OnDrop func()
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{subs: map[string]*Subscription{}, buffer: buffer}
}

// Subscribe registers a subscriber.  A nil filter receives everything.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	ch := make(chan Notification, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch, filter: filter}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes sub and closes its channel.  Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.ID]; ok {
		delete(h.subs, sub.ID)
		close(sub.ch)
	}
}

// Publish delivers n to every matching subscriber.
func (h *Hub) Publish(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(n) {
			continue
		}
		select {
		case sub.ch <- n:
		default:
			h.dropped.Add(1)
			if h.OnDrop != nil {
				h.OnDrop()
			}
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close ends every subscription; later subscriptions are closed at once.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}
