// Package notify delivers booking and event changes to interested clients.
//
// The booking engine and waitlist promoter publish a Notification after each
// committed change.  The Hub fans it out to in-process subscribers (one per
// open server-sent event stream); the queue package extends the fan-out to
// other instances through RabbitMQ.
package notify

import (
	"time"

	"github.com/iliyamo/evently/internal/model"
)

// Notification types.
const (
	BookingConfirmed  = "booking.confirmed"
	BookingWaitlisted = "booking.waitlisted"
	BookingPromoted   = "booking.promoted"
	BookingCancelled  = "booking.cancelled"
	EventUpdated      = "event.updated"
	EventDeleted      = "event.deleted"
)

// Notification is one change pushed to subscribers.
type Notification struct {
	Type    string         `json:"type"`
	EventID uint64         `json:"event_id"`
	UserID  uint64         `json:"user_id,omitempty"`
	Booking *model.Booking `json:"booking,omitempty"`
	Event   *model.Event   `json:"event,omitempty"`
	At      time.Time      `json:"at"`
}

// Publisher accepts notifications.  Implementations must not block the
// caller on slow consumers.
type Publisher interface {
	Publish(n Notification)
}

// Discard drops every notification.
type Discard struct{}

func (Discard) Publish(Notification) {}
