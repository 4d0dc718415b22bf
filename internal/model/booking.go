package model

import "time"

// Booking status values.
const (
    BookingConfirmed  = "CONFIRMED"
    BookingWaitlisted = "WAITLISTED"
    BookingCancelled  = "CANCELLED"
)

// Booking records one user's request for qty places at an event.  A
// WAITLISTED booking holds no seats; it becomes CONFIRMED only through
// waitlist promotion.  SeatIDs and SeatLabels are populated from the seats
// table when the event has a seat map.
type Booking struct {
    ID             uint64    `json:"id"`         // bookings.id
    UserID         uint64    `json:"user_id"`    // bookings.user_id
    EventID        uint64    `json:"event_id"`   // bookings.event_id
    Qty            int       `json:"qty"`        // bookings.qty
    Status         string    `json:"status"`     // bookings.status
    IdempotencyKey *string   `json:"-"`          // bookings.idempotency_key (nullable)
    CreatedAt      time.Time `json:"created_at"` // bookings.created_at
    SeatIDs        []uint64  `json:"seat_ids"`
    SeatLabels     []string  `json:"seat_labels"`
}
