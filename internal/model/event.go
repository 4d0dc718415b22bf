package model

import "time"

// Event status values.
const (
    EventActive   = "active"
    EventInactive = "inactive"
)

// Event is a bookable happening with a fixed number of places.  BookedCount
// is the sum of qty over CONFIRMED bookings and never exceeds Capacity.
// WaitlistedCount is the number of WAITLISTED bookings.
//
// Fields:
//  ID              – primary key identifier.
//  Name, Venue     – display fields used by search.
//  StartTime       – when the event begins (UTC).
//  EndTime         – when the event ends (after StartTime).
//  Capacity        – number of places, at least 1.
//  BookedCount     – places held by CONFIRMED bookings.
//  WaitlistedCount – number of WAITLISTED bookings.
//  Status          – active or inactive.
//  CreatedBy       – admin who created the event (nullable).
type Event struct {
    ID              uint64    `json:"id"`               // events.id
    Name            string    `json:"name"`             // events.name
    Venue           string    `json:"venue"`            // events.venue
    StartTime       time.Time `json:"start_time"`       // events.start_time
    EndTime         time.Time `json:"end_time"`         // events.end_time
    Capacity        int       `json:"capacity"`         // events.capacity
    BookedCount     int       `json:"booked_count"`     // events.booked_count
    WaitlistedCount int       `json:"waitlisted_count"` // events.waitlisted_count
    Status          string    `json:"status"`           // events.status
    CreatedBy       *uint64   `json:"created_by,omitempty"`
    CreatedAt       time.Time `json:"created_at"`
    UpdatedAt       time.Time `json:"updated_at"`
}

// Remaining returns the number of places not held by confirmed bookings.
func (e *Event) Remaining() int {
    if r := e.Capacity - e.BookedCount; r > 0 {
        return r
    }
    return 0
}

// Utilization returns BookedCount / Capacity as a fraction.
func (e *Event) Utilization() float64 {
    if e.Capacity <= 0 {
        return 0
    }
    return float64(e.BookedCount) / float64(e.Capacity)
}
