package model

// Seat is one place in an event's seat map.  Seats are unique per
// (event, row label, column) and exist only once the event has been
// booked for the first time or an admin generated a grid.
//
// Fields:
//  ID                – primary key identifier.
//  EventID           – event the seat belongs to.
//  Label             – display label, row followed by column (e.g. A1).
//  RowLabel          – A, B, … Z, AA, …
//  ColNumber         – 1-based column within the row.
//  Reserved          – whether a confirmed booking holds the seat.
//  ReservedBookingID – booking holding the seat (nil when free).
type Seat struct {
    ID                uint64  `json:"id"`          // seats.id
    EventID           uint64  `json:"event_id"`    // seats.event_id
    Label             string  `json:"label"`       // seats.label
    RowLabel          string  `json:"row_label"`   // seats.row_label
    ColNumber         int     `json:"col_number"`  // seats.col_number
    Reserved          bool    `json:"reserved"`    // seats.reserved
    ReservedBookingID *uint64 `json:"-"`           // seats.reserved_booking_id (nullable)
}
