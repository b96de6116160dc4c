package model

import "time"

// Seat describes a physical seat inside a train class.  Seats are
// seeded together with the class and never change afterwards.
//
// Fields:
//  ID           – primary key identifier.
//  TrainClassID – class (coach type) the seat belongs to.
//  SeatNumber   – label printed on the seat, e.g. "12A".
//  IsWindow     – true for window seats, false for aisle seats.
//  CreatedAt    – creation timestamp.
type Seat struct {
    ID           string    `json:"id"`             // seats.id
    TrainClassID string    `json:"train_class_id"` // seats.train_class_id
    SeatNumber   string    `json:"seat_number"`    // seats.seat_number
    IsWindow     bool      `json:"is_window"`      // seats.is_window
    CreatedAt    time.Time `json:"created_at"`     // seats.created_at
}

// SeatStatus is the status of a seat as seen by one viewer of the seat map.
type SeatStatus string

const (
    SeatAvailable SeatStatus = "available"
    SeatSelected  SeatStatus = "selected" // held by the viewer
    SeatBooked    SeatStatus = "booked"
    SeatLocked    SeatStatus = "locked" // held by someone else
)

// SeatView is one entry of a seat map.
type SeatView struct {
    Seat
    Status    SeatStatus `json:"status"`
    ExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}
