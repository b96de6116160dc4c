package model

import "time"

// SeatChangeKind describes what happened to a seat.
type SeatChangeKind string

const (
    SeatHeld      SeatChangeKind = "held"
    SeatReleased  SeatChangeKind = "released"
    SeatConfirmed SeatChangeKind = "booked"
)

// SeatChange is pushed to seat map viewers of one train and travel date
// whenever a hold or booking changes a seat.  It does not carry the
// holder; clients refresh their seat map to learn their own status.
type SeatChange struct {
    TrainID    string         `json:"train_id"`
    TravelDate string         `json:"travel_date"`
    SeatID     string         `json:"seat_id"`
    Kind       SeatChangeKind `json:"kind"`
    ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
    At         time.Time      `json:"at"`
}
