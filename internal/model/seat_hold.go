package model

import "time"

// DateLayout is the wire and storage format of travel dates.
const DateLayout = "2006-01-02"

// EAT is East Africa Time.  Travel dates are calendar days in Kenya.
var EAT = time.FixedZone("EAT", 3*60*60)

// LocalDate returns the travel date t falls on in EAT.
func LocalDate(t time.Time) string {
    return t.In(EAT).Format(DateLayout)
}

// SeatKey identifies the contended resource: one seat on one train on one
// travel date.  Holds and bookings are both keyed by it.
type SeatKey struct {
    SeatID     string `json:"seat_id"`
    TrainID    string `json:"train_id"`
    TravelDate string `json:"travel_date"` // YYYY-MM-DD
}

// SeatHold represents a temporary exclusive claim on a seat during
// checkout.  A hold is active only while the current time is before
// ExpiresAt; expired rows may linger until the next acquire replaces them.
//
// Fields:
//  ID        – primary key identifier.
//  Key       – seat, train and travel date being held.
//  HolderID  – user holding the seat.
//  HoldToken – opaque token returned to the client.
//  ExpiresAt – when the hold lapses.
//  CreatedAt – when the hold was first created.
type SeatHold struct {
    ID        string    `json:"id"`         // seat_holds.id
    Key       SeatKey   `json:"key"`        // seat_holds.(seat_id, train_id, travel_date)
    HolderID  string    `json:"holder_id"`  // seat_holds.holder_id
    HoldToken string    `json:"hold_token"` // seat_holds.hold_token
    ExpiresAt time.Time `json:"expires_at"` // seat_holds.expires_at
    CreatedAt time.Time `json:"created_at"` // seat_holds.created_at
}

// ActiveAt reports whether the hold is still in force at t.
func (h SeatHold) ActiveAt(t time.Time) bool {
    return t.Before(h.ExpiresAt)
}
