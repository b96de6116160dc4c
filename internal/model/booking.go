package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending   BookingStatus = "pending"
    BookingConfirmed BookingStatus = "confirmed"
    BookingCancelled BookingStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
    return s == BookingConfirmed || s == BookingCancelled
}

// Booking records a reservation of one seat on one train for one travel
// date on behalf of a passenger.  It is created pending at checkout and
// moved to confirmed or cancelled exactly once by payment reconciliation.
// Bookings are never deleted.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – account that made the booking.
//  PassengerID  – traveller.
//  Key          – seat, train and travel date.
//  TrainClassID – class the seat belongs to.
//  ClassType    – economy, first_class or business.
//  TotalAmount  – fare in whole shillings.
//  Reference    – human readable booking reference (KR…).
//  Status       – pending, confirmed or cancelled.
type Booking struct {
    ID           string        `json:"id"`             // bookings.id
    UserID       string        `json:"user_id"`        // bookings.user_id
    PassengerID  string        `json:"passenger_id"`   // bookings.passenger_id
    Key          SeatKey       `json:"key"`            // bookings.(seat_id, train_id, travel_date)
    TrainClassID string        `json:"train_class_id"` // bookings.train_class_id
    ClassType    string        `json:"class_type"`     // bookings.class_type
    TotalAmount  int64         `json:"total_amount"`   // bookings.total_amount
    Reference    string        `json:"booking_reference"`
    Status       BookingStatus `json:"status"`     // bookings.status
    CreatedAt    time.Time     `json:"created_at"` // bookings.created_at
    UpdatedAt    time.Time     `json:"updated_at"` // bookings.updated_at
}
