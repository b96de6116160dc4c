// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the audit log consumer.
package queue

import (
    "time"

    "github.com/kututa/railway-booking/internal/model"
)

// BookingQueueName is the durable queue carrying BookingFinalizedEvent.
const BookingQueueName = "booking.finalized"

// BookingFinalizedEvent is published when a booking reaches confirmed or
// cancelled.  It contains enough information for downstream consumers to
// log, notify, or trigger analytics without querying the primary database.
type BookingFinalizedEvent struct {
    BookingID   string `json:"booking_id"`
    Reference   string `json:"booking_reference"`
    UserID      string `json:"user_id"`
    PassengerID string `json:"passenger_id"`
    TrainID     string `json:"train_id"`
    SeatID      string `json:"seat_id"`
    TravelDate  string `json:"travel_date"`
    ClassType   string `json:"class_type"`
    TotalAmount int64  `json:"total_amount"`
    Status      string `json:"status"`
    FinalizedAt string `json:"finalized_at"`
}

// NewBookingFinalizedEvent builds the event for b.
func NewBookingFinalizedEvent(b model.Booking) BookingFinalizedEvent {
    return BookingFinalizedEvent{
        BookingID:   b.ID,
        Reference:   b.Reference,
        UserID:      b.UserID,
        PassengerID: b.PassengerID,
        TrainID:     b.Key.TrainID,
        SeatID:      b.Key.SeatID,
        TravelDate:  b.Key.TravelDate,
        ClassType:   b.ClassType,
        TotalAmount: b.TotalAmount,
        Status:      string(b.Status),
        FinalizedAt: b.UpdatedAt.UTC().Format(time.RFC3339),
    }
}
