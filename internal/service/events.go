package service

import (
	"context"

	"github.com/kututa/railway-booking/internal/model"
)

// SeatNotifier fans seat changes out to seat map viewers.
type SeatNotifier interface {
	PublishSeatChange(ctx context.Context, ch model.SeatChange) error
}

// BookingPublisher announces finalized bookings to other systems.
type BookingPublisher interface {
	PublishBookingFinalized(ctx context.Context, b model.Booking) error
}

type nopNotifier struct{}

func (nopNotifier) PublishSeatChange(context.Context, model.SeatChange) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishBookingFinalized(context.Context, model.Booking) error { return nil }
