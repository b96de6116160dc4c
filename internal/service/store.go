package service

import (
	"context"
	"time"

	"github.com/kututa/railway-booking/internal/model"
)

// TxRunner runs fn in a transaction.  Store calls made with the context
// passed to fn take part in it; returning an error rolls everything back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// HoldStore persists seat holds.  Missing rows are reported with
// repository.ErrNotFound.
type HoldStore interface {
	DeleteExpired(ctx context.Context, key model.SeatKey, now time.Time) error
	// Upsert inserts the hold or refreshes it when the stored row has the
	// same holder, and returns the row stored for the key afterwards.
	Upsert(ctx context.Context, h model.SeatHold) (model.SeatHold, error)
	Delete(ctx context.Context, key model.SeatKey, holderID string) (bool, error)
	Get(ctx context.Context, key model.SeatKey) (model.SeatHold, error)
	ListActive(ctx context.Context, trainID, travelDate string, now time.Time) ([]model.SeatHold, error)
	HasActiveForHolder(ctx context.Context, key model.SeatKey, holderID string, now time.Time) (bool, error)
}

// BookingStore persists bookings.  UpdateStatus is a compare-and-swap
// returning repository.ErrConflict when the status moved and
// repository.ErrDuplicate when a second confirmed booking would exist.
type BookingStore interface {
	Insert(ctx context.Context, b model.Booking) error
	Get(ctx context.Context, id string) (model.Booking, error)
	GetForUpdate(ctx context.Context, id string) (model.Booking, error)
	UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, now time.Time) error
	HasConfirmed(ctx context.Context, key model.SeatKey) (bool, error)
	ConfirmedSeatIDs(ctx context.Context, trainID, travelDate string) ([]string, error)
	ListByUser(ctx context.Context, userID string) ([]model.Booking, error)
	ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error)
}

// PaymentStore persists payment attempts keyed by checkout request id.
type PaymentStore interface {
	Insert(ctx context.Context, p model.Payment) error
	GetByCheckoutID(ctx context.Context, checkoutID string) (model.Payment, error)
	GetByCheckoutIDForUpdate(ctx context.Context, checkoutID string) (model.Payment, error)
	Complete(ctx context.Context, p model.Payment) error
	ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error)
	FailPending(ctx context.Context, bookingID, desc string, now time.Time) (int64, error)
}

type PassengerStore interface {
	Create(ctx context.Context, p model.Passenger) error
	Get(ctx context.Context, id string) (model.Passenger, error)
	ListByUser(ctx context.Context, userID string) ([]model.Passenger, error)
}

type SeatStore interface {
	Get(ctx context.Context, id string) (model.Seat, error)
	ListByClass(ctx context.Context, classID string) ([]model.Seat, error)
}

type TrainStore interface {
	Search(ctx context.Context, from, to string) ([]model.Train, error)
	Get(ctx context.Context, id string) (model.Train, error)
	ListClasses(ctx context.Context, trainID string) ([]model.TrainClass, error)
	GetClass(ctx context.Context, classID string) (model.TrainClass, error)
}

// Stores bundles the persistence dependencies of the services.
type Stores struct {
	Tx         TxRunner
	Holds      HoldStore
	Bookings   BookingStore
	Payments   PaymentStore
	Passengers PassengerStore
	Seats      SeatStore
	Trains     TrainStore
}
