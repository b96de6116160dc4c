package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/repository"
)

// Outcome is the payment result a booking is finalized with.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) target() model.BookingStatus {
	if o == OutcomeSucceeded {
		return model.BookingConfirmed
	}
	return model.BookingCancelled
}

// BookingController owns the booking state machine: pending bookings are
// created against an active seat hold and moved exactly once to confirmed
// or cancelled.
type BookingController struct {
	st        Stores
	clock     Clock
	notifier  SeatNotifier
	publisher BookingPublisher
	log       logrus.FieldLogger
}

// BookingOption customises a BookingController.
type BookingOption func(*BookingController)

func WithBookingNotifier(n SeatNotifier) BookingOption {
	return func(c *BookingController) {
		if n != nil {
			c.notifier = n
		}
	}
}

func WithBookingPublisher(p BookingPublisher) BookingOption {
	return func(c *BookingController) {
		if p != nil {
			c.publisher = p
		}
	}
}

func NewBookingController(st Stores, clk Clock, log logrus.FieldLogger, opts ...BookingOption) *BookingController {
	c := &BookingController{
		st:        st,
		clock:     clk,
		notifier:  nopNotifier{},
		publisher: nopPublisher{},
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateBookingInput is what a user submits at checkout.
type CreateBookingInput struct {
	UserID      string
	PassengerID string
	SeatID      string
	TrainID     string
	TravelDate  string
}

// Create stores a pending booking for a seat the user currently holds.
func (c *BookingController) Create(ctx context.Context, in CreateBookingInput) (model.Booking, error) {
	key := model.SeatKey{SeatID: in.SeatID, TrainID: in.TrainID, TravelDate: in.TravelDate}
	if err := validateKey(key); err != nil {
		return model.Booking{}, err
	}
	if in.PassengerID == "" {
		return model.Booking{}, &ValidationError{Field: "passenger_id", Message: "is required"}
	}
	now := c.clock.Now()
	if in.TravelDate < model.LocalDate(now) {
		return model.Booking{}, &ValidationError{Field: "travel_date", Message: "must not be in the past"}
	}

	passenger, err := c.st.Passengers.Get(ctx, in.PassengerID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && passenger.UserID != in.UserID) {
		return model.Booking{}, &NotFoundError{Resource: "passenger", ID: in.PassengerID}
	}
	if err != nil {
		return model.Booking{}, upstream("get passenger", err)
	}
	class, err := resolveSeat(ctx, c.st, key)
	if err != nil {
		return model.Booking{}, err
	}

	b := model.Booking{
		ID:           uuid.NewString(),
		UserID:       in.UserID,
		PassengerID:  passenger.ID,
		Key:          key,
		TrainClassID: class.ID,
		ClassType:    class.ClassType,
		TotalAmount:  class.Fare(),
		Status:       model.BookingPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = c.st.Tx.WithTx(ctx, func(ctx context.Context) error {
		booked, err := c.st.Bookings.HasConfirmed(ctx, key)
		if err != nil {
			return err
		}
		if booked {
			return &ConflictError{Reason: ReasonSeatBooked}
		}
		held, err := c.st.Holds.HasActiveForHolder(ctx, key, in.UserID, now)
		if err != nil {
			return err
		}
		if !held {
			return &ConflictError{Reason: ReasonHoldRequired}
		}
		for attempt := 0; ; attempt++ {
			ref, err := NewReference(now)
			if err != nil {
				return err
			}
			b.Reference = ref
			err = c.st.Bookings.Insert(ctx, b)
			if !errors.Is(err, repository.ErrDuplicate) || attempt == 2 {
				return err
			}
		}
	})
	if err != nil {
		return model.Booking{}, upstream("create booking", err)
	}

	c.log.WithFields(logrus.Fields{
		"booking_id": b.ID, "reference": b.Reference, "user_id": b.UserID,
		"seat_id": key.SeatID, "train_id": key.TrainID, "travel_date": key.TravelDate,
		"amount": b.TotalAmount,
	}).Info("booking created")
	return b, nil
}

// Get returns a booking owned by userID.
func (c *BookingController) Get(ctx context.Context, id, userID string) (model.Booking, error) {
	b, err := c.st.Bookings.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && b.UserID != userID) {
		return model.Booking{}, &NotFoundError{Resource: "booking", ID: id}
	}
	if err != nil {
		return model.Booking{}, upstream("get booking", err)
	}
	return b, nil
}

// ListByUser returns the bookings of a user, newest first.
func (c *BookingController) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	out, err := c.st.Bookings.ListByUser(ctx, userID)
	if err != nil {
		return nil, upstream("list bookings", err)
	}
	return out, nil
}

// Finalize moves a pending booking to confirmed (OutcomeSucceeded) or
// cancelled (OutcomeFailed) and drops the owner's hold on the seat.  A
// booking already in the requested state is returned with changed=false.
// A booking in the other terminal state yields AlreadyFinalizedError.
// When the seat was confirmed for someone else first the booking is
// cancelled and ConflictError(seat_booked) is returned.
func (c *BookingController) Finalize(ctx context.Context, bookingID string, outcome Outcome) (model.Booking, bool, error) {
	var res finalization
	err := c.st.Tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.finalizeInTx(ctx, bookingID, outcome, c.clock.Now())
		return err
	})
	if err != nil {
		return model.Booking{}, false, upstream("finalize booking", err)
	}
	if res.changed {
		c.afterFinalize(ctx, res.booking)
	}
	if res.seatLost {
		return res.booking, res.changed, &ConflictError{Reason: ReasonSeatBooked}
	}
	return res.booking, res.changed, nil
}

type finalization struct {
	booking  model.Booking
	changed  bool
	seatLost bool // confirmation lost to another booking, cancelled instead
}

// finalizeInTx is Finalize for a caller that already runs a transaction.
// The caller must invoke afterFinalize once the transaction commits.
func (c *BookingController) finalizeInTx(ctx context.Context, bookingID string, outcome Outcome, now time.Time) (finalization, error) {
	b, err := c.st.Bookings.GetForUpdate(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return finalization{}, &NotFoundError{Resource: "booking", ID: bookingID}
	}
	if err != nil {
		return finalization{}, err
	}
	target := outcome.target()
	if b.Status == target {
		return finalization{booking: b}, nil
	}
	if b.Status.Terminal() {
		return finalization{}, &AlreadyFinalizedError{BookingID: b.ID, Status: string(b.Status)}
	}

	res := finalization{changed: true}
	err = c.st.Bookings.UpdateStatus(ctx, b.ID, model.BookingPending, target, now)
	if errors.Is(err, repository.ErrDuplicate) {
		target = model.BookingCancelled
		res.seatLost = true
		err = c.st.Bookings.UpdateStatus(ctx, b.ID, model.BookingPending, target, now)
	}
	if errors.Is(err, repository.ErrConflict) {
		return finalization{}, &ConflictError{Reason: ReasonBookingNotPending}
	}
	if err != nil {
		return finalization{}, err
	}
	if _, err := c.st.Holds.Delete(ctx, b.Key, b.UserID); err != nil {
		return finalization{}, err
	}

	b.Status = target
	b.UpdatedAt = now
	res.booking = b
	return res, nil
}

// afterFinalize announces a booking that reached a terminal state.
// Failures are logged; the booking itself is already committed.
func (c *BookingController) afterFinalize(ctx context.Context, b model.Booking) {
	kind := model.SeatReleased
	if b.Status == model.BookingConfirmed {
		kind = model.SeatConfirmed
	}
	entry := c.log.WithFields(logrus.Fields{
		"booking_id": b.ID, "reference": b.Reference, "status": b.Status, "seat_id": b.Key.SeatID,
	})
	entry.Info("booking finalized")

	ch := model.SeatChange{
		TrainID: b.Key.TrainID, TravelDate: b.Key.TravelDate, SeatID: b.Key.SeatID,
		Kind: kind, At: b.UpdatedAt,
	}
	if err := c.notifier.PublishSeatChange(ctx, ch); err != nil {
		entry.WithError(err).Warn("publish seat change failed")
	}
	if err := c.publisher.PublishBookingFinalized(ctx, b); err != nil {
		entry.WithError(err).Warn("publish booking event failed")
	}
}

const refAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewReference returns a booking reference: "KR", the last eight digits of
// the unix time in milliseconds and four random upper case letters or
// digits, e.g. KR12345678X7QZ.
func NewReference(now time.Time) (string, error) {
	ms := fmt.Sprintf("%08d", now.UnixMilli()%100_000_000)
	suffix := make([]byte, 4)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(refAlphabet))))
		if err != nil {
			return "", err
		}
		suffix[i] = refAlphabet[n.Int64()]
	}
	return "KR" + ms + string(suffix), nil
}
