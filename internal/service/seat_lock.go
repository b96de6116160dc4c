package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/repository"
)

// DefaultHoldDuration is how long a seat stays held when no duration is
// configured.
const DefaultHoldDuration = 10 * time.Minute

// SeatLockManager grants time boxed exclusive holds on a seat for one
// train and travel date.  Exclusivity is enforced by the store: at most one
// hold row exists per key and it is only refreshed for its own holder.
type SeatLockManager struct {
	st       Stores
	clock    Clock
	ttl      time.Duration
	notifier SeatNotifier
	log      logrus.FieldLogger
}

// SeatLockOption customises a SeatLockManager.
type SeatLockOption func(*SeatLockManager)

// WithHoldDuration overrides DefaultHoldDuration.
func WithHoldDuration(d time.Duration) SeatLockOption {
	return func(m *SeatLockManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithSeatNotifier publishes hold changes to n.
func WithSeatNotifier(n SeatNotifier) SeatLockOption {
	return func(m *SeatLockManager) {
		if n != nil {
			m.notifier = n
		}
	}
}

func NewSeatLockManager(st Stores, clk Clock, log logrus.FieldLogger, opts ...SeatLockOption) *SeatLockManager {
	m := &SeatLockManager{
		st:       st,
		clock:    clk,
		ttl:      DefaultHoldDuration,
		notifier: nopNotifier{},
		log:      log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HoldDuration is the lifetime of a newly acquired hold.
func (m *SeatLockManager) HoldDuration() time.Duration { return m.ttl }

// Acquire holds key for holderID until now + hold duration.  Calling it
// again as the same holder extends the hold.  It fails with
// ConflictError(seat_booked) when the seat is already sold and
// ConflictError(seat_held) when another holder has an active hold.
func (m *SeatLockManager) Acquire(ctx context.Context, key model.SeatKey, holderID string) (model.SeatHold, error) {
	if err := validateKey(key); err != nil {
		return model.SeatHold{}, err
	}
	if holderID == "" {
		return model.SeatHold{}, &ValidationError{Field: "holder_id", Message: "is required"}
	}
	if err := m.checkSeat(ctx, key); err != nil {
		return model.SeatHold{}, err
	}

	now := m.clock.Now()
	candidate := model.SeatHold{
		ID:        uuid.NewString(),
		Key:       key,
		HolderID:  holderID,
		HoldToken: uuid.NewString(),
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	var hold model.SeatHold
	err := m.st.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := m.st.Holds.DeleteExpired(ctx, key, now); err != nil {
			return err
		}
		booked, err := m.st.Bookings.HasConfirmed(ctx, key)
		if err != nil {
			return err
		}
		if booked {
			return &ConflictError{Reason: ReasonSeatBooked}
		}
		got, err := m.st.Holds.Upsert(ctx, candidate)
		if err != nil {
			return err
		}
		if got.HolderID != holderID {
			return &ConflictError{Reason: ReasonSeatHeld}
		}
		hold = got
		return nil
	})
	if err != nil {
		return model.SeatHold{}, upstream("acquire hold", err)
	}

	m.log.WithFields(logrus.Fields{
		"seat_id": key.SeatID, "train_id": key.TrainID, "travel_date": key.TravelDate,
		"holder_id": holderID, "expires_at": hold.ExpiresAt,
	}).Debug("seat held")
	exp := hold.ExpiresAt
	m.notify(ctx, model.SeatChange{
		TrainID: key.TrainID, TravelDate: key.TravelDate, SeatID: key.SeatID,
		Kind: model.SeatHeld, ExpiresAt: &exp, At: now,
	})
	return hold, nil
}

// Release drops the holder's hold on key.  Releasing a seat that is not
// held, or held by someone else, is a no-op.
func (m *SeatLockManager) Release(ctx context.Context, key model.SeatKey, holderID string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	deleted, err := m.st.Holds.Delete(ctx, key, holderID)
	if err != nil {
		return upstream("release hold", err)
	}
	if deleted {
		m.notify(ctx, model.SeatChange{
			TrainID: key.TrainID, TravelDate: key.TravelDate, SeatID: key.SeatID,
			Kind: model.SeatReleased, At: m.clock.Now(),
		})
	}
	return nil
}

// IsActive reports whether h is still in force.
func (m *SeatLockManager) IsActive(h model.SeatHold) bool {
	return h.ActiveAt(m.clock.Now())
}

// Current returns the active hold on key, if any.
func (m *SeatLockManager) Current(ctx context.Context, key model.SeatKey) (model.SeatHold, bool, error) {
	h, err := m.st.Holds.Get(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return model.SeatHold{}, false, nil
	}
	if err != nil {
		return model.SeatHold{}, false, upstream("get hold", err)
	}
	if !m.IsActive(h) {
		return model.SeatHold{}, false, nil
	}
	return h, true, nil
}

// checkSeat verifies that the seat exists and belongs to the train.
func (m *SeatLockManager) checkSeat(ctx context.Context, key model.SeatKey) error {
	_, err := resolveSeat(ctx, m.st, key)
	return err
}

func (m *SeatLockManager) notify(ctx context.Context, ch model.SeatChange) {
	if err := m.notifier.PublishSeatChange(ctx, ch); err != nil {
		m.log.WithError(err).WithField("seat_id", ch.SeatID).Warn("publish seat change failed")
	}
}

// resolveSeat loads the class of the seat in key and checks it runs on
// the train in key.
func resolveSeat(ctx context.Context, st Stores, key model.SeatKey) (model.TrainClass, error) {
	seat, err := st.Seats.Get(ctx, key.SeatID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.TrainClass{}, &NotFoundError{Resource: "seat", ID: key.SeatID}
	}
	if err != nil {
		return model.TrainClass{}, upstream("get seat", err)
	}
	class, err := st.Trains.GetClass(ctx, seat.TrainClassID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && class.TrainID != key.TrainID) {
		return model.TrainClass{}, &NotFoundError{Resource: "seat", ID: key.SeatID}
	}
	if err != nil {
		return model.TrainClass{}, upstream("get class", err)
	}
	return class, nil
}

func validateKey(key model.SeatKey) error {
	switch {
	case key.SeatID == "":
		return &ValidationError{Field: "seat_id", Message: "is required"}
	case key.TrainID == "":
		return &ValidationError{Field: "train_id", Message: "is required"}
	}
	if _, err := time.Parse(model.DateLayout, key.TravelDate); err != nil {
		return &ValidationError{Field: "travel_date", Message: "must be a date in YYYY-MM-DD format"}
	}
	return nil
}
