package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kututa/railway-booking/internal/model"
)

// DefaultPaymentGrace is how long a pending booking survives after its
// hold lapsed, giving a late callback time to arrive.
const DefaultPaymentGrace = 2 * time.Minute

// Sweeper cancels bookings whose checkout was abandoned: still pending
// after the hold and the payment grace period elapsed, with no active hold
// left for the booking's owner.
type Sweeper struct {
	st       Stores
	clock    Clock
	bookings *BookingController
	holdTTL  time.Duration
	grace    time.Duration
	log      logrus.FieldLogger
}

func NewSweeper(st Stores, clk Clock, bookings *BookingController, holdTTL, grace time.Duration, log logrus.FieldLogger) *Sweeper {
	if holdTTL <= 0 {
		holdTTL = DefaultHoldDuration
	}
	if grace < 0 {
		grace = DefaultPaymentGrace
	}
	return &Sweeper{st: st, clock: clk, bookings: bookings, holdTTL: holdTTL, grace: grace, log: log}
}

// SweepReport summarises one sweep.
type SweepReport struct {
	Examined  int      `json:"examined"`
	Cancelled []string `json:"cancelled"`
	Skipped   int      `json:"skipped"`
}

// SweepAbandoned cancels abandoned pending bookings and fails their
// pending payments with description "expired".  A booking finalized
// concurrently by a payment result is skipped.
func (s *Sweeper) SweepAbandoned(ctx context.Context) (SweepReport, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.holdTTL - s.grace)
	stale, err := s.st.Bookings.ListStalePending(ctx, cutoff)
	if err != nil {
		return SweepReport{}, upstream("list stale bookings", err)
	}

	rep := SweepReport{Examined: len(stale), Cancelled: []string{}}
	for _, b := range stale {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		cancelled, err := s.sweepOne(ctx, b, now)
		if err != nil {
			s.log.WithError(err).WithField("booking_id", b.ID).Warn("sweep booking failed")
			rep.Skipped++
			continue
		}
		if !cancelled {
			rep.Skipped++
			continue
		}
		rep.Cancelled = append(rep.Cancelled, b.ID)
	}
	if len(rep.Cancelled) > 0 || rep.Skipped > 0 {
		s.log.WithFields(logrus.Fields{
			"examined": rep.Examined, "cancelled": len(rep.Cancelled), "skipped": rep.Skipped,
		}).Info("abandoned bookings swept")
	}
	return rep, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, b model.Booking, now time.Time) (bool, error) {
	var fin finalization
	err := s.st.Tx.WithTx(ctx, func(ctx context.Context) error {
		fin = finalization{}
		held, err := s.st.Holds.HasActiveForHolder(ctx, b.Key, b.UserID, now)
		if err != nil || held {
			return err
		}
		fin, err = s.bookings.finalizeInTx(ctx, b.ID, OutcomeFailed, now)
		if err != nil {
			return err
		}
		if !fin.changed {
			return nil
		}
		_, err = s.st.Payments.FailPending(ctx, b.ID, "expired", now)
		return err
	})
	var af *AlreadyFinalizedError
	if errors.As(err, &af) {
		// a payment result won the race
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if fin.changed {
		s.bookings.afterFinalize(ctx, fin.booking)
	}
	return fin.changed, nil
}

// Run is the cron entry point.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.SweepAbandoned(ctx); err != nil {
		s.log.WithError(err).Error("sweep abandoned bookings")
	}
}
