// Package memstore is an in-memory implementation of the store contracts
// used by the services.  Transactions are serialised by one mutex and
// rolled back by restoring a snapshot, which gives the same isolation the
// MySQL store gets from row locks.  It backs STORE_DRIVER=memory and the
// service tests.
package memstore

import (
	"context"
	"maps"
	"sync"

	"github.com/kututa/railway-booking/internal/model"
)

type txKey struct{}

type state struct {
	stations   map[string]model.Station
	routes     map[string]model.Route
	trains     map[string]trainRow
	classes    map[string]model.TrainClass
	seats      map[string]model.Seat
	passengers map[string]model.Passenger
	holds      map[model.SeatKey]model.SeatHold
	bookings   map[string]model.Booking
	payments   map[string]model.Payment // by checkout request id
}

type trainRow struct {
	train   model.Train
	routeID string
}

func (s *state) clone() *state {
	return &state{
		stations:   maps.Clone(s.stations),
		routes:     maps.Clone(s.routes),
		trains:     maps.Clone(s.trains),
		classes:    maps.Clone(s.classes),
		seats:      maps.Clone(s.seats),
		passengers: maps.Clone(s.passengers),
		holds:      maps.Clone(s.holds),
		bookings:   maps.Clone(s.bookings),
		payments:   maps.Clone(s.payments),
	}
}

// Store owns the data and hands out the per-table views.
type Store struct {
	mu sync.Mutex
	st *state

	Holds      *HoldStore
	Bookings   *BookingStore
	Payments   *PaymentStore
	Passengers *PassengerStore
	Seats      *SeatStore
	Trains     *TrainStore
}

// New returns an empty store.
func New() *Store {
	s := &Store{st: &state{
		stations:   map[string]model.Station{},
		routes:     map[string]model.Route{},
		trains:     map[string]trainRow{},
		classes:    map[string]model.TrainClass{},
		seats:      map[string]model.Seat{},
		passengers: map[string]model.Passenger{},
		holds:      map[model.SeatKey]model.SeatHold{},
		bookings:   map[string]model.Booking{},
		payments:   map[string]model.Payment{},
	}}
	s.Holds = &HoldStore{s}
	s.Bookings = &BookingStore{s}
	s.Payments = &PaymentStore{s}
	s.Passengers = &PassengerStore{s}
	s.Seats = &SeatStore{s}
	s.Trains = &TrainStore{s}
	return s
}

// WithTx runs fn with exclusive access to the store.  When fn returns an
// error every change it made is discarded.  Nested calls join the outer
// transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			s.st = snapshot
		}
	}()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(*Store)
	return v == s
}

// do runs fn against the current state, taking the lock unless the
// caller is already inside WithTx.
func (s *Store) do(ctx context.Context, fn func(st *state) error) error {
	if !s.inTx(ctx) {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}
