package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/repository"
)

// HoldStore is the seat_holds table.
type HoldStore struct{ s *Store }

func (h *HoldStore) DeleteExpired(ctx context.Context, key model.SeatKey, now time.Time) error {
	return h.s.do(ctx, func(st *state) error {
		if cur, ok := st.holds[key]; ok && !cur.ExpiresAt.After(now) {
			delete(st.holds, key)
		}
		return nil
	})
}

func (h *HoldStore) Upsert(ctx context.Context, hold model.SeatHold) (model.SeatHold, error) {
	var out model.SeatHold
	err := h.s.do(ctx, func(st *state) error {
		cur, ok := st.holds[hold.Key]
		switch {
		case !ok:
			st.holds[hold.Key] = hold
			out = hold
		case cur.HolderID == hold.HolderID:
			cur.HoldToken = hold.HoldToken
			cur.ExpiresAt = hold.ExpiresAt
			st.holds[hold.Key] = cur
			out = cur
		default:
			out = cur
		}
		return nil
	})
	return out, err
}

func (h *HoldStore) Delete(ctx context.Context, key model.SeatKey, holderID string) (bool, error) {
	var deleted bool
	err := h.s.do(ctx, func(st *state) error {
		if cur, ok := st.holds[key]; ok && cur.HolderID == holderID {
			delete(st.holds, key)
			deleted = true
		}
		return nil
	})
	return deleted, err
}

func (h *HoldStore) Get(ctx context.Context, key model.SeatKey) (model.SeatHold, error) {
	var out model.SeatHold
	err := h.s.do(ctx, func(st *state) error {
		cur, ok := st.holds[key]
		if !ok {
			return repository.ErrNotFound
		}
		out = cur
		return nil
	})
	return out, err
}

func (h *HoldStore) ListActive(ctx context.Context, trainID, travelDate string, now time.Time) ([]model.SeatHold, error) {
	var out []model.SeatHold
	err := h.s.do(ctx, func(st *state) error {
		for k, v := range st.holds {
			if k.TrainID == trainID && k.TravelDate == travelDate && v.ActiveAt(now) {
				out = append(out, v)
			}
		}
		return nil
	})
	return out, err
}

func (h *HoldStore) HasActiveForHolder(ctx context.Context, key model.SeatKey, holderID string, now time.Time) (bool, error) {
	var ok bool
	err := h.s.do(ctx, func(st *state) error {
		cur, found := st.holds[key]
		ok = found && cur.HolderID == holderID && cur.ActiveAt(now)
		return nil
	})
	return ok, err
}

// BookingStore is the bookings table.
type BookingStore struct{ s *Store }

func (b *BookingStore) Insert(ctx context.Context, bk model.Booking) error {
	return b.s.do(ctx, func(st *state) error {
		if _, ok := st.bookings[bk.ID]; ok {
			return repository.ErrDuplicate
		}
		for _, other := range st.bookings {
			if other.Reference == bk.Reference {
				return repository.ErrDuplicate
			}
		}
		st.bookings[bk.ID] = bk
		return nil
	})
}

func (b *BookingStore) Get(ctx context.Context, id string) (model.Booking, error) {
	var out model.Booking
	err := b.s.do(ctx, func(st *state) error {
		bk, ok := st.bookings[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = bk
		return nil
	})
	return out, err
}

// GetForUpdate is Get; WithTx already serialises access.
func (b *BookingStore) GetForUpdate(ctx context.Context, id string) (model.Booking, error) {
	return b.Get(ctx, id)
}

func (b *BookingStore) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, now time.Time) error {
	return b.s.do(ctx, func(st *state) error {
		bk, ok := st.bookings[id]
		if !ok || bk.Status != from {
			return repository.ErrConflict
		}
		if to == model.BookingConfirmed {
			for _, other := range st.bookings {
				if other.ID != id && other.Key == bk.Key && other.Status == model.BookingConfirmed {
					return repository.ErrDuplicate
				}
			}
		}
		bk.Status = to
		bk.UpdatedAt = now
		st.bookings[id] = bk
		return nil
	})
}

func (b *BookingStore) HasConfirmed(ctx context.Context, key model.SeatKey) (bool, error) {
	var found bool
	err := b.s.do(ctx, func(st *state) error {
		for _, bk := range st.bookings {
			if bk.Key == key && bk.Status == model.BookingConfirmed {
				found = true
				break
			}
		}
		return nil
	})
	return found, err
}

func (b *BookingStore) ConfirmedSeatIDs(ctx context.Context, trainID, travelDate string) ([]string, error) {
	var ids []string
	err := b.s.do(ctx, func(st *state) error {
		for _, bk := range st.bookings {
			if bk.Key.TrainID == trainID && bk.Key.TravelDate == travelDate && bk.Status == model.BookingConfirmed {
				ids = append(ids, bk.Key.SeatID)
			}
		}
		return nil
	})
	return ids, err
}

func (b *BookingStore) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
	out, err := b.filter(ctx, func(bk model.Booking) bool { return bk.UserID == userID })
	slices.SortFunc(out, func(x, y model.Booking) int { return y.CreatedAt.Compare(x.CreatedAt) })
	return out, err
}

func (b *BookingStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
	out, err := b.filter(ctx, func(bk model.Booking) bool {
		return bk.Status == model.BookingPending && bk.CreatedAt.Before(cutoff)
	})
	slices.SortFunc(out, func(x, y model.Booking) int { return x.CreatedAt.Compare(y.CreatedAt) })
	return out, err
}

func (b *BookingStore) filter(ctx context.Context, keep func(model.Booking) bool) ([]model.Booking, error) {
	var out []model.Booking
	err := b.s.do(ctx, func(st *state) error {
		for _, bk := range st.bookings {
			if keep(bk) {
				out = append(out, bk)
			}
		}
		return nil
	})
	return out, err
}

// PaymentStore is the payments table, keyed by checkout request id.
type PaymentStore struct{ s *Store }

func (p *PaymentStore) Insert(ctx context.Context, pay model.Payment) error {
	return p.s.do(ctx, func(st *state) error {
		if _, ok := st.payments[pay.CheckoutRequestID]; ok {
			return repository.ErrDuplicate
		}
		st.payments[pay.CheckoutRequestID] = pay
		return nil
	})
}

func (p *PaymentStore) GetByCheckoutID(ctx context.Context, checkoutID string) (model.Payment, error) {
	var out model.Payment
	err := p.s.do(ctx, func(st *state) error {
		pay, ok := st.payments[checkoutID]
		if !ok {
			return repository.ErrNotFound
		}
		out = pay
		return nil
	})
	return out, err
}

func (p *PaymentStore) GetByCheckoutIDForUpdate(ctx context.Context, checkoutID string) (model.Payment, error) {
	return p.GetByCheckoutID(ctx, checkoutID)
}

func (p *PaymentStore) Complete(ctx context.Context, pay model.Payment) error {
	return p.s.do(ctx, func(st *state) error {
		cur, ok := st.payments[pay.CheckoutRequestID]
		if !ok || cur.ID != pay.ID || cur.Status != model.PaymentPending {
			return repository.ErrConflict
		}
		cur.Status = pay.Status
		cur.ResultCode = pay.ResultCode
		cur.ResultDesc = pay.ResultDesc
		cur.ReceiptNumber = pay.ReceiptNumber
		cur.TransactionDate = pay.TransactionDate
		cur.UpdatedAt = pay.UpdatedAt
		st.payments[pay.CheckoutRequestID] = cur
		return nil
	})
}

func (p *PaymentStore) ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error) {
	var out []model.Payment
	err := p.s.do(ctx, func(st *state) error {
		for _, pay := range st.payments {
			if pay.BookingID == bookingID {
				out = append(out, pay)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(x, y model.Payment) int { return y.CreatedAt.Compare(x.CreatedAt) })
	return out, err
}

func (p *PaymentStore) FailPending(ctx context.Context, bookingID, desc string, now time.Time) (int64, error) {
	var n int64
	err := p.s.do(ctx, func(st *state) error {
		for id, pay := range st.payments {
			if pay.BookingID == bookingID && pay.Status == model.PaymentPending {
				pay.Status = model.PaymentFailed
				pay.ResultDesc = desc
				pay.UpdatedAt = now
				st.payments[id] = pay
				n++
			}
		}
		return nil
	})
	return n, err
}

// PassengerStore is the passengers table.
type PassengerStore struct{ s *Store }

func (p *PassengerStore) Create(ctx context.Context, ps model.Passenger) error {
	return p.s.do(ctx, func(st *state) error {
		if _, ok := st.passengers[ps.ID]; ok {
			return repository.ErrDuplicate
		}
		st.passengers[ps.ID] = ps
		return nil
	})
}

func (p *PassengerStore) Get(ctx context.Context, id string) (model.Passenger, error) {
	var out model.Passenger
	err := p.s.do(ctx, func(st *state) error {
		ps, ok := st.passengers[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = ps
		return nil
	})
	return out, err
}

func (p *PassengerStore) ListByUser(ctx context.Context, userID string) ([]model.Passenger, error) {
	var out []model.Passenger
	err := p.s.do(ctx, func(st *state) error {
		for _, ps := range st.passengers {
			if ps.UserID == userID {
				out = append(out, ps)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(x, y model.Passenger) int { return y.CreatedAt.Compare(x.CreatedAt) })
	return out, err
}

// SeatStore is the seats table.
type SeatStore struct{ s *Store }

func (ss *SeatStore) Get(ctx context.Context, id string) (model.Seat, error) {
	var out model.Seat
	err := ss.s.do(ctx, func(st *state) error {
		seat, ok := st.seats[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = seat
		return nil
	})
	return out, err
}

func (ss *SeatStore) ListByClass(ctx context.Context, classID string) ([]model.Seat, error) {
	var out []model.Seat
	err := ss.s.do(ctx, func(st *state) error {
		for _, seat := range st.seats {
			if seat.TrainClassID == classID {
				out = append(out, seat)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(x, y model.Seat) int {
		if len(x.SeatNumber) != len(y.SeatNumber) {
			return len(x.SeatNumber) - len(y.SeatNumber)
		}
		return strings.Compare(x.SeatNumber, y.SeatNumber)
	})
	return out, err
}

// TrainStore is the read-only catalog.
type TrainStore struct{ s *Store }

func (t *TrainStore) Search(ctx context.Context, from, to string) ([]model.Train, error) {
	var out []model.Train
	err := t.s.do(ctx, func(st *state) error {
		for _, row := range st.trains {
			tr := st.resolve(row)
			if !tr.IsActive {
				continue
			}
			if from != "" && !strings.EqualFold(tr.Route.Origin.Code, from) {
				continue
			}
			if to != "" && !strings.EqualFold(tr.Route.Destination.Code, to) {
				continue
			}
			out = append(out, tr)
		}
		return nil
	})
	slices.SortFunc(out, func(x, y model.Train) int { return strings.Compare(x.DepartureTime, y.DepartureTime) })
	return out, err
}

func (t *TrainStore) Get(ctx context.Context, id string) (model.Train, error) {
	var out model.Train
	err := t.s.do(ctx, func(st *state) error {
		row, ok := st.trains[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = st.resolve(row)
		return nil
	})
	return out, err
}

func (t *TrainStore) ListClasses(ctx context.Context, trainID string) ([]model.TrainClass, error) {
	var out []model.TrainClass
	err := t.s.do(ctx, func(st *state) error {
		for _, c := range st.classes {
			if c.TrainID == trainID {
				out = append(out, st.withDistance(c))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(x, y model.TrainClass) int {
		switch {
		case x.PricePerKM < y.PricePerKM:
			return -1
		case x.PricePerKM > y.PricePerKM:
			return 1
		}
		return 0
	})
	return out, err
}

func (t *TrainStore) GetClass(ctx context.Context, classID string) (model.TrainClass, error) {
	var out model.TrainClass
	err := t.s.do(ctx, func(st *state) error {
		c, ok := st.classes[classID]
		if !ok {
			return repository.ErrNotFound
		}
		out = st.withDistance(c)
		return nil
	})
	return out, err
}

func (st *state) resolve(row trainRow) model.Train {
	tr := row.train
	tr.Route = st.routes[row.routeID]
	return tr
}

func (st *state) withDistance(c model.TrainClass) model.TrainClass {
	if row, ok := st.trains[c.TrainID]; ok {
		c.DistanceKM = st.routes[row.routeID].DistanceKM
	}
	return c
}
