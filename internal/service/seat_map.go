package service

import (
	"context"
	"errors"

	"github.com/kututa/railway-booking/internal/model"
	"github.com/kututa/railway-booking/internal/repository"
)

// SeatMap returns every seat of a class with its status for viewerID on
// a travel date.  Status precedence is booked, then locked (held by
// someone else), then selected (held by the viewer), then available.
func (m *SeatLockManager) SeatMap(ctx context.Context, trainID, classID, travelDate, viewerID string) ([]model.SeatView, error) {
	if err := validateKey(model.SeatKey{SeatID: "-", TrainID: trainID, TravelDate: travelDate}); err != nil {
		return nil, err
	}
	if classID == "" {
		return nil, &ValidationError{Field: "class_id", Message: "is required"}
	}
	class, err := m.st.Trains.GetClass(ctx, classID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && class.TrainID != trainID) {
		return nil, &NotFoundError{Resource: "train class", ID: classID}
	}
	if err != nil {
		return nil, upstream("get class", err)
	}

	seats, err := m.st.Seats.ListByClass(ctx, classID)
	if err != nil {
		return nil, upstream("list seats", err)
	}
	bookedIDs, err := m.st.Bookings.ConfirmedSeatIDs(ctx, trainID, travelDate)
	if err != nil {
		return nil, upstream("list booked seats", err)
	}
	holds, err := m.st.Holds.ListActive(ctx, trainID, travelDate, m.clock.Now())
	if err != nil {
		return nil, upstream("list holds", err)
	}

	booked := make(map[string]bool, len(bookedIDs))
	for _, id := range bookedIDs {
		booked[id] = true
	}
	held := make(map[string]model.SeatHold, len(holds))
	for _, h := range holds {
		held[h.Key.SeatID] = h
	}

	out := make([]model.SeatView, 0, len(seats))
	for _, s := range seats {
		v := model.SeatView{Seat: s, Status: model.SeatAvailable}
		if booked[s.ID] {
			v.Status = model.SeatBooked
		} else if h, ok := held[s.ID]; ok {
			exp := h.ExpiresAt
			v.ExpiresAt = &exp
			v.Status = model.SeatLocked
			if h.HolderID == viewerID {
				v.Status = model.SeatSelected
			}
		}
		out = append(out, v)
	}
	return out, nil
}
