package repository // repository defines data access for seats

import (
	"context"      // context allows query cancellation and timeouts
	"database/sql" // sql provides DB primitives

	"github.com/kututa/railway-booking/internal/model"
)

// SeatRepo provides read access to the seats of a train class.  Seats are
// seeded with the catalog and never change at runtime.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// Get returns a single seat or ErrNotFound.
func (r *SeatRepo) Get(ctx context.Context, id string) (model.Seat, error) {
	const q = `SELECT id, train_class_id, seat_number, is_window, created_at FROM seats WHERE id = ?`
	var s model.Seat
	err := conn(ctx, r.db).QueryRowContext(ctx, q, id).Scan(&s.ID, &s.TrainClassID, &s.SeatNumber, &s.IsWindow, &s.CreatedAt)
	if err != nil {
		return model.Seat{}, notFound(err)
	}
	return s, nil
}

// ListByClass returns all seats of a class ordered by seat number.
func (r *SeatRepo) ListByClass(ctx context.Context, classID string) ([]model.Seat, error) {
	const q = `SELECT id, train_class_id, seat_number, is_window, created_at
	           FROM seats WHERE train_class_id = ?
	           ORDER BY LENGTH(seat_number), seat_number`
	rows, err := conn(ctx, r.db).QueryContext(ctx, q, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		if err := rows.Scan(&s.ID, &s.TrainClassID, &s.SeatNumber, &s.IsWindow, &s.CreatedAt); err != nil {
			return nil, err
		}
		seats = append(seats, s)
	}
	return seats, rows.Err()
}
