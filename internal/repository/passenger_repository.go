package repository

import (
	"context"
	"database/sql"

	"github.com/kututa/railway-booking/internal/model"
)

// PassengerRepo stores the travellers registered by each user.
type PassengerRepo struct {
	db *sql.DB
}

// NewPassengerRepo returns a new PassengerRepo bound to the given database.
func NewPassengerRepo(db *sql.DB) *PassengerRepo { return &PassengerRepo{db: db} }

const passengerColumns = `id, user_id, full_name, id_number, phone, email, created_at`

// Create inserts a passenger.
func (r *PassengerRepo) Create(ctx context.Context, p model.Passenger) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO passengers (`+passengerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.FullName, p.IDNumber, p.Phone, p.Email, p.CreatedAt.UTC(),
	)
	return err
}

// Get returns a passenger or ErrNotFound.
func (r *PassengerRepo) Get(ctx context.Context, id string) (model.Passenger, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+passengerColumns+` FROM passengers WHERE id = ?`, id)
	p, err := scanPassenger(row)
	if err != nil {
		return model.Passenger{}, notFound(err)
	}
	return p, nil
}

// ListByUser returns the passengers registered by a user, newest first.
func (r *PassengerRepo) ListByUser(ctx context.Context, userID string) ([]model.Passenger, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+passengerColumns+` FROM passengers WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Passenger
	for rows.Next() {
		p, err := scanPassenger(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPassenger(s rowScanner) (model.Passenger, error) {
	var p model.Passenger
	var email sql.NullString
	if err := s.Scan(&p.ID, &p.UserID, &p.FullName, &p.IDNumber, &p.Phone, &email, &p.CreatedAt); err != nil {
		return model.Passenger{}, err
	}
	if email.Valid {
		e := email.String
		p.Email = &e
	}
	return p, nil
}
