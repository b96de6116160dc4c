package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/kututa/railway-booking/internal/model"
)

// BookingRepo provides data access to the bookings table.  Status changes
// go through UpdateStatus, a compare-and-swap on the current status; the
// unique index on confirmed_slot rejects a second confirmed booking for the
// same seat, train and travel date.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, passenger_id, seat_id, train_id, travel_date, train_class_id,
    class_type, total_amount, booking_reference, status, created_at, updated_at`

// Insert stores a new booking.  A clash on booking_reference is reported
// as ErrDuplicate so the caller can draw a new reference.
func (r *BookingRepo) Insert(ctx context.Context, b model.Booking) error {
    _, err := conn(ctx, r.db).ExecContext(ctx,
        `INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        b.ID, b.UserID, b.PassengerID, b.Key.SeatID, b.Key.TrainID, b.Key.TravelDate, b.TrainClassID,
        b.ClassType, b.TotalAmount, b.Reference, string(b.Status), b.CreatedAt.UTC(), b.UpdatedAt.UTC(),
    )
    if isDuplicate(err) {
        return ErrDuplicate
    }
    return err
}

// Get returns the booking with the given id or ErrNotFound.
func (r *BookingRepo) Get(ctx context.Context, id string) (model.Booking, error) {
    row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
    b, err := scanBooking(row)
    return b, notFound(err)
}

// GetForUpdate is Get with a row lock held until the surrounding
// transaction ends.
func (r *BookingRepo) GetForUpdate(ctx context.Context, id string) (model.Booking, error) {
    row := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id)
    b, err := scanBooking(row)
    return b, notFound(err)
}

// UpdateStatus moves a booking from one status to another.  It returns
// ErrConflict when the booking is no longer in status from, and
// ErrDuplicate when confirming would create a second confirmed booking for
// the seat.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus, now time.Time) error {
    res, err := conn(ctx, r.db).ExecContext(ctx,
        `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
        string(to), now.UTC(), id, string(from),
    )
    if err != nil {
        if isDuplicate(err) {
            return ErrDuplicate
        }
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrConflict
    }
    return nil
}

// HasConfirmed reports whether a confirmed booking exists for key.
func (r *BookingRepo) HasConfirmed(ctx context.Context, key model.SeatKey) (bool, error) {
    var n int
    err := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT COUNT(*) FROM bookings
         WHERE seat_id = ? AND train_id = ? AND travel_date = ? AND status = 'confirmed'`,
        key.SeatID, key.TrainID, key.TravelDate,
    ).Scan(&n)
    return n > 0, err
}

// ConfirmedSeatIDs lists the seats of a train that are booked on a date.
func (r *BookingRepo) ConfirmedSeatIDs(ctx context.Context, trainID, travelDate string) ([]string, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT seat_id FROM bookings WHERE train_id = ? AND travel_date = ? AND status = 'confirmed'`,
        trainID, travelDate,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []string
    for rows.Next() {
        var id string
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    return ids, rows.Err()
}

// ListByUser returns the bookings of a user, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]model.Booking, error) {
    return r.list(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

// ListStalePending returns pending bookings created before cutoff, oldest
// first.
func (r *BookingRepo) ListStalePending(ctx context.Context, cutoff time.Time) ([]model.Booking, error) {
    return r.list(ctx,
        `SELECT `+bookingColumns+` FROM bookings
         WHERE status = 'pending' AND created_at < ? ORDER BY created_at`, cutoff.UTC())
}

func (r *BookingRepo) list(ctx context.Context, q string, args ...any) ([]model.Booking, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Booking
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    return out, rows.Err()
}

func scanBooking(s rowScanner) (model.Booking, error) {
    var b model.Booking
    var date time.Time
    var status string
    err := s.Scan(&b.ID, &b.UserID, &b.PassengerID, &b.Key.SeatID, &b.Key.TrainID, &date, &b.TrainClassID,
        &b.ClassType, &b.TotalAmount, &b.Reference, &status, &b.CreatedAt, &b.UpdatedAt)
    if err != nil {
        return model.Booking{}, err
    }
    b.Key.TravelDate = date.Format(model.DateLayout)
    b.Status = model.BookingStatus(status)
    return b, nil
}
