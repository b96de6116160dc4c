package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/kututa/railway-booking/internal/model"
)

// SeatHoldRepo provides data access to the seat_holds table.  The table
// keeps at most one row per (seat, train, travel date); whether that row
// is still in force is decided by comparing expires_at with the caller's
// clock, never by the database clock.
type SeatHoldRepo struct {
    db *sql.DB
}

// NewSeatHoldRepo returns a new SeatHoldRepo bound to the provided database.
func NewSeatHoldRepo(db *sql.DB) *SeatHoldRepo { return &SeatHoldRepo{db: db} }

const holdColumns = `id, seat_id, train_id, travel_date, holder_id, hold_token, expires_at, created_at`

// DeleteExpired removes the row for key when it expired at or before now.
func (r *SeatHoldRepo) DeleteExpired(ctx context.Context, key model.SeatKey, now time.Time) error {
    _, err := conn(ctx, r.db).ExecContext(ctx,
        `DELETE FROM seat_holds WHERE seat_id = ? AND train_id = ? AND travel_date = ? AND expires_at <= ?`,
        key.SeatID, key.TrainID, key.TravelDate, now.UTC(),
    )
    return err
}

// Upsert inserts h, or refreshes token and expiry of the existing row when
// it belongs to the same holder.  A row of another holder is left as is.
// The row stored for the key afterwards is locked and returned, so the
// caller decides who owns the seat by comparing HolderID.
func (r *SeatHoldRepo) Upsert(ctx context.Context, h model.SeatHold) (model.SeatHold, error) {
    q := conn(ctx, r.db)
    _, err := q.ExecContext(ctx,
        `INSERT INTO seat_holds (`+holdColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON DUPLICATE KEY UPDATE
           hold_token = IF(holder_id = VALUES(holder_id), VALUES(hold_token), hold_token),
           expires_at = IF(holder_id = VALUES(holder_id), VALUES(expires_at), expires_at)`,
        h.ID, h.Key.SeatID, h.Key.TrainID, h.Key.TravelDate, h.HolderID, h.HoldToken,
        h.ExpiresAt.UTC(), h.CreatedAt.UTC(),
    )
    if err != nil {
        return model.SeatHold{}, err
    }
    row := q.QueryRowContext(ctx,
        `SELECT `+holdColumns+` FROM seat_holds
         WHERE seat_id = ? AND train_id = ? AND travel_date = ? FOR UPDATE`,
        h.Key.SeatID, h.Key.TrainID, h.Key.TravelDate,
    )
    got, err := scanHold(row)
    if err != nil {
        return model.SeatHold{}, notFound(err)
    }
    return got, nil
}

// Delete removes the holder's row for key.  It reports whether a row was
// deleted; a missing row or a row of another holder is not an error.
func (r *SeatHoldRepo) Delete(ctx context.Context, key model.SeatKey, holderID string) (bool, error) {
    res, err := conn(ctx, r.db).ExecContext(ctx,
        `DELETE FROM seat_holds WHERE seat_id = ? AND train_id = ? AND travel_date = ? AND holder_id = ?`,
        key.SeatID, key.TrainID, key.TravelDate, holderID,
    )
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// Get returns the row for key whether or not it has expired.
func (r *SeatHoldRepo) Get(ctx context.Context, key model.SeatKey) (model.SeatHold, error) {
    row := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+holdColumns+` FROM seat_holds WHERE seat_id = ? AND train_id = ? AND travel_date = ?`,
        key.SeatID, key.TrainID, key.TravelDate,
    )
    h, err := scanHold(row)
    if err != nil {
        return model.SeatHold{}, notFound(err)
    }
    return h, nil
}

// ListActive returns the holds on a train and date that are still in
// force at now.
func (r *SeatHoldRepo) ListActive(ctx context.Context, trainID, travelDate string, now time.Time) ([]model.SeatHold, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT `+holdColumns+` FROM seat_holds
         WHERE train_id = ? AND travel_date = ? AND expires_at > ?`,
        trainID, travelDate, now.UTC(),
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var holds []model.SeatHold
    for rows.Next() {
        h, err := scanHold(rows)
        if err != nil {
            return nil, err
        }
        holds = append(holds, h)
    }
    return holds, rows.Err()
}

// HasActiveForHolder reports whether holderID still holds key at now.
func (r *SeatHoldRepo) HasActiveForHolder(ctx context.Context, key model.SeatKey, holderID string, now time.Time) (bool, error) {
    var n int
    err := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT COUNT(*) FROM seat_holds
         WHERE seat_id = ? AND train_id = ? AND travel_date = ? AND holder_id = ? AND expires_at > ?`,
        key.SeatID, key.TrainID, key.TravelDate, holderID, now.UTC(),
    ).Scan(&n)
    return n > 0, err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...any) error
}

func scanHold(s rowScanner) (model.SeatHold, error) {
    var h model.SeatHold
    var date time.Time
    if err := s.Scan(&h.ID, &h.Key.SeatID, &h.Key.TrainID, &date, &h.HolderID, &h.HoldToken,
        &h.ExpiresAt, &h.CreatedAt); err != nil {
        return model.SeatHold{}, err
    }
    h.Key.TravelDate = date.Format(model.DateLayout)
    return h, nil
}
