package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/kututa/railway-booking/internal/model"
)

// PaymentRepo provides data access to the payments table.  Payments are
// looked up by the gateway's checkout request id, which is unique.
type PaymentRepo struct {
    db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, booking_id, amount, payment_method, checkout_request_id, merchant_request_id,
    phone_number, status, result_code, result_desc, receipt_number, transaction_date, created_at, updated_at`

// Insert stores a new payment.  A repeated checkout request id yields
// ErrDuplicate.
func (r *PaymentRepo) Insert(ctx context.Context, p model.Payment) error {
    _, err := conn(ctx, r.db).ExecContext(ctx,
        `INSERT INTO payments (`+paymentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
        p.ID, p.BookingID, p.Amount, p.Method, p.CheckoutRequestID, nullStr(p.MerchantRequestID),
        p.PhoneNumber, string(p.Status), p.ResultCode, nullStr(p.ResultDesc), nullStr(p.ReceiptNumber),
        nullStr(p.TransactionDate), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
    )
    if isDuplicate(err) {
        return ErrDuplicate
    }
    return err
}

// GetByCheckoutID returns the payment for a checkout request id or
// ErrNotFound.
func (r *PaymentRepo) GetByCheckoutID(ctx context.Context, checkoutID string) (model.Payment, error) {
    row := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+paymentColumns+` FROM payments WHERE checkout_request_id = ?`, checkoutID)
    p, err := scanPayment(row)
    return p, notFound(err)
}

// GetByCheckoutIDForUpdate is GetByCheckoutID with a row lock.
func (r *PaymentRepo) GetByCheckoutIDForUpdate(ctx context.Context, checkoutID string) (model.Payment, error) {
    row := conn(ctx, r.db).QueryRowContext(ctx,
        `SELECT `+paymentColumns+` FROM payments WHERE checkout_request_id = ? FOR UPDATE`, checkoutID)
    p, err := scanPayment(row)
    return p, notFound(err)
}

// Complete records the outcome of a pending payment.  It returns
// ErrConflict when the payment already left the pending state.
func (r *PaymentRepo) Complete(ctx context.Context, p model.Payment) error {
    res, err := conn(ctx, r.db).ExecContext(ctx,
        `UPDATE payments
         SET status = ?, result_code = ?, result_desc = ?, receipt_number = ?, transaction_date = ?, updated_at = ?
         WHERE id = ? AND status = 'pending'`,
        string(p.Status), p.ResultCode, nullStr(p.ResultDesc), nullStr(p.ReceiptNumber),
        nullStr(p.TransactionDate), p.UpdatedAt.UTC(), p.ID,
    )
    if err != nil {
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

// ListByBooking returns every payment attempt of a booking, newest first.
func (r *PaymentRepo) ListByBooking(ctx context.Context, bookingID string) ([]model.Payment, error) {
    rows, err := conn(ctx, r.db).QueryContext(ctx,
        `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY created_at DESC`, bookingID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Payment
    for rows.Next() {
        p, err := scanPayment(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, p)
    }
    return out, rows.Err()
}

// FailPending marks every pending payment of a booking as failed with the
// given description and returns how many were changed.
func (r *PaymentRepo) FailPending(ctx context.Context, bookingID, desc string, now time.Time) (int64, error) {
    res, err := conn(ctx, r.db).ExecContext(ctx,
        `UPDATE payments SET status = 'failed', result_desc = ?, updated_at = ?
         WHERE booking_id = ? AND status = 'pending'`,
        desc, now.UTC(), bookingID,
    )
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

func scanPayment(s rowScanner) (model.Payment, error) {
    var p model.Payment
    var status string
    var merchant, desc, receipt, txDate sql.NullString
    var code sql.NullInt64
    err := s.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Method, &p.CheckoutRequestID, &merchant,
        &p.PhoneNumber, &status, &code, &desc, &receipt, &txDate, &p.CreatedAt, &p.UpdatedAt)
    if err != nil {
        return model.Payment{}, err
    }
    p.Status = model.PaymentStatus(status)
    p.MerchantRequestID = merchant.String
    p.ResultDesc = desc.String
    p.ReceiptNumber = receipt.String
    p.TransactionDate = txDate.String
    if code.Valid {
        c := int(code.Int64)
        p.ResultCode = &c
    }
    return p, nil
}

// nullStr stores empty strings as NULL.
func nullStr(s string) sql.NullString {
    return sql.NullString{String: s, Valid: s != ""}
}
