package repository

import (
    "context"
    "database/sql"
    "errors"
)

// querier is the subset of *sql.DB and *sql.Tx used by the repositories.
type querier interface {
    ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
    QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
    QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// conn returns the transaction carried by ctx, or db when the call runs
// outside of TxManager.WithTx.
func conn(ctx context.Context, db *sql.DB) querier {
    if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
        return tx
    }
    return db
}

// TxManager runs functions inside a database transaction.  Repositories
// called with the context handed to fn join that transaction.
type TxManager struct {
    db       *sql.DB
    attempts int
}

// NewTxManager returns a TxManager bound to db.  Transactions aborted by
// a deadlock or lock wait timeout are retried up to three times.
func NewTxManager(db *sql.DB) *TxManager { return &TxManager{db: db, attempts: 3} }

// WithTx begins a transaction, runs fn and commits when fn returns nil.
// Any error (or panic) rolls the transaction back.  Nested calls reuse the
// outer transaction.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
    if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
        return fn(ctx)
    }
    var err error
    for i := 0; i < m.attempts; i++ {
        err = m.run(ctx, fn)
        if err == nil || !isRetryable(err) || ctx.Err() != nil {
            return err
        }
    }
    return err
}

func (m *TxManager) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
    tx, err := m.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
        return err
    }
    if err = tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    return err
}
