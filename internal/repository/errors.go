// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between different failure scenarios without
// inspecting driver errors.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional update matched no row
// because the row is no longer in the expected state (a lost
// compare-and-swap).
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert or update violates a unique
// key, such as a second confirmed booking for the same seat.
var ErrDuplicate = errors.New("duplicate")

// MySQL server error numbers we react to.
const (
    mysqlDupEntry = 1062
    mysqlDeadlock = 1213
    mysqlLockWait = 1205
)

func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == mysqlDupEntry
}

// isRetryable reports whether the transaction was rolled back by the
// server and can be run again from the start.
func isRetryable(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && (me.Number == mysqlDeadlock || me.Number == mysqlLockWait)
}
