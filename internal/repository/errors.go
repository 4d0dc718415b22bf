// Package repository defines the persistence contracts used by the booking
// services and their MySQL implementation.  Sentinel errors let higher
// layers distinguish failure scenarios without inspecting driver errors:
// ErrNotFound for a missing row, ErrDuplicate for a unique-key clash (email,
// idempotency key), ErrSeatTaken when a conditional seat update loses a race
// and ErrBusy when MySQL reports a deadlock or lock wait timeout.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	ErrSeatTaken = errors.New("seat already reserved")
	ErrBusy      = errors.New("resource busy, retry")
)

// MySQL server error numbers.
const (
	erDupEntry        = 1062
	erLockWaitTimeout = 1205
	erLockDeadlock    = 1213
)

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case erDupEntry:
			return ErrDuplicate
		case erLockWaitTimeout, erLockDeadlock:
			return ErrBusy
		}
	}
	return err
}
