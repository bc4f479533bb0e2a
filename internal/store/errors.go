package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrNotFound indicates the requested video or account does not exist.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded indicates a reservation would push an account past its daily cap.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrIntegrityViolation indicates a write conflicted with a uniqueness or check constraint.
	ErrIntegrityViolation = errors.New("integrity violation")
	// ErrInvalidTransition indicates a pipeline flag update whose precondition no longer holds.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

const (
	sqliteBusyCode       = 5
	sqliteConstraintCode = 19

	mysqlDuplicateEntry  = 1062
	mysqlCheckViolated   = 3819
	mysqlNullViolation   = 1048
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDeadlock || myErr.Number == mysqlLockWaitTimeout
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteConstraintCode {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlCheckViolated, mysqlNullViolation:
			return true
		}
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}

// classifyWriteError wraps constraint failures with ErrIntegrityViolation so callers can
// surface them distinctly. Other errors pass through with context.
func classifyWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if isConstraintViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrIntegrityViolation, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
