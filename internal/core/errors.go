package core

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorCode classifies a failure so callers can branch without parsing messages.
type ErrorCode string

const (
	ErrCodeNotFound                ErrorCode = "NOT_FOUND"
	ErrCodeInvalidQuantity         ErrorCode = "INVALID_QUANTITY"
	ErrCodeInvalidRequest          ErrorCode = "INVALID_REQUEST"
	ErrCodeInsufficientStock       ErrorCode = "INSUFFICIENT_STOCK"
	ErrCodeCapacityExceeded        ErrorCode = "CAPACITY_EXCEEDED"
	ErrCodeNegativeStock           ErrorCode = "NEGATIVE_STOCK"
	ErrCodeIllegalStatusTransition ErrorCode = "ILLEGAL_STATUS_TRANSITION"
	ErrCodeDatabaseError           ErrorCode = "DATABASE_ERROR"
)

// Error is the structured failure returned by every core service.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap attaches a code and message to an underlying error (which may be nil).
func Wrap(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Newf builds a coded error from a format string.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsBusinessError reports whether err is a rule rejection the caller should show to the user,
// as opposed to an internal failure.
func IsBusinessError(err error) bool {
	switch CodeOf(err) {
	case ErrCodeNotFound, ErrCodeInvalidQuantity, ErrCodeInvalidRequest,
		ErrCodeInsufficientStock, ErrCodeCapacityExceeded, ErrCodeIllegalStatusTransition:
		return true
	}
	return false
}

// dbError converts driver errors into coded errors. Errors that already carry a code pass through.
func dbError(message string, err error) error {
	if err == nil {
		return nil
	}
	if CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Wrap(ErrCodeNotFound, message, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return Wrap(ErrCodeInvalidRequest, message+": duplicate value", err)
		case "23503":
			return Wrap(ErrCodeNotFound, message+": referenced row does not exist", err)
		case "23514":
			if pgErr.TableName == "inventory_records" {
				return Wrap(ErrCodeNegativeStock, message, err)
			}
			return Wrap(ErrCodeInvalidRequest, message+": check constraint "+pgErr.ConstraintName, err)
		}
	}
	return Wrap(ErrCodeDatabaseError, message, err)
}
