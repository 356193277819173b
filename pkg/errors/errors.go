package errors

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the AppError code carried by err, or "" when err is not an
// AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

var (
	ErrConfigLoad      = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect = "DATABASE_CONNECT_ERROR"
	ErrProfileLoad     = "PROFILE_LOAD_ERROR"
	ErrLedgerApply     = "LEDGER_APPLY_ERROR"
	ErrDuplicateEvent  = "DUPLICATE_EVENT_ERROR"
	ErrInvalidEvent    = "INVALID_EVENT_ERROR"
	ErrLeaderboard     = "LEADERBOARD_COMPUTE_ERROR"
	ErrAudit           = "LEDGER_AUDIT_ERROR"
)
