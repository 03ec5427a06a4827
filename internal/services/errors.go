package services

import (
	"errors"
	"fmt"
)

// Error taxonomy. Validation and NotFound are user-correctable and never
// retried. A duplicate scan is a normal ScanResult variant, not an error.
// Transient errors are safe to retry because the ledger's unique constraint
// makes a double-submit harmless.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrRecordNotFound    = errors.New("attendance record not found")
	ErrLedgerTimeout     = errors.New("ledger operation timed out")
	ErrMirrorUnavailable = errors.New("mirror workbook unavailable")
	ErrWorkbookNotFound  = errors.New("workbook not found")
	ErrNoRecordsFound    = errors.New("no attendance records found for the specified criteria")
)

// InvalidPayloadError describes a scan payload that failed decoding or the
// required-field check. Reason is one of the fixed machine-readable tags.
type InvalidPayloadError struct {
	Reason string // "malformed", "missing-fields"
	Detail string
}

func (e *InvalidPayloadError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("invalid scan payload: %s", e.Reason)
	}
	return fmt.Sprintf("invalid scan payload: %s (%s)", e.Reason, e.Detail)
}

// NewInvalidPayloadError builds an InvalidPayloadError.
func NewInvalidPayloadError(reason, detail string) *InvalidPayloadError {
	return &InvalidPayloadError{Reason: reason, Detail: detail}
}

// IsInvalidPayloadError reports whether err is an InvalidPayloadError.
func IsInvalidPayloadError(err error) bool {
	var target *InvalidPayloadError
	return errors.As(err, &target)
}
