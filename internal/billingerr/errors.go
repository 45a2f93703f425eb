// Package billingerr defines the error kinds returned by the billing ledger.
// Callers map kinds to user-facing messages; the ledger never returns bare
// strings for domain failures.
package billingerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindNotFound          Kind = "not_found"
	KindOverpayment       Kind = "overpayment"
	KindSequenceExhausted Kind = "sequence_exhausted"
	KindIntegrity         Kind = "integrity_error"
	KindConflict          Kind = "conflict"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal_error"
)

// Error is a sentinel carrying a kind and a stable code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Code
}

// SequenceExhaustedError is returned when identifier allocation keeps
// colliding after the retry budget is spent.
type SequenceExhaustedError struct {
	Stem     string
	Attempts int
	Err      error
}

func (e *SequenceExhaustedError) Error() string {
	return fmt.Sprintf("sequence %s exhausted after %d attempts", e.Stem, e.Attempts)
}

func (e *SequenceExhaustedError) Unwrap() error {
	return e.Err
}

type OverpaymentError struct {
	BillID    string
	Amount    int64
	Remaining int64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment %d exceeds remaining amount %d on bill %s", e.Amount, e.Remaining, e.BillID)
}

// IntegrityError means a bill's stored state no longer reconciles with its
// payments. The bill is placed on hold until someone fixes it by hand.
type IntegrityError struct {
	BillID string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("bill %s failed reconciliation: %s", e.BillID, e.Reason)
}

var (
	ErrInvalidAmount = New(KindValidation, "invalid_amount", "amount must be a positive integer")
	ErrConflict      = New(KindConflict, "concurrent_modification", "the record was modified concurrently, try again")
	ErrForbidden     = New(KindForbidden, "forbidden", "the caller is not allowed to perform this action")
)

// KindOf classifies err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var (
		sentinel    *Error
		exhausted   *SequenceExhaustedError
		overpayment *OverpaymentError
		integrity   *IntegrityError
	)
	switch {
	case errors.As(err, &overpayment):
		return KindOverpayment
	case errors.As(err, &exhausted):
		return KindSequenceExhausted
	case errors.As(err, &integrity):
		return KindIntegrity
	case errors.As(err, &sentinel):
		return sentinel.Kind
	default:
		return KindInternal
	}
}

// Message returns a human readable message for err.
func Message(err error) string {
	var sentinel *Error
	if errors.As(err, &sentinel) && sentinel.Message != "" {
		return sentinel.Message
	}
	if KindOf(err) == KindInternal {
		return "internal error"
	}
	return err.Error()
}
