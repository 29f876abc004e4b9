package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger carries exactly one of
// these, so callers can branch with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrStoreFailure = errors.New("store failure")
)

var (
	ErrInvalidAmount    = &Error{Kind: ErrValidation, Msg: "invalid amount"}
	ErrAmountOutOfRange = &Error{Kind: ErrValidation, Msg: "amount out of range"}
	ErrAmountOverflow   = &Error{Kind: ErrValidation, Msg: "amount overflows balance"}
	ErrInvalidDate      = &Error{Kind: ErrValidation, Msg: "invalid date"}
	ErrInvalidMonth     = &Error{Kind: ErrValidation, Msg: "invalid month"}
	ErrInvalidStatus    = &Error{Kind: ErrValidation, Msg: "invalid transaction status"}
	ErrInvalidType      = &Error{Kind: ErrValidation, Msg: "invalid account type"}
	ErrEmptyName        = &Error{Kind: ErrValidation, Msg: "empty name"}
	ErrSelfTransfer     = &Error{Kind: ErrValidation, Msg: "cannot transfer to the same account"}
	ErrMissingAccount   = &Error{Kind: ErrValidation, Msg: "account is required"}
	ErrMissingPayee     = &Error{Kind: ErrValidation, Msg: "payee is required"}
)

// Error is the typed error used across the ledger.
type Error struct {
	Kind error  // one of ErrNotFound, ErrValidation, ErrConflict, ErrStoreFailure
	Op   string // operation that failed, e.g. "create transaction"
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NotFound reports a missing (or foreign) entity.
func NotFound(entity, id string) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %q not found", entity, id)}
}

// Validationf reports malformed input.
func Validationf(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflict wraps err as a concurrent modification error.
func Conflict(op string, err error) error {
	return &Error{Kind: ErrConflict, Op: op, Err: err}
}

// StoreFailure wraps err as a persistence failure.
func StoreFailure(op string, err error) error {
	return &Error{Kind: ErrStoreFailure, Op: op, Err: err}
}

// KindOf returns the error kind carried by err, or nil when err is not a
// ledger error.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict, ErrStoreFailure} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
