// Package errs defines the symbolic error kinds shared across the wallet
// daemon's subsystems (§7 of the design). Every user-visible failure is
// wrapped in a *Error carrying one of these kinds so the request surface
// can map it to a stable numeric code without inspecting error strings.
package errs

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind identifies the symbolic error category of an Error. Kinds are never
// renamed across releases; the request surface's numeric codes are derived
// from them.
type Kind int

const (
	// KindUnknown is never returned; it is the zero value guard.
	KindUnknown Kind = iota

	KindNetwork
	KindLedgerInconsistent
	KindBlockValidation
	KindAccountNotFound
	KindTxoNotFound
	KindTransactionLogNotFound
	KindAddressNotFound
	KindBlockNotFound
	KindAccountAlreadyExists
	KindInsufficientFunds
	KindInsufficientFundsAtSubaddress
	KindInsufficientLedger
	KindTokenMismatch
	KindTransactionValidation
	KindMalformedOutput
	KindUnsupportedBlockVersion
	KindDatabase
	KindUnsupportedRequest
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "Network"
	case KindLedgerInconsistent:
		return "LedgerInconsistent"
	case KindBlockValidation:
		return "BlockValidation"
	case KindAccountNotFound:
		return "AccountNotFound"
	case KindTxoNotFound:
		return "TxoNotFound"
	case KindTransactionLogNotFound:
		return "TransactionLogNotFound"
	case KindAddressNotFound:
		return "AddressNotFound"
	case KindBlockNotFound:
		return "BlockNotFound"
	case KindAccountAlreadyExists:
		return "AccountAlreadyExists"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindInsufficientFundsAtSubaddress:
		return "InsufficientFundsAtSubaddress"
	case KindInsufficientLedger:
		return "InsufficientLedger"
	case KindTokenMismatch:
		return "TokenMismatch"
	case KindTransactionValidation:
		return "TransactionValidation"
	case KindMalformedOutput:
		return "MalformedOutput"
	case KindUnsupportedBlockVersion:
		return "UnsupportedBlockVersion"
	case KindDatabase:
		return "Database"
	case KindUnsupportedRequest:
		return "UnsupportedRequest"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type returned across subsystem boundaries. It
// wraps a go-errors/errors value so a stack trace is captured at the point
// of creation, which turns up in logs without changing the error message
// seen by callers using errors.Is/As.
type Error struct {
	kind    Kind
	subCode string
	detail  string
	cause   *goerrors.Error
}

// New creates an Error of the given kind with a human-readable detail
// string.
func New(kind Kind, detail string) *Error {
	return &Error{
		kind:   kind,
		detail: detail,
		cause:  goerrors.New(fmt.Sprintf("%s: %s", kind, detail)),
	}
}

// Newf is New with fmt.Sprintf-style formatting of the detail string.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind to an underlying error, preserving its message as
// the detail and capturing a fresh stack trace at the wrap site.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		kind:   kind,
		detail: err.Error(),
		cause:  goerrors.Wrap(err, 1),
	}
}

// WithSubCode attaches a peer-reported sub-code, used by
// KindTransactionValidation to propagate e.g. "ContainsSpentKeyImage"
// verbatim for client diagnosis.
func (e *Error) WithSubCode(sub string) *Error {
	e.subCode = sub
	return e
}

// Kind returns the symbolic error kind.
func (e *Error) Kind() Kind { return e.kind }

// SubCode returns the peer-reported sub-code, if any.
func (e *Error) SubCode() string { return e.subCode }

// Error implements the error interface.
func (e *Error) Error() string {
	if e.subCode != "" {
		return fmt.Sprintf("%s{%s}: %s", e.kind, e.subCode, e.detail)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.detail)
}

// Unwrap returns the original error this Error wraps, for errors.Is/As
// interop; the captured stack trace stays available through ErrorStack.
func (e *Error) Unwrap() error {
	if e.cause == nil {
		return nil
	}
	return e.cause.Err
}

// ErrorStack returns the captured stack trace, useful in error-level log
// lines.
func (e *Error) ErrorStack() string {
	if e.cause == nil {
		return ""
	}
	return e.cause.ErrorStack()
}

// Is reports whether err is an *Error of the given kind. It is a small
// convenience over errors.As that the dispatcher and tests use to branch on
// symbolic error kinds instead of string matching.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.kind == kind
}
