package rpc

import (
	"encoding/json"

	"github.com/mobilecoinofficial/full-service-sub000/errs"
)

// protocolVersion is the version tag carried on every request and response
// (§4.K "a protocol version tag, and a correlation id").
const protocolVersion = "2"

// request is the envelope POST /v2 expects: a method name, its parameters,
// a protocol version, and a caller-supplied correlation id echoed back on
// the response.
type request struct {
	Version string          `json:"version"`
	ID      string          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// response is the envelope every dispatched method returns: either Result
// or Error is set, never both.
type response struct {
	Version string       `json:"version"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *errorPayload `json:"error,omitempty"`
}

// errorPayload is the structured failure shape §4.K promises: "a numeric
// code, a symbolic message, and a human-readable detail".
type errorPayload struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    errorData `json:"data"`
}

type errorData struct {
	ServerError string `json:"server_error"`
	SubCode     string `json:"sub_code,omitempty"`
	Details     string `json:"details"`
}

// codeFor assigns a stable numeric code to each errs.Kind. Codes are never
// renumbered once assigned; unrecognized or non-symbolic errors fall back
// to codeInternal so a caller can always branch on a code rather than
// parsing message text.
const (
	codeInternal = 1000 + iota
	codeParseError
	codeMethodNotFound
	codeNetwork
	codeLedgerInconsistent
	codeBlockValidation
	codeAccountNotFound
	codeTxoNotFound
	codeTransactionLogNotFound
	codeAddressNotFound
	codeBlockNotFound
	codeAccountAlreadyExists
	codeInsufficientFunds
	codeInsufficientFundsAtSubaddress
	codeInsufficientLedger
	codeTokenMismatch
	codeTransactionValidation
	codeMalformedOutput
	codeUnsupportedBlockVersion
	codeDatabase
	codeUnsupportedRequest
	codeUnauthorized
)

func codeFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNetwork:
		return codeNetwork
	case errs.KindLedgerInconsistent:
		return codeLedgerInconsistent
	case errs.KindBlockValidation:
		return codeBlockValidation
	case errs.KindAccountNotFound:
		return codeAccountNotFound
	case errs.KindTxoNotFound:
		return codeTxoNotFound
	case errs.KindTransactionLogNotFound:
		return codeTransactionLogNotFound
	case errs.KindAddressNotFound:
		return codeAddressNotFound
	case errs.KindBlockNotFound:
		return codeBlockNotFound
	case errs.KindAccountAlreadyExists:
		return codeAccountAlreadyExists
	case errs.KindInsufficientFunds:
		return codeInsufficientFunds
	case errs.KindInsufficientFundsAtSubaddress:
		return codeInsufficientFundsAtSubaddress
	case errs.KindInsufficientLedger:
		return codeInsufficientLedger
	case errs.KindTokenMismatch:
		return codeTokenMismatch
	case errs.KindTransactionValidation:
		return codeTransactionValidation
	case errs.KindMalformedOutput:
		return codeMalformedOutput
	case errs.KindUnsupportedBlockVersion:
		return codeUnsupportedBlockVersion
	case errs.KindDatabase:
		return codeDatabase
	case errs.KindUnsupportedRequest:
		return codeUnsupportedRequest
	default:
		return codeInternal
	}
}

// errorPayloadFor converts any error returned by a handler into the wire
// error shape. Symbolic *errs.Error values surface their kind, sub-code and
// detail; anything else (a stdlib error slipping through, a panic recovery)
// is reported as an opaque internal error so a bug in one handler never
// leaks raw Go error text as the "message" field callers are expected to
// branch on.
func errorPayloadFor(err error) *errorPayload {
	if e, ok := err.(*errs.Error); ok {
		return &errorPayload{
			Code:    codeFor(e.Kind()),
			Message: e.Kind().String(),
			Data: errorData{
				ServerError: e.Kind().String(),
				SubCode:     e.SubCode(),
				Details:     e.Error(),
			},
		}
	}
	return &errorPayload{
		Code:    codeInternal,
		Message: "Internal",
		Data:    errorData{ServerError: "Internal", Details: err.Error()},
	}
}
