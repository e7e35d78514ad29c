package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Code is a stable, machine-readable error kind. Codes are part of the
// output contract and map to process exit codes.
type Code string

const (
	CodeConfigInvalid       Code = "INVALID_CONFIG"
	CodeWalletNotConnected  Code = "WALLET_NOT_CONNECTED"
	CodeInvalidMnemonic     Code = "INVALID_MNEMONIC"
	CodeRPCConnectionFailed Code = "RPC_CONNECTION_FAILED"
	CodeQueryFailed         Code = "QUERY_FAILED"
	CodeTxFailed            Code = "TX_FAILED"
	CodeUnsupportedQuery    Code = "UNSUPPORTED_QUERY"
	CodeUnsupportedTx       Code = "UNSUPPORTED_TX"
	CodeUnknownModule       Code = "UNKNOWN_MODULE"
	CodeUnknownSubcommand   Code = "UNKNOWN_SUBCOMMAND"
	CodeInvalidAddress      Code = "INVALID_ADDRESS"
	CodeInsufficientFunds   Code = "INSUFFICIENT_FUNDS"
	CodeUnknown             Code = "UNKNOWN_ERROR"
	CodeUsage               Code = "INVALID_USAGE"
	CodeBlocked             Code = "COMMAND_BLOCKED"
)

// nonRetryable lists the codes whose outcome cannot change by retrying,
// whatever the message says.
var nonRetryable = map[Code]struct{}{
	CodeConfigInvalid:      {},
	CodeWalletNotConnected: {},
	CodeInvalidMnemonic:    {},
	CodeInvalidAddress:     {},
	CodeUnsupportedQuery:   {},
	CodeUnsupportedTx:      {},
	CodeUnknownModule:      {},
	CodeUnknownSubcommand:  {},
	CodeInsufficientFunds:  {},
	CodeUnknown:            {},
	CodeUsage:              {},
	CodeBlocked:            {},
}

var exitCodes = map[Code]int{
	CodeUnknown:             1,
	CodeUsage:               2,
	CodeConfigInvalid:       3,
	CodeWalletNotConnected:  10,
	CodeInvalidMnemonic:     10,
	CodeRPCConnectionFailed: 12,
	CodeQueryFailed:         20,
	CodeTxFailed:            21,
	CodeUnsupportedQuery:    13,
	CodeUnsupportedTx:       13,
	CodeUnknownModule:       13,
	CodeUnknownSubcommand:   13,
	CodeInvalidAddress:      2,
	CodeInsufficientFunds:   22,
	CodeBlocked:             16,
}

// Error is the single error type surfaced by the core. Details carries
// structured diagnostics such as the list of valid alternatives.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// HasDetails reports whether the error already carries structured detail.
func (e *Error) HasDetails() bool {
	return e != nil && len(e.Details) > 0
}

// WithDetails merges the given keys into a copy of the error. Keys that are
// already present are kept.
func (e *Error) WithDetails(details map[string]any) *Error {
	out := *e
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range details {
		merged[k] = v
	}
	for k, v := range e.Details {
		merged[k] = v
	}
	out.Details = merged
	return &out
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap keeps cause reachable through errors.Unwrap and renders its text
// after message.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func WithDetails(code Code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeUnknown when err is foreign.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}

// IsNonRetryable reports whether code belongs to the fixed never-retry set.
func IsNonRetryable(code Code) bool {
	_, ok := nonRetryable[code]
	return ok
}

// NonRetryableCodes returns the never-retry set in a stable order.
func NonRetryableCodes() []Code {
	out := make([]Code, 0, len(nonRetryable))
	for code := range nonRetryable {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if cliErr, ok := As(err); ok {
		if code, ok := exitCodes[cliErr.Code]; ok {
			return code
		}
	}
	return exitCodes[CodeUnknown]
}
