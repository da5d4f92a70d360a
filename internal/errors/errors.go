// Package errors defines the structured error type shared by every
// nex-client component. Codes classify failures so callers can decide
// between logout, retry and surfacing without string matching.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes.
const (
	ErrNotConfigured   = "NOT_CONFIGURED"
	ErrUnauthorized    = "UNAUTHORIZED"
	ErrUnreachable     = "UNREACHABLE"
	ErrNotConnected    = "NOT_CONNECTED"
	ErrTransportClosed = "TRANSPORT_CLOSED"
	ErrDecode          = "DECODE"
	ErrConfig          = "CONFIG"
)

// Error is a classified failure with an optional hint for the user.
//
//	✗ <What failed>
//
//	  <Why it failed>
//
//	  <How to fix it>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error

	// CloseCode is set for ErrTransportClosed.
	CloseCode int
}

// New creates a structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// WrapWithCode wraps err with a code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NotConfigured reports a missing endpoint or bearer token.
func NotConfigured(what string) *Error {
	return New(ErrNotConfigured,
		what+" is not configured",
		"Run 'nex-client connect <host>' and 'nex-client login' first")
}

// Unauthorized reports a rejected bearer token or login.
func Unauthorized(message string) *Error {
	return New(ErrUnauthorized, message, "Log in again with 'nex-client login'")
}

// Unreachable wraps a network, status or body failure talking to the host.
func Unreachable(err error, message string) *Error {
	return WrapWithCode(err, ErrUnreachable, message,
		"Check that the NEX server is running and the endpoint is correct")
}

// NotConnected reports a command attempted without an open stream.
func NotConnected() *Error {
	return New(ErrNotConnected, "Not connected", "Unable to send command")
}

// TransportClosed reports a stream closure with the given close code.
func TransportClosed(code int, reason string) *Error {
	msg := fmt.Sprintf("transport closed: %d", code)
	if reason != "" {
		msg += " (" + reason + ")"
	}
	return &Error{Code: ErrTransportClosed, Message: msg, CloseCode: code}
}

// Decode wraps a malformed inbound payload.
func Decode(err error, message string) *Error {
	return WrapWithCode(err, ErrDecode, message, "")
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var nexErr *Error
	if errors.As(err, &nexErr) {
		return nexErr.Code == code
	}
	return false
}

// Code returns the code of a structured error, or "" for anything else.
func Code(err error) string {
	var nexErr *Error
	if errors.As(err, &nexErr) {
		return nexErr.Code
	}
	return ""
}
