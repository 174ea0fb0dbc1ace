package mailerr

import (
	"errors"
	"fmt"
)

// Reason names the kind of failure that ended a send.
type Reason string

const (
	REASON_UNKNOWN             Reason = "UNKNOWN_ERROR"
	REASON_INVALID_INPUT       Reason = "INVALID_INPUT"
	REASON_NO_VALID_RECIPIENTS Reason = "NO_VALID_RECIPIENTS"
	REASON_NO_VALID_DOMAINS    Reason = "NO_VALID_DOMAINS"
	REASON_CONFIGURATION       Reason = "CONFIGURATION_ERROR"
	REASON_NO_RELAY            Reason = "NO_RELAY"
	REASON_NEGOTIATION         Reason = "NEGOTIATION_ERROR"
	REASON_AUTHENTICATION      Reason = "AUTHENTICATION_ERROR"
	REASON_SENDER_REFUSED      Reason = "SENDER_REFUSED"
)

var _ error = &Error{}

// Error is a failure that ended a send. Cause is the underlying error, if
// any.
type Error struct {
	Reason  Reason
	Message string
	Cause   error
}

// Error reads like "message (REASON): cause".
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s (%s)", e.Message, e.Reason)
	}
	return fmt.Sprintf("%s (%s): %v", e.Message, e.Reason, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// ReasonOf returns the Reason of the first *Error in err's chain, or
// REASON_UNKNOWN if there is none.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return REASON_UNKNOWN
}

// Is reports whether err carries the given reason.
func Is(err error, r Reason) bool {
	return err != nil && ReasonOf(err) == r
}

func newError(r Reason, msg string, cause error) *Error {
	return &Error{Reason: r, Message: msg, Cause: cause}
}

func NewInvalidInputError(message string, cause error) *Error {
	return newError(REASON_INVALID_INPUT, message, cause)
}

func NewNoValidRecipientsError(message string, cause error) *Error {
	return newError(REASON_NO_VALID_RECIPIENTS, message, cause)
}

func NewNoValidDomainsError(message string, cause error) *Error {
	return newError(REASON_NO_VALID_DOMAINS, message, cause)
}

func NewConfigurationError(message string, cause error) *Error {
	return newError(REASON_CONFIGURATION, message, cause)
}

func NewNoRelayError(message string, cause error) *Error {
	return newError(REASON_NO_RELAY, message, cause)
}

func NewNegotiationError(message string, cause error) *Error {
	return newError(REASON_NEGOTIATION, message, cause)
}

func NewAuthenticationError(message string, cause error) *Error {
	return newError(REASON_AUTHENTICATION, message, cause)
}

func NewSenderRefusedError(message string, cause error) *Error {
	return newError(REASON_SENDER_REFUSED, message, cause)
}
