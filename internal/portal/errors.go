package portal

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a portal failure so callers can decide between
// reconfiguring, retrying later, or giving up on the cycle.
type ErrorKind int

const (
	// KindGeneric covers malformed payloads and anything unclassified.
	KindGeneric ErrorKind = iota

	// KindAuthentication means the credentials were rejected or a data
	// call returned 401/403. Retrying will not help.
	KindAuthentication

	// KindCommunication covers timeouts, network failures and non-2xx
	// statuses other than 401/403. Retry on the next cycle.
	KindCommunication
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindCommunication:
		return "communication"
	default:
		return "generic"
	}
}

// Error is returned by every Client operation that fails.
type Error struct {
	Kind ErrorKind

	// Op names the portal operation, e.g. "login" or "get appointments".
	Op string

	// StatusCode is the HTTP status when one was received, otherwise 0.
	StatusCode int

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("portal %s error (%s)", e.Kind, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoPastAppointments is returned when the past-appointments fallback
// comes back empty. The fallback is only taken when the caller expects it
// to yield something, so this is treated as an unexpected state.
var ErrNoPastAppointments = errors.New("no past appointments returned")

// KindOf returns the ErrorKind of err, or KindGeneric when err does not
// carry a portal Error.
func KindOf(err error) ErrorKind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return KindGeneric
}

// IsAuthError reports whether err (or any error in its chain) is an
// authentication failure.
func IsAuthError(err error) bool {
	return err != nil && KindOf(err) == KindAuthentication
}

// IsCommunicationError reports whether err (or any error in its chain) is
// a transient communication failure.
func IsCommunicationError(err error) bool {
	return err != nil && KindOf(err) == KindCommunication
}

func authError(op string, status int, err error) *Error {
	return &Error{Kind: KindAuthentication, Op: op, StatusCode: status, Err: err}
}

func commError(op string, status int, err error) *Error {
	return &Error{Kind: KindCommunication, Op: op, StatusCode: status, Err: err}
}

func genericError(op string, err error) *Error {
	return &Error{Kind: KindGeneric, Op: op, Err: err}
}
