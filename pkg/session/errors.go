package session

import (
	"errors"
	"fmt"
)

// ErrSessionUnavailable is matched by every failed token acquisition.
var ErrSessionUnavailable = errors.New("session unavailable")

// Reasons a token acquisition can fail.
const (
	ReasonTransport = "transport_error"
	ReasonDecode    = "decode_error"
	ReasonRejected  = "rejected"
)

// AcquireError describes why a token exchange did not produce a session.
// The session is always inactive after an AcquireError.
type AcquireError struct {
	Reason     string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *AcquireError) Error() string {
	msg := fmt.Sprintf("token acquisition failed (%s", e.Reason)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(", status %d", e.StatusCode)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Is makes every AcquireError match ErrSessionUnavailable.
func (e *AcquireError) Is(target error) bool {
	return target == ErrSessionUnavailable
}
