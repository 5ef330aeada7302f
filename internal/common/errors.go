// Package common defines shared constants and sentinel errors used across
// client and server layers of SkyRun. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrEmailTaken is returned when registration hits an existing account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrBusy is returned when a second auth operation is issued while
	// another one is still in flight.
	ErrBusy = errors.New("operation already in progress")

	// ErrTransport marks network-level failures: timeouts, refused
	// connections, DNS errors. Retryable; during login it triggers the
	// offline fallback instead of propagating.
	ErrTransport = errors.New("server unavailable")

	// ErrDecode marks a well-formed HTTP response that did not parse into
	// the expected shape. Never retried: it signals a protocol mismatch.
	ErrDecode = errors.New("unexpected server response")

	// ErrValidation marks input rejected before any network call.
	ErrValidation = errors.New("validation error")
)

// DomainError is a semantic rejection from the server (duplicate email,
// bad credentials, wrong security answer). Not retryable; the Message is
// suitable for showing to the user.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// AsDomainError unwraps err into a *DomainError if there is one in the chain.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
