package models

import (
	"errors"
	"fmt"
)

// Error sentinels. Every failure of an update cycle wraps exactly one of these.
var (
	// ErrParse is returned when a provider response has an unexpected shape.
	ErrParse = errors.New("unexpected response")
	// ErrAuth is returned when a login or refresh step is rejected.
	ErrAuth = errors.New("authentication failed")
	// ErrAccount is returned when no usable account number can be resolved.
	ErrAccount = errors.New("account resolution failed")
	// ErrFetch is returned when the usage endpoint answers with a non-200 status.
	ErrFetch = errors.New("usage fetch failed")
	// ErrValidation is returned for unsupported caller input.
	ErrValidation = errors.New("invalid input")
)

// AuthError carries the error code and description reported by the identity
// provider, or the HTTP status of a rejected step.
type AuthError struct {
	Code        string
	Description string
	Status      int
}

func (e *AuthError) Error() string {
	switch {
	case e.Code != "" && e.Description != "":
		return fmt.Sprintf("%v: %s: %s", ErrAuth, e.Code, e.Description)
	case e.Code != "":
		return fmt.Sprintf("%v: %s", ErrAuth, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("%v: status %d: %s", ErrAuth, e.Status, e.Description)
	default:
		return fmt.Sprintf("%v: %s", ErrAuth, e.Description)
	}
}

// Unwrap makes errors.Is(err, ErrAuth) hold.
func (e *AuthError) Unwrap() error { return ErrAuth }

// FetchError carries the status of a failed usage request.
type FetchError struct {
	Endpoint EndpointKind
	Status   int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%v: %s returned status %d", ErrFetch, e.Endpoint, e.Status)
}

// Unwrap makes errors.Is(err, ErrFetch) hold.
func (e *FetchError) Unwrap() error { return ErrFetch }

// IsAuthFailure reports whether err should invalidate the current session.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrAccount)
}
