package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds surfaced by the session layer and the API clients.
var (
	// Credential and form errors, recovered locally by the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation failed")

	// Authorization errors
	ErrUnauthorized    = errors.New("unauthorized")
	ErrRefreshRejected = errors.New("session expired, please log in again")
	ErrNoSession       = errors.New("no session")
	ErrForbidden       = errors.New("forbidden")

	// Transport and server errors
	ErrNetwork = errors.New("network error")
	ErrServer  = errors.New("server error")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
)

// APIError is a non-2xx response from the remote API. Kind is one of the
// sentinels above so callers can match with errors.Is.
type APIError struct {
	Status  int
	Message string
	Kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// KindForStatus maps an HTTP status to an error kind. 401 on a credential
// exchange is mapped by the caller, which knows which endpoint it hit.
func KindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status >= 500:
		return ErrServer
	}
	return ErrServer
}

// NetworkError marks err as a transport failure while keeping it in the chain.
func NetworkError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// Message returns the user-facing text for err: the server message when the
// error came from the API, otherwise fallback.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if Is(err, ErrRefreshRejected) {
		return ErrRefreshRejected.Error()
	}
	return fallback
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
