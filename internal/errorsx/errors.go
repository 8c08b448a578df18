package errorsx

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types for the application
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingCredential = errors.New("missing LLM credential")
	ErrUpstream          = errors.New("LLM service error")
	ErrTimeout           = errors.New("operation timeout")
	ErrUnavailable       = errors.New("service unavailable")
)

// Wrap wraps an error with additional context message
// Returns nil if the error is nil
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message
// Returns nil if the error is nil
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Upstream marks err as a failure of the external LLM service while keeping
// the original error in the chain.
func Upstream(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}

// Timeout marks err as an LLM call that ran out of time
func Timeout(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTimeout, err)
}

// HTTPStatus maps an internal error to the HTTP status code returned to clients
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsMissingCredential checks if an error reports an absent API key
func IsMissingCredential(err error) bool {
	return errors.Is(err, ErrMissingCredential)
}

// IsUpstream checks if an error came from the LLM service
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstream)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsUnavailable checks if an error is an unavailable error
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
