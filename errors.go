package secsearch

import (
	"errors"
	"net/http"
)

// StatusCode maps an error to the HTTP status used by every transport.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrEmptyQuery),
		errors.Is(err, ErrInvalidTicker),
		errors.Is(err, ErrInvalidFormType),
		errors.Is(err, ErrInvalidDocument),
		errors.Is(err, ErrInvalidSelection),
		errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest

	case errors.Is(err, ErrFilingNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrDuplicateFiling):
		return http.StatusConflict

	case errors.Is(err, ErrCapacityExceeded):
		return http.StatusInsufficientStorage

	default:
		return http.StatusExpectationFailed
	}
}

// ErrorFromStatus rebuilds an error received from a remote service so that
// errors.Is keeps working on the client side.
func ErrorFromStatus(code int, msg string) error {
	var sentinel error
	switch code {
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	case http.StatusNotFound:
		sentinel = ErrFilingNotFound
	case http.StatusConflict:
		sentinel = ErrDuplicateFiling
	case http.StatusInsufficientStorage:
		sentinel = ErrCapacityExceeded
	default:
		return errors.New(msg)
	}

	return &remoteError{sentinel, msg}
}

type remoteError struct {
	sentinel error
	msg      string
}

func (e *remoteError) Error() string {
	return e.msg
}

func (e *remoteError) Unwrap() error {
	return e.sentinel
}
