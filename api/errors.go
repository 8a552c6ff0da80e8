package api

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded signals the budget cannot cover another call. It is
// never retried: extraction truncates and the run finishes partial.
var ErrQuotaExceeded = errors.New("quota exceeded")

// ErrorCategory classifies a non-transient API rejection.
type ErrorCategory string

const (
	// CategoryBadRequest the API rejected the request parameters
	CategoryBadRequest ErrorCategory = "bad-request"
	// CategoryAuth the credential was rejected
	CategoryAuth ErrorCategory = "auth"
	// CategoryNotFound the requested resource does not exist
	CategoryNotFound ErrorCategory = "not-found"
	// CategoryMalformed the response body could not be decoded
	CategoryMalformed ErrorCategory = "malformed-response"
	// CategoryTransient a transient failure survived every retry attempt
	CategoryTransient ErrorCategory = "transient-exhausted"
)

// APIError is a fatal API failure: either an immediate non-transient
// rejection, or a transient fault that exhausted the retry budget.
type APIError struct {
	Category   ErrorCategory
	StatusCode int
	Attempts   int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error (%s, status %d, attempts %d): %v", e.Category, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("api error (%s, status %d): %s", e.Category, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// transientError marks a failure the retry loop may attempt again:
// network faults, 5xx responses, and rate limiting with retry semantics.
type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("transient: %v", e.err)
}

func (e *transientError) Unwrap() error {
	return e.err
}

// IsQuotaExceeded reports whether err is (or wraps) quota exhaustion.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
