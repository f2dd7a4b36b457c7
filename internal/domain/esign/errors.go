package esign

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired means no usable provider session exists for the admin.
	ErrAuthRequired = errors.New("signing provider authentication required")
	// ErrNotConfigured means the provider credentials are missing.
	ErrNotConfigured = errors.New("signing provider is not configured")
)

// ConsentError is returned by the JWT grant when the impersonated user has
// not yet granted application consent. ConsentURL is where to send them.
type ConsentError struct {
	ConsentURL string
}

func (e *ConsentError) Error() string {
	return "user consent required for the signing provider"
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Body)
}
