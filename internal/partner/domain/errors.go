package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder is returned when an order payload lacks the fields a
	// delivery job needs, such as drop coordinates.
	ErrInvalidOrder = errors.New("invalid_order")
	ErrInvalidEvent = errors.New("invalid_event")
)

// AuthError is returned when the partner rejects credentials or a token.
// Authenticating is set when the failure came from the token exchange itself.
type AuthError struct {
	StatusCode     int
	Body           string
	Authenticating bool
}

func (e *AuthError) Error() string {
	if e.Authenticating {
		return fmt.Sprintf("partner authentication failed: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("partner rejected token: status %d", e.StatusCode)
}

// APIRequestError is a non-2xx, non-401 partner response.
type APIRequestError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIRequestError) Error() string {
	return fmt.Sprintf("partner %s failed: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// TransientNetworkError wraps transport failures and timeouts.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("partner %s: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a credential that is missing data required to
// create jobs. It aborts the current event only.
type ConfigurationError struct {
	CredentialID string
	Field        string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("credential %s is missing %s", e.CredentialID, e.Field)
}

func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
