package devicecloud

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the device cloud client.
// All errors are defined here for easy discovery and consistent organization.
var (
	// Authentication errors
	ErrUnauthorized = errors.New("devicecloud: unauthorized (invalid or expired API key)")
	ErrEmptyAPIKey  = errors.New("devicecloud: API key cannot be empty")

	// Resource errors
	ErrNotFound    = errors.New("devicecloud: resource not found")
	ErrRateLimited = errors.New("devicecloud: rate limited (too many requests)")

	// Notification channel errors
	ErrAlreadyActive  = errors.New("devicecloud: notification channel is already active")
	ErrChannelStopped = errors.New("devicecloud: notification channel stopped before the async response arrived")

	// Device validation errors
	ErrEmptyDeviceID     = errors.New("devicecloud: device ID cannot be empty")
	ErrEmptyResourcePath = errors.New("devicecloud: resource path cannot be empty")

	// Query validation errors
	ErrEmptyQueryID     = errors.New("devicecloud: query ID cannot be empty")
	ErrEmptyQueryName   = errors.New("devicecloud: query name cannot be empty")
	ErrEmptyQueryFilter = errors.New("devicecloud: query filter cannot be empty")

	// Webhook validation errors
	ErrEmptyWebhookURL = errors.New("devicecloud: webhook URL cannot be empty")
)

// APIError represents an error response from the device cloud API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
	RequestID  string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("devicecloud: API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
	}
	return fmt.Sprintf("devicecloud: API error %d: %s", e.StatusCode, e.Message)
}

// DecodeError indicates a notification or resource payload that could not be
// decoded, either because the base64 encoding was malformed or because the
// content type promised a structure the payload does not have.
type DecodeError struct {
	ContentType string
	Err         error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.ContentType != "" {
		return fmt.Sprintf("devicecloud: failed to decode payload (ct: %s): %v", e.ContentType, e.Err)
	}
	return fmt.Sprintf("devicecloud: failed to decode payload: %v", e.Err)
}

// Unwrap returns the underlying decode failure.
func (e *DecodeError) Unwrap() error { return e.Err }

// IsUnauthorized returns true if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 401
	}
	return false
}

// IsNotFound returns true if the error indicates the resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// IsAlreadyActive returns true if the error indicates the notification
// channel was already active when a start was attempted.
func IsAlreadyActive(err error) bool {
	return errors.Is(err, ErrAlreadyActive)
}

// IsDecodeError returns true if the error indicates a payload decode failure.
func IsDecodeError(err error) bool {
	var decErr *DecodeError
	return errors.As(err, &decErr)
}

// IsTimeout returns true if the error indicates a timeout.
func IsTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
