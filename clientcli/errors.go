package clientcli

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Errors for profile operations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrNoProfiles      = errors.New("no profiles configured")
)

// Errors for configuration validation.
var (
	ErrConfigRequired  = errors.New("config is required")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// Errors for input validation.
var (
	ErrNoKeys    = errors.New("no keys provided")
	ErrEmptyPath = errors.New("path is required")
)

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	// Code is the machine readable kind from the error body, e.g. "not_found".
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := "server error: " + strconv.Itoa(e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += " - " + e.Message
	}
	return msg
}

// Is reports whether target matches this error.
// It matches if target is an *APIError with the same StatusCode.
func (e *APIError) Is(target error) bool {
	var t *APIError
	ok := errors.As(target, &t)
	if !ok {
		return false
	}
	return t.StatusCode == e.StatusCode
}

// IsNotFound returns true if the error is a 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Sentinel errors for common API error conditions.
// Use errors.Is() to check for these conditions.
var (
	// ErrNotFound is returned when the blob does not exist (404).
	ErrNotFound = &APIError{StatusCode: http.StatusNotFound}

	// ErrBadRequest is returned for invalid keys or unreadable bodies (400).
	ErrBadRequest = &APIError{StatusCode: http.StatusBadRequest}

	// ErrTooLarge is returned when an upload exceeds the server limit (413).
	ErrTooLarge = &APIError{StatusCode: http.StatusRequestEntityTooLarge}

	// ErrRateLimited is returned when the server throttles the client (429).
	ErrRateLimited = &APIError{StatusCode: http.StatusTooManyRequests}
)

// parseServerError builds an APIError from a response, decoding the JSON
// error body when there is one.
func parseServerError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var envelope struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		apiErr.Code = envelope.Error
		apiErr.Message = envelope.Message
	} else if len(body) > 0 {
		apiErr.Message = string(body)
	}

	return apiErr
}
