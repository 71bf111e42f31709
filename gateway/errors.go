/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"errors"
	"fmt"
	"time"
)

// Polling errors
var (
	ErrPollTimeout         = errors.New("timeout: maximum attempts reached")
	ErrPollNoData          = errors.New("poll stopped without data")
	ErrPollCancelled       = errors.New("poll cancelled")
	ErrInvalidMaxAttempts  = errors.New("maxAttempts must be at least 1")
	ErrMissingPollFunction = errors.New("poll function is required")
)

// ErrNoRefreshToken is returned by DeviceFlow.Refresh when no refresh token is supplied
var ErrNoRefreshToken = errors.New("no refresh token available")

// AuthorizationError describes a terminal, non-successful device authorization
type AuthorizationError struct {
	State   FlowState `json:"state"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e AuthorizationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("device authorization %s: %s: %v", e.State, e.Message, e.Cause)
	}
	return fmt.Sprintf("device authorization %s: %s", e.State, e.Message)
}

// Unwrap returns the underlying error
func (e AuthorizationError) Unwrap() error {
	return e.Cause
}

// IsTimeout reports whether the polling budget ran out locally rather than the
// gateway reporting the device code as expired.
func (e AuthorizationError) IsTimeout() bool {
	return errors.Is(e.Cause, ErrPollTimeout)
}

// GetUserFriendlyMessage returns a message the host can show to the user
func (e AuthorizationError) GetUserFriendlyMessage() string {
	switch e.State {
	case StateDenied:
		return "Authorization was denied in the browser. Run the login again and approve the request to continue."
	case StateExpired:
		if e.IsTimeout() {
			return "Timed out waiting for the browser authorization to complete. Run the login again and enter the code sooner."
		}
		return "The device code expired before it was approved. Run the login again to get a new code."
	case StateCancelled:
		return "Login was cancelled."
	default:
		return fmt.Sprintf("Login failed: %s. Check your network connection and the gateway URL, then try again.", e.Message)
	}
}

// NewAuthorizationError creates a new AuthorizationError
func NewAuthorizationError(state FlowState, message string, cause error) *AuthorizationError {
	return &AuthorizationError{
		State:   state,
		Message: message,
		Cause:   cause,
	}
}

// ConfigurationError represents configuration-related errors
type ConfigurationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error in field %s: %s: %v", e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error in field %s: %s", e.Field, e.Message)
}

// GetUserFriendlyMessage returns a user-friendly error message with suggestions
func (e ConfigurationError) GetUserFriendlyMessage() string {
	switch e.Field {
	case "file":
		return fmt.Sprintf("Configuration file could not be loaded: %s Please check the file path and ensure the file exists and is readable.", e.Message)
	case "json":
		return fmt.Sprintf("Configuration file contains invalid JSON: %s Please check the syntax of your configuration file.", e.Message)
	case "baseURL":
		return "The gateway base URL is invalid or missing. Please set baseURL to a valid HTTP/HTTPS URL."
	case "clientId":
		return "The OAuth2 client ID is missing. Please add the clientId field to your configuration."
	default:
		return fmt.Sprintf("Configuration error in field '%s': %s Please check your configuration file.", e.Field, e.Message)
	}
}

// Unwrap returns the underlying error
func (e ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a new ConfigurationError
func NewConfigurationError(field, message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCategory represents the category of an error
type ErrorCategory string

//goland:noinspection GoUnusedConst
const (
	ErrorCategoryPermanent ErrorCategory = "permanent" // Permanent errors that should not be retried
	ErrorCategoryAuth      ErrorCategory = "auth"      // Authentication/authorization errors
	ErrorCategoryRateLimit ErrorCategory = "ratelimit" // Rate limiting errors
	ErrorCategoryNetwork   ErrorCategory = "network"   // Network connectivity errors
	ErrorCategoryTimeout   ErrorCategory = "timeout"   // Timeout errors
	ErrorCategoryServer    ErrorCategory = "server"    // Server-side errors
	ErrorCategoryClient    ErrorCategory = "client"    // Client-side errors
)

// APIError represents a non-2xx response from a gateway endpoint
type APIError struct {
	Endpoint   string        `json:"endpoint"`
	StatusCode int           `json:"status_code"`
	Code       string        `json:"code,omitempty"`
	Message    string        `json:"message"`
	Category   ErrorCategory `json:"category"`
	Timestamp  time.Time     `json:"timestamp"`
}

// Error implements the error interface
func (e APIError) Error() string {
	if e.StatusCode == 401 || e.StatusCode == 403 {
		return "Invalid token"
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway request failed (HTTP %d, %s)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("gateway request failed (HTTP %d)", e.StatusCode)
}

// IsTransient returns whether the error is worth another attempt
func (e APIError) IsTransient() bool {
	return e.Category == ErrorCategoryTimeout || e.Category == ErrorCategoryRateLimit ||
		e.Category == ErrorCategoryServer
}

// NewAPIError creates a new APIError with automatic categorization
func NewAPIError(endpoint string, statusCode int, code, message string) *APIError {
	return &APIError{
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Category:   categorizeHTTPError(statusCode),
		Timestamp:  time.Now(),
	}
}

// NetworkError represents a transport failure talking to the gateway
type NetworkError struct {
	URL       string        `json:"url"`
	Method    string        `json:"method"`
	Message   string        `json:"message"`
	Cause     error         `json:"-"`
	Timeout   bool          `json:"timeout"`
	Category  ErrorCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
}

// Error implements the error interface
func (e NetworkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network error for %s %s: %s: %v", e.Method, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("network error for %s %s: %s", e.Method, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e NetworkError) Unwrap() error {
	return e.Cause
}

// IsTimeout returns true if the error was due to a timeout
func (e NetworkError) IsTimeout() bool {
	return e.Timeout
}

// NewNetworkError creates a new NetworkError with automatic categorization
func NewNetworkError(url, method, message string, cause error, timeout bool) *NetworkError {
	category := ErrorCategoryNetwork
	if timeout {
		category = ErrorCategoryTimeout
	}
	return &NetworkError{
		URL:       url,
		Method:    method,
		Message:   message,
		Cause:     cause,
		Timeout:   timeout,
		Category:  category,
		Timestamp: time.Now(),
	}
}

// categorizeHTTPError categorizes an HTTP status code into an error category
func categorizeHTTPError(statusCode int) ErrorCategory {
	switch {
	case statusCode == 429:
		return ErrorCategoryRateLimit
	case statusCode == 408:
		return ErrorCategoryTimeout
	case statusCode == 401 || statusCode == 403:
		return ErrorCategoryAuth
	case statusCode >= 400 && statusCode < 500:
		return ErrorCategoryClient
	case statusCode >= 500:
		return ErrorCategoryServer
	default:
		return ErrorCategoryPermanent
	}
}

// Helper functions for safe error type checking with wrapped errors

// AsAuthorizationError safely extracts an AuthorizationError from an error chain
func AsAuthorizationError(err error) (*AuthorizationError, bool) {
	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

// AsConfigurationError safely extracts a ConfigurationError from an error chain
func AsConfigurationError(err error) (*ConfigurationError, bool) {
	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		return cfgErr, true
	}
	return nil, false
}

// AsNetworkError safely extracts a NetworkError from an error chain
func AsNetworkError(err error) (*NetworkError, bool) {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr, true
	}
	return nil, false
}

// AsAPIError safely extracts an APIError from an error chain
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
