/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package internal

import (
	"regexp"
)

// Validation constants
//
//goland:noinspection GoCommentStart
const (
	// Provider name constraints
	MaxProviderNameLength = 64
	MinProviderNameLength = 1

	// Credential constraints
	MaxCredentialLength = 8192
)

// Auth record types
const (
	AuthTypeAPI   = "api"
	AuthTypeOAuth = "oauth"
)

// Provider names may contain alphanumeric, underscore, hyphen and dot
var providerNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)

// ValidateProviderName validates a provider name
func ValidateProviderName(provider string) error {
	if len(provider) < MinProviderNameLength {
		return &ValidationError{
			Field:   "provider",
			Value:   len(provider),
			Message: "provider name too short",
		}
	}

	if len(provider) > MaxProviderNameLength {
		return &ValidationError{
			Field:   "provider",
			Value:   len(provider),
			Message: "provider name too long",
		}
	}

	if !providerNameRegex.MatchString(provider) {
		return &ValidationError{
			Field:   "provider",
			Value:   provider,
			Message: "provider name contains invalid characters",
		}
	}

	return nil
}

// ValidateAuthType validates an auth record type
func ValidateAuthType(authType string) error {
	switch authType {
	case AuthTypeAPI, AuthTypeOAuth:
		return nil
	default:
		return &ValidationError{
			Field:   "type",
			Value:   authType,
			Message: "auth type must be 'api' or 'oauth'",
		}
	}
}

// ValidateCredential validates the length of a stored secret
func ValidateCredential(field, value string) error {
	if len(value) > MaxCredentialLength {
		return &ValidationError{
			Field:   field,
			Value:   len(value),
			Message: field + " too long",
		}
	}
	return nil
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
