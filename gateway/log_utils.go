/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"fmt"
	"strings"
	"time"
)

// SanitizeTokenForLogging safely truncates and redacts token values for logging.
// A URL prefix on a gateway token is not secret and is kept.
func SanitizeTokenForLogging(token string) string {
	if len(token) == 0 {
		return "[EMPTY]"
	}

	if baseURL, opaque, ok := splitToken(token); ok {
		return baseURL + ":" + redact(opaque)
	}

	return redact(token)
}

func redact(value string) string {
	if len(value) == 0 {
		return "[EMPTY]"
	}
	if len(value) <= 8 {
		return "[REDACTED]"
	}
	return value[:8] + "...[REDACTED]"
}

// SanitizeEmailForLogging keeps the first character of the local part and the domain
func SanitizeEmailForLogging(email string) string {
	if email == "" {
		return "[NONE]"
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "[REDACTED]"
	}
	return email[:1] + "***" + email[at:]
}

// SanitizeHeaderForLogging safely formats header values for logging
func SanitizeHeaderForLogging(headerName, headerValue string) string {
	lowerName := strings.ToLower(headerName)

	for _, sensitive := range []string{"authorization", "api-key", "token", "cookie"} {
		if strings.Contains(lowerName, sensitive) {
			if len(headerValue) > 0 {
				return fmt.Sprintf("[REDACTED - length %d]", len(headerValue))
			}
			return "[REDACTED]"
		}
	}

	return headerValue
}

// FormatExpiryForLogging creates a relative time representation for logging
func FormatExpiryForLogging(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "no_expiry"
	}

	timeUntilExpiry := time.Until(*expiresAt)
	if timeUntilExpiry <= 0 {
		return "expired"
	}

	return fmt.Sprintf("expires_in=%v", timeUntilExpiry.Round(time.Minute))
}
