/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minTokenLength is the exclusive lower bound used by IsValid
const minTokenLength = 10

// Credential is a gateway credential obtained through device authorization
type Credential struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	AccountID    string     `json:"account_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scope        []string   `json:"scope,omitempty"`
}

// IsExpired checks if the credential is expired
func (c *Credential) IsExpired() bool {
	return c.IsExpiredWithBuffer(0)
}

// IsExpiredWithBuffer checks if the credential expires within buffer
func (c *Credential) IsExpiredWithBuffer(buffer time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(buffer).After(*c.ExpiresAt)
}

// HasRefreshToken returns true if the credential has a refresh token
func (c *Credential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// GetAuthorizationHeader returns the authorization header value
func (c *Credential) GetAuthorizationHeader() string {
	if c.TokenType != "" && !strings.EqualFold(c.TokenType, "bearer") {
		return c.TokenType + " " + c.AccessToken
	}
	return "Bearer " + c.AccessToken
}

// splitToken separates an optional "<url>:" prefix from the opaque part of a
// gateway token. The last colon is the separator because the URL itself
// carries "://" and possibly a port.
func splitToken(token string) (baseURL, opaque string, ok bool) {
	idx := strings.LastIndex(token, ":")
	if idx <= 0 {
		return "", token, false
	}

	prefix := token[:idx]
	if !strings.HasPrefix(prefix, "http") {
		return "", token, false
	}

	u, err := url.Parse(prefix)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", token, false
	}

	return prefix, token[idx+1:], true
}

// ExtractBaseURL returns the base URL embedded in token, or defaultURL when
// the token carries none or it cannot be parsed.
func ExtractBaseURL(defaultURL, token string) string {
	if baseURL, _, ok := splitToken(token); ok {
		return baseURL
	}
	return defaultURL
}

// OpaquePart returns token without its base URL prefix
func OpaquePart(token string) string {
	_, opaque, _ := splitToken(token)
	return opaque
}

// IsValid is a shallow structural check. The gateway remains the authority.
func IsValid(token string) bool {
	return len(token) > minTokenLength
}

// KeyOptions holds the places a gateway key may be configured
type KeyOptions struct {
	GatewayToken string `json:"gatewayToken,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
}

// ResolveAPIKey prefers an explicit gateway token over a generic API key.
// It returns "" when neither is set.
func ResolveAPIKey(opts KeyOptions) string {
	if opts.GatewayToken != "" {
		return opts.GatewayToken
	}
	return opts.APIKey
}

// TokenDetails is advisory information read from a JWT credential without
// verifying its signature
type TokenDetails struct {
	IsJWT     bool       `json:"is_jwt"`
	BaseURL   string     `json:"base_url,omitempty"`
	Subject   string     `json:"subject,omitempty"`
	Email     string     `json:"email,omitempty"`
	Issuer    string     `json:"issuer,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Inspect decodes the claims of a JWT gateway token. Signatures are not
// verified and malformed tokens yield zero-value details.
func Inspect(token string) TokenDetails {
	var details TokenDetails

	baseURL, opaque, ok := splitToken(token)
	if ok {
		details.BaseURL = baseURL
	}

	if strings.Count(opaque, ".") != 2 {
		return details
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(opaque, claims); err != nil {
		return details
	}

	details.IsJWT = true
	details.Subject, _ = claims.GetSubject()
	details.Issuer, _ = claims.GetIssuer()
	if email, ok := claims["email"].(string); ok {
		details.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		details.ExpiresAt = &t
	}

	return details
}
