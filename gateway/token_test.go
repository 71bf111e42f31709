/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultGatewayURL = "https://gateway.example.com"

func TestExtractBaseURL(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"embedded url", "https://x.example:abc123", "https://x.example"},
		{"embedded url with port", "http://localhost:8080:abc123", "http://localhost:8080"},
		{"embedded url with path", "https://x.example/tenant:abc123", "https://x.example/tenant"},
		{"plain token", "abc123", defaultGatewayURL},
		{"empty token", "", defaultGatewayURL},
		{"leading colon", ":abc123", defaultGatewayURL},
		{"non http prefix", "ftp://x.example:abc", defaultGatewayURL},
		{"http lookalike", "httpfoo:abc", defaultGatewayURL},
		{"no host", "https://:abc", defaultGatewayURL},
		{"bad escape", "http://x%zz:abc", defaultGatewayURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractBaseURL(defaultGatewayURL, tt.token))
		})
	}
}

func TestOpaquePart(t *testing.T) {
	assert.Equal(t, "abc123", OpaquePart("https://x.example:abc123"))
	assert.Equal(t, "abc123", OpaquePart("abc123"))
	assert.Equal(t, "", OpaquePart(""))
}

func TestIsValid(t *testing.T) {
	assert.False(t, IsValid("short"))
	assert.False(t, IsValid(""))
	assert.False(t, IsValid("0123456789"), "exactly ten characters is not enough")
	assert.True(t, IsValid("a-valid-looking-token-123"))
}

func TestResolveAPIKey(t *testing.T) {
	assert.Equal(t, "gw", ResolveAPIKey(KeyOptions{GatewayToken: "gw", APIKey: "api"}))
	assert.Equal(t, "api", ResolveAPIKey(KeyOptions{APIKey: "api"}))
	assert.Equal(t, "", ResolveAPIKey(KeyOptions{}))
}

func TestCredentialExpiry(t *testing.T) {
	cred := &Credential{AccessToken: "tok"}
	assert.False(t, cred.IsExpired())
	assert.False(t, cred.HasRefreshToken())
	assert.Equal(t, "Bearer tok", cred.GetAuthorizationHeader())

	past := time.Now().Add(-time.Minute)
	cred.ExpiresAt = &past
	assert.True(t, cred.IsExpired())

	soon := time.Now().Add(time.Minute)
	cred.ExpiresAt = &soon
	assert.False(t, cred.IsExpired())
	assert.True(t, cred.IsExpiredWithBuffer(5*time.Minute))

	cred.TokenType = "MAC"
	assert.Equal(t, "MAC tok", cred.GetAuthorizationHeader())
}

func TestInspect(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"iss":   "https://gateway.example.com",
		"email": "a@b.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	details := Inspect("https://x.example:" + signed)
	assert.True(t, details.IsJWT)
	assert.Equal(t, "https://x.example", details.BaseURL)
	assert.Equal(t, "user-1", details.Subject)
	assert.Equal(t, "https://gateway.example.com", details.Issuer)
	assert.Equal(t, "a@b.com", details.Email)
	require.NotNil(t, details.ExpiresAt)
	assert.True(t, exp.Equal(*details.ExpiresAt))

	plain := Inspect("opaque-token-value")
	assert.False(t, plain.IsJWT)
	assert.Empty(t, plain.BaseURL)

	broken := Inspect("not.a.jwt")
	assert.False(t, broken.IsJWT)
}
