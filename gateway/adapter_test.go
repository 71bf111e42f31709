/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedAuth(auth *StoredAuth) StoredAuthLoader {
	return func(context.Context) (*StoredAuth, error) {
		return auth, nil
	}
}

func newTestProvider(t *testing.T, profiles ProfileFetcher, opts ...ProviderOption) (*Provider, *Identity) {
	t.Helper()
	identity := NewIdentity(WithEnvLookup(noEnv), WithProfileFetcher(profiles))
	flow := NewDeviceFlow(DefaultConfig("https://gateway.example.com"))
	return NewProvider(flow, identity, opts...), identity
}

func TestProviderLoad(t *testing.T) {
	tests := []struct {
		name   string
		loader StoredAuthLoader
		want   map[string]string
	}{
		{
			name:   "api key",
			loader: storedAuth(&StoredAuth{Type: AuthKindAPI, Key: "k-123456789012"}),
			want:   map[string]string{KeyGatewayToken: "k-123456789012"},
		},
		{
			name:   "oauth with account",
			loader: storedAuth(&StoredAuth{Type: AuthKindOAuth, Access: "t", AccountID: "org1"}),
			want:   map[string]string{KeyGatewayToken: "t", KeyOrganizationID: "org1"},
		},
		{
			name:   "oauth without account",
			loader: storedAuth(&StoredAuth{Type: AuthKindOAuth, Access: "t"}),
			want:   map[string]string{KeyGatewayToken: "t"},
		},
		{
			name:   "nothing stored",
			loader: storedAuth(nil),
			want:   map[string]string{},
		},
		{
			name:   "no loader",
			loader: nil,
			want:   map[string]string{},
		},
		{
			name: "loader error",
			loader: func(context.Context) (*StoredAuth, error) {
				return nil, errors.New("keychain locked")
			},
			want: map[string]string{},
		},
		{
			name:   "unknown type",
			loader: storedAuth(&StoredAuth{Type: "wellknown", Key: "k"}),
			want:   map[string]string{},
		},
		{
			name:   "oauth without access token",
			loader: storedAuth(&StoredAuth{Type: AuthKindOAuth, Refresh: "r", AccountID: "org1"}),
			want:   map[string]string{},
		},
		{
			name: "loader panics",
			loader: func(context.Context) (*StoredAuth, error) {
				panic("corrupt store")
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, _ := newTestProvider(t, &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})},
				WithProviderLogger(newTestLogger()))

			got := provider.Load(context.Background(), tt.loader)

			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderLoadUpdatesIdentity(t *testing.T) {
	profiles := &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})}
	provider, identity := newTestProvider(t, profiles)

	provider.Load(context.Background(), storedAuth(&StoredAuth{Type: AuthKindOAuth, Access: "t", AccountID: "org1"}))
	assert.Equal(t, "a@b.com", identity.UserID())
	assert.Equal(t, "org1", identity.OrganizationID())
	assert.Equal(t, []string{"t"}, profiles.calls())

	// API keys carry no organization
	provider.Load(context.Background(), storedAuth(&StoredAuth{Type: AuthKindAPI, Key: "k"}))
	assert.Empty(t, identity.OrganizationID())

	provider.Load(context.Background(), storedAuth(nil))
	assert.Empty(t, identity.UserID())
	assert.Equal(t, UnknownDistinctID, identity.DistinctID())
}

func TestProviderDescriptor(t *testing.T) {
	provider, _ := newTestProvider(t, nil, WithMethodLabel("Sign in"))

	descriptor := provider.Descriptor()
	assert.Equal(t, ProviderName, descriptor.Provider)
	require.NotNil(t, descriptor.Loader)
	require.Len(t, descriptor.Methods, 1)
	assert.Equal(t, "Sign in", descriptor.Methods[0].Label)
	assert.Equal(t, "oauth", descriptor.Methods[0].Type)
	assert.NotNil(t, descriptor.Methods[0].Authorize)
}

func TestProviderAuthorize(t *testing.T) {
	g := newFakeGateway(t, 1, 30,
		pending(),
		fakeReply{http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"expires_in":    600,
			"account_id":    "org-9",
		}},
	)
	flow, _ := newTestFlow(g)
	profiles := &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})}
	identity := NewIdentity(WithEnvLookup(noEnv), WithProfileFetcher(profiles))
	sink := &recordingSink{}
	provider := NewProvider(flow, identity, WithProviderTelemetry(sink))

	var userCode string
	result := provider.Descriptor().Methods[0].Authorize(context.Background(), func(s *DeviceSession) {
		userCode = s.UserCode
	})

	require.Equal(t, StateAuthorized, result.Outcome, "err: %v", result.Err)
	assert.Equal(t, "ABCD-EFGH", userCode)
	require.NotNil(t, result.Auth)
	assert.Equal(t, AuthKindOAuth, result.Auth.Type)
	assert.Equal(t, "access-1", result.Auth.Access)
	assert.Equal(t, "refresh-1", result.Auth.Refresh)
	assert.Equal(t, "org-9", result.Auth.AccountID)
	require.NotNil(t, result.Auth.ExpiresAt())
	assert.WithinDuration(t, time.Now().Add(600*time.Second), *result.Auth.ExpiresAt(), 5*time.Second)

	assert.Equal(t, "a@b.com", identity.UserID())
	assert.Equal(t, []string{EventAuthorize}, sink.events)
}

func TestProviderAuthorizeDenied(t *testing.T) {
	g := newFakeGateway(t, 1, 30, fakeReply{http.StatusBadRequest, map[string]any{"error": "access_denied"}})
	flow, _ := newTestFlow(g)
	profiles := &stubProfiles{}
	provider := NewProvider(flow, NewIdentity(WithEnvLookup(noEnv), WithProfileFetcher(profiles)))

	result := provider.Authorize(context.Background(), nil)

	assert.Equal(t, StateDenied, result.Outcome)
	assert.Nil(t, result.Auth)
	assert.Error(t, result.Err)
	assert.Empty(t, profiles.calls())
}

func TestProviderRefresh(t *testing.T) {
	g := newFakeGateway(t, 1, 30, fakeReply{http.StatusOK, map[string]any{
		"access_token":  "access-2",
		"refresh_token": "refresh-2",
	}})
	flow, _ := newTestFlow(g)
	logger := newTestLogger()
	provider := NewProvider(flow, nil, WithProviderLogger(logger))

	apiKey := &StoredAuth{Type: AuthKindAPI, Key: "k"}
	same, err := provider.Refresh(context.Background(), apiKey)
	require.NoError(t, err)
	assert.Same(t, apiKey, same)

	refreshed, err := provider.Refresh(context.Background(),
		&StoredAuth{Type: AuthKindOAuth, Access: "access-1", Refresh: "refresh-1", AccountID: "org-1"})
	require.NoError(t, err)
	assert.Equal(t, "access-2", refreshed.Access)
	assert.Equal(t, "refresh-2", refreshed.Refresh)
	assert.Equal(t, "org-1", refreshed.AccountID, "the account survives a refresh that omits it")

	_, err = provider.Refresh(context.Background(), &StoredAuth{Type: AuthKindOAuth, Access: "a"})
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.True(t, logged(logger, "has no refresh token"))
	assert.EqualValues(t, 1, g.tokenHits.Load(), "a record without a refresh token never reaches the gateway")
}

func TestStoredAuthCredential(t *testing.T) {
	assert.Nil(t, (&StoredAuth{Type: AuthKindAPI, Key: "k"}).Credential())
	assert.Nil(t, (*StoredAuth)(nil).Credential())

	auth := &StoredAuth{Type: AuthKindOAuth, Access: "a", Refresh: "r", Expires: 1700000000000, AccountID: "org-1"}
	cred := auth.Credential()
	require.NotNil(t, cred)
	assert.True(t, cred.HasRefreshToken())
	assert.Equal(t, "Bearer a", cred.GetAuthorizationHeader())
	require.NotNil(t, cred.ExpiresAt)
	assert.Equal(t, auth, StoredAuthFromCredential(cred))
}

func TestProviderLogout(t *testing.T) {
	sink := &recordingSink{}
	provider, identity := newTestProvider(t, &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})},
		WithProviderTelemetry(sink))

	provider.Load(context.Background(), storedAuth(&StoredAuth{Type: AuthKindOAuth, Access: "t", AccountID: "org1"}))
	require.Equal(t, "a@b.com", identity.UserID())

	provider.Logout()

	assert.Empty(t, identity.UserID())
	assert.Empty(t, identity.OrganizationID())
	assert.Equal(t, []string{EventLogout}, sink.events)
}

func TestStoredAuthToken(t *testing.T) {
	var missing *StoredAuth
	assert.Empty(t, missing.Token())
	assert.Nil(t, missing.ExpiresAt())

	assert.Equal(t, "k", (&StoredAuth{Type: AuthKindAPI, Key: "k", Access: "a"}).Token())
	assert.Equal(t, "a", (&StoredAuth{Type: AuthKindOAuth, Key: "k", Access: "a"}).Token())
	assert.Empty(t, (&StoredAuth{Type: "other", Key: "k"}).Token())
}
