/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"strconv"
	"time"

	"github.com/PivotLLM/GatewayAuth/global"
)

// ProviderName is the stable name under which the host registers this provider
const ProviderName = "gateway"

// Credential map keys returned by Provider.Load
const (
	KeyGatewayToken   = "gatewayToken"
	KeyOrganizationID = "organizationId"
)

// AuthKind is the kind of credential record the host stores
type AuthKind string

const (
	AuthKindAPI   AuthKind = "api"
	AuthKindOAuth AuthKind = "oauth"
)

// StoredAuth is the credential record persisted by the host
type StoredAuth struct {
	Type      AuthKind `json:"type"`
	Key       string   `json:"key,omitempty"`
	Access    string   `json:"access,omitempty"`
	Refresh   string   `json:"refresh,omitempty"`
	Expires   int64    `json:"expires,omitempty"` // unix milliseconds, 0 when unknown
	AccountID string   `json:"accountId,omitempty"`
}

// Token returns the gateway token carried by the record
func (a *StoredAuth) Token() string {
	if a == nil {
		return ""
	}
	switch a.Type {
	case AuthKindAPI:
		return a.Key
	case AuthKindOAuth:
		return a.Access
	default:
		return ""
	}
}

// ExpiresAt returns the access token expiry, or nil when unknown
func (a *StoredAuth) ExpiresAt() *time.Time {
	if a == nil || a.Expires <= 0 {
		return nil
	}
	t := time.UnixMilli(a.Expires)
	return &t
}

// Credential returns the OAuth record as a device flow credential, or nil for
// other record kinds
func (a *StoredAuth) Credential() *Credential {
	if a == nil || a.Type != AuthKindOAuth {
		return nil
	}
	return &Credential{
		AccessToken:  a.Access,
		RefreshToken: a.Refresh,
		AccountID:    a.AccountID,
		ExpiresAt:    a.ExpiresAt(),
	}
}

// StoredAuthFromCredential converts a device flow credential into a host record
func StoredAuthFromCredential(c *Credential) *StoredAuth {
	auth := &StoredAuth{
		Type:      AuthKindOAuth,
		Access:    c.AccessToken,
		Refresh:   c.RefreshToken,
		AccountID: c.AccountID,
	}
	if c.ExpiresAt != nil {
		auth.Expires = c.ExpiresAt.UnixMilli()
	}
	return auth
}

// StoredAuthLoader returns the host's stored record, or nil when none exists
type StoredAuthLoader func(ctx context.Context) (*StoredAuth, error)

// LoaderFunc is the credential loader capability handed to the host
type LoaderFunc func(ctx context.Context, getStoredAuth StoredAuthLoader) map[string]string

// AuthorizeFunc is an interactive login capability handed to the host
type AuthorizeFunc func(ctx context.Context, onSession func(*DeviceSession)) AuthorizeResult

// AuthMethod is one login method offered to the host
type AuthMethod struct {
	Label     string
	Type      string
	Authorize AuthorizeFunc
}

// ProviderDescriptor is what the host's auth system registers
type ProviderDescriptor struct {
	Provider string
	Loader   LoaderFunc
	Methods  []AuthMethod
}

// AuthorizeResult is the outcome of Provider.Authorize. Auth is set only
// when Outcome is StateAuthorized.
type AuthorizeResult struct {
	Outcome FlowState
	Auth    *StoredAuth
	Session *DeviceSession
	Err     error
}

// Provider adapts the device flow and identity resolver to a host auth system
type Provider struct {
	flow     *DeviceFlow
	identity *Identity
	logger   global.Logger
	sink     TelemetrySink
	label    string
}

// ProviderOption configures a Provider
type ProviderOption func(*Provider)

// WithProviderLogger sets the logger
func WithProviderLogger(logger global.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithProviderTelemetry sets the sink that receives authorization events
func WithProviderTelemetry(sink TelemetrySink) ProviderOption {
	return func(p *Provider) {
		p.sink = sink
	}
}

// WithMethodLabel sets the label of the device login method
func WithMethodLabel(label string) ProviderOption {
	return func(p *Provider) {
		p.label = label
	}
}

// NewProvider creates a provider around flow and identity. identity may be nil.
func NewProvider(flow *DeviceFlow, identity *Identity, opts ...ProviderOption) *Provider {
	p := &Provider{
		flow:     flow,
		identity: identity,
		label:    "Login with your browser",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Descriptor returns the capabilities the host registers
func (p *Provider) Descriptor() ProviderDescriptor {
	return ProviderDescriptor{
		Provider: ProviderName,
		Loader:   p.Load,
		Methods: []AuthMethod{
			{
				Label:     p.label,
				Type:      string(AuthKindOAuth),
				Authorize: p.Authorize,
			},
		},
	}
}

// Load turns the stored record into the credential map used for gateway
// calls and refreshes the identity. It never fails: an unusable or missing
// record yields an empty map.
func (p *Provider) Load(ctx context.Context, getStoredAuth StoredAuthLoader) (credentials map[string]string) {
	credentials = map[string]string{}

	defer func() {
		if r := recover(); r != nil {
			if p.logger != nil {
				p.logger.Errorf("Recovered from panic while loading gateway credentials: %v", r)
			}
			credentials = map[string]string{}
		}
	}()

	var auth *StoredAuth
	if getStoredAuth != nil {
		stored, err := getStoredAuth(ctx)
		if err != nil {
			if p.logger != nil {
				p.logger.Warningf("Failed to read stored gateway credentials: %v", err)
			}
		} else {
			auth = stored
		}
	}

	accountID := ""
	switch {
	case auth == nil:
	case auth.Type == AuthKindAPI && auth.Key != "":
		credentials[KeyGatewayToken] = auth.Key
	case auth.Type == AuthKindOAuth && auth.Access != "":
		credentials[KeyGatewayToken] = auth.Access
		if auth.AccountID != "" {
			credentials[KeyOrganizationID] = auth.AccountID
			accountID = auth.AccountID
		}
	default:
		if p.logger != nil {
			p.logger.Warningf("Ignoring stored gateway credential of type %q", auth.Type)
		}
	}

	if p.logger != nil && credentials[KeyGatewayToken] != "" {
		p.logger.Debugf("Loaded gateway credential %s", SanitizeTokenForLogging(credentials[KeyGatewayToken]))
	}

	if p.identity != nil {
		p.identity.UpdateFromAuth(ctx, credentials[KeyGatewayToken], accountID)
	}

	return credentials
}

// Authorize runs the device flow end to end. onSession, when set, receives
// the user code and verification URI before polling starts.
func (p *Provider) Authorize(ctx context.Context, onSession func(*DeviceSession)) AuthorizeResult {
	flowResult := p.flow.Run(ctx, onSession)

	result := AuthorizeResult{
		Outcome: flowResult.State,
		Session: flowResult.Session,
		Err:     flowResult.Err,
	}

	if flowResult.State == StateAuthorized && flowResult.Credential != nil {
		result.Auth = StoredAuthFromCredential(flowResult.Credential)
		if p.identity != nil {
			p.identity.UpdateFromAuth(ctx, result.Auth.Access, result.Auth.AccountID)
		}
	}

	if p.sink != nil {
		p.sink.Capture(EventAuthorize, map[string]string{
			"outcome":  string(result.Outcome),
			"attempts": strconv.Itoa(flowResult.Attempts),
		})
	}

	return result
}

// Refresh renews an OAuth record with its refresh token. API key records
// are returned unchanged.
func (p *Provider) Refresh(ctx context.Context, auth *StoredAuth) (*StoredAuth, error) {
	current := auth.Credential()
	if current == nil {
		return auth, nil
	}
	if !current.HasRefreshToken() {
		if p.logger != nil {
			p.logger.Warningf("Stored credential %s has no refresh token", SanitizeTokenForLogging(current.AccessToken))
		}
		return nil, ErrNoRefreshToken
	}

	credential, err := p.flow.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	if credential.AccountID == "" {
		credential.AccountID = auth.AccountID
	}

	refreshed := StoredAuthFromCredential(credential)
	if p.identity != nil {
		p.identity.UpdateFromAuth(ctx, refreshed.Access, refreshed.AccountID)
	}
	return refreshed, nil
}

// Logout clears the session-derived identity
func (p *Provider) Logout() {
	if p.identity != nil {
		p.identity.Reset()
	}
	if p.sink != nil {
		p.sink.Capture(EventLogout, map[string]string{})
	}
}
