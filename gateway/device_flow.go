/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/PivotLLM/GatewayAuth/global"
)

// FlowState is a state of the device authorization flow
type FlowState string

const (
	StateIdle       FlowState = "idle"
	StateRequested  FlowState = "requested"
	StatePolling    FlowState = "polling"
	StateAuthorized FlowState = "authorized"
	StateDenied     FlowState = "denied"
	StateExpired    FlowState = "expired"
	StateCancelled  FlowState = "cancelled"
	StateFailed     FlowState = "failed"
)

// IsTerminal reports whether no further transition can happen from s
func (s FlowState) IsTerminal() bool {
	switch s {
	case StateAuthorized, StateDenied, StateExpired, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// RFC 8628 token endpoint error codes
const (
	errorAuthorizationPending = "authorization_pending"
	errorSlowDown             = "slow_down"
	errorAccessDenied         = "access_denied"
	errorExpiredToken         = "expired_token"

	deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"
)

// DeviceSession is one device authorization attempt as issued by the gateway
type DeviceSession struct {
	DeviceCode              string        `json:"-"`
	UserCode                string        `json:"user_code"`
	VerificationURI         string        `json:"verification_uri"`
	VerificationURIComplete string        `json:"verification_uri_complete,omitempty"`
	Interval                time.Duration `json:"interval"`
	ExpiresIn               time.Duration `json:"expires_in"`
	StartTime               time.Time     `json:"start_time"`
}

// MaxAttempts is the polling budget that keeps the flow within the device
// code's own lifetime. It is never less than one.
func (s *DeviceSession) MaxAttempts() int {
	if s.Interval <= 0 {
		return 1
	}
	attempts := int(s.ExpiresIn / s.Interval)
	if attempts < 1 {
		return 1
	}
	return attempts
}

// ExpiresAt returns the wall-clock expiry of the device code
func (s *DeviceSession) ExpiresAt() time.Time {
	return s.StartTime.Add(s.ExpiresIn)
}

// FlowResult is the terminal outcome of a device authorization
type FlowResult struct {
	State      FlowState      `json:"state"`
	Credential *Credential    `json:"-"`
	Session    *DeviceSession `json:"session,omitempty"`
	Attempts   int            `json:"attempts"`
	Err        error          `json:"-"`
}

// tokenPayload covers both the success and the error shape of a token
// endpoint response
type tokenPayload struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
	AccountID        string `json:"account_id,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// DeviceFlow runs RFC 8628 device authorizations against the gateway.
// A DeviceFlow holds no per-authorization state and may run concurrently.
type DeviceFlow struct {
	config     *Config
	httpClient *http.Client
	logger     global.Logger
	sleep      Sleeper
	metrics    *MetricsCollector
}

// FlowOption configures a DeviceFlow
type FlowOption func(*DeviceFlow)

// WithHTTPClient sets the HTTP client used for gateway calls
func WithHTTPClient(client *http.Client) FlowOption {
	return func(f *DeviceFlow) {
		f.httpClient = client
	}
}

// WithFlowLogger sets the logger
func WithFlowLogger(logger global.Logger) FlowOption {
	return func(f *DeviceFlow) {
		f.logger = logger
	}
}

// WithSleeper replaces the wait between poll attempts
func WithSleeper(sleep Sleeper) FlowOption {
	return func(f *DeviceFlow) {
		f.sleep = sleep
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(metrics *MetricsCollector) FlowOption {
	return func(f *DeviceFlow) {
		f.metrics = metrics
	}
}

// NewDeviceFlow creates a device flow for the gateway described by config
func NewDeviceFlow(config *Config, opts ...FlowOption) *DeviceFlow {
	f := &DeviceFlow{
		config: config,
		sleep:  SleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: config.HTTPTimeout}
	}
	return f
}

func (f *DeviceFlow) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID: f.config.ClientID,
		Scopes:   f.config.Scopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: f.config.DeviceCodeURL(),
			TokenURL:      f.config.TokenURL(),
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}
}

// Start requests a device code from the gateway
func (f *DeviceFlow) Start(ctx context.Context) (*DeviceSession, error) {
	if f.logger != nil {
		f.logger.Debugf("Requesting device code from: %s", f.config.DeviceCodeURL())
	}

	startTime := time.Now()
	resp, err := f.oauthConfig().DeviceAuth(context.WithValue(ctx, oauth2.HTTPClient, f.httpClient))
	latency := time.Since(startTime)
	if err != nil {
		err = f.wrapDeviceAuthError(err)
		category := ErrorCategoryNetwork
		if apiErr, ok := AsAPIError(err); ok {
			category = apiErr.Category
		}
		f.metrics.RecordRequest(RequestMetrics{
			Endpoint:      "device_code",
			Latency:       latency,
			ErrorCategory: category,
			Timestamp:     startTime,
		})
		if f.logger != nil {
			f.logger.Errorf("Device code request failed: %v", err)
		}
		return nil, NewAuthorizationError(StateFailed, "device code request failed", err)
	}
	f.metrics.RecordRequest(RequestMetrics{
		Endpoint:   "device_code",
		StatusCode: http.StatusOK,
		Latency:    latency,
		Success:    true,
		Timestamp:  startTime,
	})

	if resp.DeviceCode == "" || resp.UserCode == "" {
		return nil, NewAuthorizationError(StateFailed, "device code response is missing device_code or user_code", nil)
	}

	session := &DeviceSession{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		Interval:                time.Duration(resp.Interval) * time.Second,
		StartTime:               startTime,
	}
	if session.Interval <= 0 {
		session.Interval = f.config.DefaultPollInterval
	}
	if resp.Expiry.IsZero() {
		session.ExpiresIn = f.config.DefaultExpiresIn
	} else {
		session.ExpiresIn = resp.Expiry.Sub(startTime).Round(time.Second)
	}

	if f.logger != nil {
		f.logger.Infof("Device code received. User code: %s, interval %v, expires in %v (%d attempts)",
			session.UserCode, session.Interval, session.ExpiresIn, session.MaxAttempts())
	}

	return session, nil
}

// wrapDeviceAuthError converts an oauth2 error into the package taxonomy
func (f *DeviceFlow) wrapDeviceAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		code := retrieveErr.ErrorCode
		description := retrieveErr.ErrorDescription
		if code == "" {
			var payload tokenPayload
			if json.Unmarshal(retrieveErr.Body, &payload) == nil {
				code = payload.Error
				description = payload.ErrorDescription
			}
		}
		return NewAPIError(f.config.DeviceCodeURL(), retrieveErr.Response.StatusCode, code, description)
	}
	return NewNetworkError(f.config.DeviceCodeURL(), http.MethodPost, "device code request failed", err, isTimeout(err))
}

// Await polls the token endpoint until the session reaches a terminal state
func (f *DeviceFlow) Await(ctx context.Context, session *DeviceSession) *FlowResult {
	result := &FlowResult{Session: session}

	if f.logger != nil {
		f.logger.Debugf("Polling %s every %v for up to %d attempts",
			f.config.TokenURL(), session.Interval, session.MaxAttempts())
	}

	credential, err := Poll(ctx, PollOptions[Credential]{
		Interval:    session.Interval,
		MaxAttempts: session.MaxAttempts(),
		Sleep:       f.sleep,
		Logger:      f.logger,
		Name:        "device token poll",
		OnAttempt: func(attempt int) {
			result.Attempts = attempt
			f.metrics.RecordPollAttempt()
		},
		PollFn: func(ctx context.Context) PollResult[Credential] {
			return f.exchangeDeviceCode(ctx, session)
		},
	})

	switch {
	case err == nil:
		result.State = StateAuthorized
		result.Credential = &credential
	case errors.Is(err, ErrPollCancelled):
		result.State = StateCancelled
		result.Err = NewAuthorizationError(StateCancelled, "authorization cancelled", err)
	case errors.Is(err, ErrPollTimeout):
		result.State = StateExpired
		result.Err = NewAuthorizationError(StateExpired, "polling budget exhausted before authorization", err)
	default:
		result.State = StateFailed
		if authErr, ok := AsAuthorizationError(err); ok {
			result.State = authErr.State
		}
		result.Err = err
	}

	f.metrics.RecordFlowOutcome(result.State, time.Since(session.StartTime))
	if f.logger != nil {
		if result.State == StateAuthorized {
			f.logger.Infof("Device authorization completed after %d attempts", result.Attempts)
		} else {
			f.logger.Warningf("Device authorization ended in state %s after %d attempts: %v",
				result.State, result.Attempts, result.Err)
		}
	}

	return result
}

// Run performs a full device authorization. onSession, when set, receives the
// session before polling begins so the caller can show the user code.
func (f *DeviceFlow) Run(ctx context.Context, onSession func(*DeviceSession)) *FlowResult {
	if err := ctx.Err(); err != nil {
		return &FlowResult{
			State: StateCancelled,
			Err:   NewAuthorizationError(StateCancelled, "authorization cancelled", err),
		}
	}

	session, err := f.Start(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return &FlowResult{
				State: StateCancelled,
				Err:   NewAuthorizationError(StateCancelled, "authorization cancelled", ctx.Err()),
			}
		}
		f.metrics.RecordFlowOutcome(StateFailed, 0)
		return &FlowResult{State: StateFailed, Err: err}
	}

	if onSession != nil {
		onSession(session)
	}

	return f.Await(ctx, session)
}

// exchangeDeviceCode performs one token endpoint request and classifies it
func (f *DeviceFlow) exchangeDeviceCode(ctx context.Context, session *DeviceSession) PollResult[Credential] {
	tokenURL := f.config.TokenURL()

	form := url.Values{}
	form.Set("client_id", f.config.ClientID)
	form.Set("device_code", session.DeviceCode)
	form.Set("grant_type", deviceCodeGrantType)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Fail[Credential](NewAuthorizationError(StateFailed, "failed to create token request", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	status, body, err := doRequest(f.httpClient, req, "token", f.metrics)
	if err != nil {
		if f.logger != nil {
			f.logger.Warningf("Token poll failed, will retry: %v", err)
		}
		return Continue[Credential]()
	}

	var payload tokenPayload
	parseErr := json.Unmarshal(body, &payload)

	switch payload.Error {
	case errorAuthorizationPending:
		return Continue[Credential]()
	case errorSlowDown:
		if f.logger != nil {
			f.logger.Debug("Gateway asked to slow down, keeping the advertised interval")
		}
		return Continue[Credential]()
	case errorAccessDenied:
		return Fail[Credential](NewAuthorizationError(StateDenied, "the user denied the authorization request", nil))
	case errorExpiredToken:
		return Fail[Credential](NewAuthorizationError(StateExpired, "the device code expired", nil))
	}

	if status >= 200 && status < 300 && payload.Error == "" {
		if parseErr != nil || payload.AccessToken == "" {
			return Fail[Credential](NewAuthorizationError(StateFailed, "token response did not contain an access token", parseErr))
		}
		return Done(credentialFromPayload(payload))
	}

	apiErr := NewAPIError(tokenURL, status, payload.Error, payload.ErrorDescription)
	if apiErr.IsTransient() {
		if f.logger != nil {
			f.logger.Warningf("Token endpoint returned HTTP %d, will retry", status)
		}
		return Continue[Credential]()
	}

	if f.logger != nil {
		f.logger.Errorf("Token exchange failed with status %d: %s", status, payload.Error)
	}
	return Fail[Credential](NewAuthorizationError(StateFailed,
		fmt.Sprintf("token exchange failed with status %d", status), apiErr))
}

// Refresh exchanges a refresh token for a new credential
func (f *DeviceFlow) Refresh(ctx context.Context, refreshToken string) (*Credential, error) {
	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	if f.logger != nil {
		f.logger.Debugf("Refreshing gateway credential %s", SanitizeTokenForLogging(refreshToken))
	}

	start := time.Now()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, f.httpClient)
	token, err := f.oauthConfig().TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		rm := RequestMetrics{Endpoint: "token_refresh", Latency: time.Since(start), Timestamp: start}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			rm.StatusCode = retrieveErr.Response.StatusCode
			rm.ErrorCategory = categorizeHTTPError(rm.StatusCode)
			err = NewAPIError(f.config.TokenURL(), rm.StatusCode, retrieveErr.ErrorCode, retrieveErr.ErrorDescription)
		} else {
			rm.ErrorCategory = ErrorCategoryNetwork
		}
		f.metrics.RecordRequest(rm)
		if f.logger != nil {
			f.logger.Errorf("Token refresh failed: %v", err)
		}
		return nil, NewAuthorizationError(StateFailed, "token refresh failed", err)
	}
	f.metrics.RecordRequest(RequestMetrics{
		Endpoint:   "token_refresh",
		StatusCode: http.StatusOK,
		Latency:    time.Since(start),
		Success:    true,
		Timestamp:  start,
	})

	credential := &Credential{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
	}
	if credential.RefreshToken == "" {
		credential.RefreshToken = refreshToken
	}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry
		credential.ExpiresAt = &expiresAt
	}
	if accountID, ok := token.Extra("account_id").(string); ok {
		credential.AccountID = accountID
	}
	if scope, ok := token.Extra("scope").(string); ok {
		credential.Scope = splitScopes(scope)
	}

	if f.logger != nil {
		f.logger.Infof("Refreshed gateway credential, %s", FormatExpiryForLogging(credential.ExpiresAt))
	}

	return credential, nil
}

func credentialFromPayload(payload tokenPayload) Credential {
	credential := Credential{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		RefreshToken: payload.RefreshToken,
		AccountID:    payload.AccountID,
		Scope:        splitScopes(payload.Scope),
	}
	if payload.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
		credential.ExpiresAt = &expiresAt
	}
	return credential
}

// splitScopes splits a space-separated scope string into a slice
func splitScopes(scope string) []string {
	if scope == "" {
		return nil
	}
	return strings.Fields(scope)
}
