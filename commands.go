/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package main

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/PivotLLM/GatewayAuth/db"
	"github.com/PivotLLM/GatewayAuth/gateway"
	"github.com/PivotLLM/GatewayAuth/global"
)

// Environment variables that supply a gateway key when -api-key is not given
const (
	envGatewayToken  = "GATEWAY_TOKEN"
	envGatewayAPIKey = "GATEWAY_API_KEY"
)

// resolveAPIKey picks the key to store. The -api-key flag wins, then
// GATEWAY_TOKEN, then GATEWAY_API_KEY.
func resolveAPIKey(flagValue string, getenv func(string) string) string {
	return gateway.ResolveAPIKey(gateway.KeyOptions{
		GatewayToken: cmp.Or(flagValue, getenv(envGatewayToken)),
		APIKey:       getenv(envGatewayAPIKey),
	})
}

// app holds the gateway components used by the CLI commands
type app struct {
	provider *gateway.Provider
	store    *gateway.DatabaseAuthStore
	service  *gateway.Service
	metrics  *gateway.MetricsCollector
	logger   global.Logger
	out      io.Writer
}

func newApp(cfg *gateway.Config, database db.Database, dataDir string, logger global.Logger) (*app, error) {
	metrics := gateway.NewMetricsCollector(logger, true)
	sink := gateway.NewLoggingTelemetrySink(logger)

	profiles, err := gateway.NewProfileClient(cfg,
		gateway.WithClientLogger(logger),
		gateway.WithClientMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}

	identity := gateway.NewIdentity(
		gateway.WithDataPath(dataDir),
		gateway.WithProfileFetcher(profiles),
		gateway.WithTelemetrySink(sink),
		gateway.WithIdentityLogger(logger),
	)

	flow := gateway.NewDeviceFlow(cfg,
		gateway.WithFlowLogger(logger),
		gateway.WithMetrics(metrics),
	)

	provider := gateway.NewProvider(flow, identity,
		gateway.WithProviderLogger(logger),
		gateway.WithProviderTelemetry(sink),
	)

	store := gateway.NewDatabaseAuthStore(database, gateway.ProviderName, logger)

	notifications := gateway.NewNotificationsClient(cfg,
		gateway.WithClientLogger(logger),
		gateway.WithClientMetrics(metrics),
	)

	service := gateway.NewService(provider, store, identity,
		gateway.WithServiceNotifications(notifications),
		gateway.WithServiceMetrics(metrics),
		gateway.WithServiceDatabase(database),
		gateway.WithServiceLogger(logger),
	)

	return &app{
		provider: provider,
		store:    store,
		service:  service,
		metrics:  metrics,
		logger:   logger,
		out:      color.Output,
	}, nil
}

// login runs the device flow and stores the resulting credential
func (a *app) login(ctx context.Context) error {
	result := a.provider.Authorize(ctx, a.printDeviceCode)
	if result.Outcome != gateway.StateAuthorized {
		if result.Err == nil {
			return fmt.Errorf("login ended in state %s", result.Outcome)
		}
		return result.Err
	}

	if err := a.store.Save(ctx, result.Auth); err != nil {
		return err
	}

	_, _ = color.New(color.FgGreen).Fprintln(a.out, "Signed in to the gateway.")
	if expires := result.Auth.ExpiresAt(); expires != nil {
		_, _ = fmt.Fprintf(a.out, "Credential expires %s\n", gateway.FormatExpiryForLogging(expires))
	}
	return nil
}

func (a *app) printDeviceCode(session *gateway.DeviceSession) {
	bold := color.New(color.Bold)
	code := color.New(color.FgCyan, color.Bold)

	_, _ = bold.Fprintln(a.out, "To sign in, open the following URL in a browser:")
	uri := session.VerificationURI
	if session.VerificationURIComplete != "" {
		uri = session.VerificationURIComplete
	}
	_, _ = fmt.Fprintf(a.out, "  %s\n\n", uri)
	_, _ = bold.Fprint(a.out, "and enter the code: ")
	_, _ = code.Fprintln(a.out, session.UserCode)
	_, _ = fmt.Fprintf(a.out, "\nWaiting for approval (code expires in %s)...\n", session.ExpiresIn)
}

// refresh renews the stored OAuth credential
func (a *app) refresh(ctx context.Context) error {
	auth, err := a.store.Get(ctx)
	if err != nil {
		return err
	}
	if auth == nil {
		return fmt.Errorf("no stored gateway credential, run -login first")
	}
	if auth.Type != gateway.AuthKindOAuth {
		_, _ = fmt.Fprintln(a.out, "The stored credential is an API key and does not need refreshing.")
		return nil
	}

	refreshed, err := a.provider.Refresh(ctx, auth)
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, refreshed); err != nil {
		return err
	}

	_, _ = color.New(color.FgGreen).Fprintf(a.out, "Credential refreshed, expires %s\n",
		gateway.FormatExpiryForLogging(refreshed.ExpiresAt()))
	return nil
}

// storeAPIKey saves a gateway API key as the credential
func (a *app) storeAPIKey(ctx context.Context, key string) error {
	if !gateway.IsValid(key) {
		return gateway.NewConfigurationError("apiKey", "the API key is too short", nil)
	}

	if err := a.store.Save(ctx, &gateway.StoredAuth{Type: gateway.AuthKindAPI, Key: key}); err != nil {
		return err
	}
	a.provider.Load(ctx, a.store.Get)

	_, _ = color.New(color.FgGreen).Fprintf(a.out, "API key %s stored.\n", gateway.SanitizeTokenForLogging(key))
	return nil
}

// logout removes the stored credential and clears the identity
func (a *app) logout(ctx context.Context) error {
	if err := a.store.Delete(ctx); err != nil {
		return err
	}
	a.provider.Logout()

	_, _ = fmt.Fprintln(a.out, "Signed out of the gateway.")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	report := a.service.WhoAmI(ctx)
	if !report.Authenticated {
		_, _ = color.New(color.FgYellow).Fprintln(a.out, "Not signed in.")
	}
	return a.printJSON(report)
}

func (a *app) showNotifications(ctx context.Context, all bool) error {
	report := a.service.Notifications(ctx, all)

	if len(report.Notifications) == 0 {
		_, _ = fmt.Fprintln(a.out, "No notifications.")
		return nil
	}

	title := color.New(color.Bold)
	link := color.New(color.FgCyan)
	for _, n := range report.Notifications {
		_, _ = title.Fprintln(a.out, n.Title)
		_, _ = fmt.Fprintf(a.out, "  %s\n", n.Message)
		if n.Action != nil {
			_, _ = link.Fprintf(a.out, "  %s: %s\n", n.Action.ActionText, n.Action.ActionURL)
		}
	}
	return nil
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

// userMessage returns the message shown to the user for err
func userMessage(err error) string {
	if authErr, ok := gateway.AsAuthorizationError(err); ok {
		return authErr.GetUserFriendlyMessage()
	}
	if cfgErr, ok := gateway.AsConfigurationError(err); ok {
		return cfgErr.GetUserFriendlyMessage()
	}
	return fmt.Sprintf("Error: %v", err)
}
