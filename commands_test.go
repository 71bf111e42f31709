/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenebris-tech/mlogger"
	"github.com/tenebris-tech/mlogger/testlogger"

	"github.com/PivotLLM/GatewayAuth/db"
	"github.com/PivotLLM/GatewayAuth/gateway"
	"github.com/PivotLLM/GatewayAuth/global"
)

const testAccessToken = "access-token-0123456789"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(gateway.DefaultDeviceCodePath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"device_code":      "dev-1",
			"user_code":        "WXYZ-1234",
			"verification_uri": "https://gateway.example.com/device",
			"interval":         1,
			"expires_in":       60,
		})
	})
	mux.HandleFunc(gateway.DefaultTokenPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  testAccessToken,
			"token_type":    "Bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"account_id":    "org-1",
		})
	})
	mux.HandleFunc(gateway.DefaultProfilePath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"email": "dev@example.com"})
	})
	mux.HandleFunc(gateway.DefaultNotificationsPath, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"notifications": []map[string]any{
				{"id": "n1", "title": "Maintenance", "message": "Tonight at 22:00", "showIn": []string{"cli"}},
			},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	t.Setenv(gateway.MachineIDEnvVar, "machine-test")

	logger := testlogger.New(t)

	dataDir := t.TempDir()
	database, err := db.New(db.WithLogger(logger), db.WithDataDir(dataDir))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	cfg := gateway.DefaultConfig(newGatewayServer(t).URL)
	cli, err := newApp(cfg, database, dataDir, logger)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cli.out = out
	return cli, out
}

func TestLoginStoresCredential(t *testing.T) {
	cli, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, cli.login(ctx))
	assert.Contains(t, out.String(), "WXYZ-1234")
	assert.Contains(t, out.String(), "Signed in")

	auth, err := cli.store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, gateway.AuthKindOAuth, auth.Type)
	assert.Equal(t, testAccessToken, auth.Access)
	assert.Equal(t, "org-1", auth.AccountID)

	report := cli.service.WhoAmI(ctx)
	assert.True(t, report.Authenticated)
	assert.Equal(t, "dev@example.com", report.Identity.UserID)
	assert.Equal(t, "machine-test", report.Identity.MachineID)
	assert.NotEmpty(t, report.Identity.DataPath)
}

func TestRefreshAndLogout(t *testing.T) {
	cli, out := newTestApp(t)
	ctx := context.Background()

	assert.Error(t, cli.refresh(ctx))

	require.NoError(t, cli.login(ctx))
	require.NoError(t, cli.refresh(ctx))
	assert.Contains(t, out.String(), "Credential refreshed")

	require.NoError(t, cli.logout(ctx))
	auth, err := cli.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.False(t, cli.service.WhoAmI(ctx).Authenticated)
}

func TestStoreAPIKey(t *testing.T) {
	cli, out := newTestApp(t)
	ctx := context.Background()

	err := cli.storeAPIKey(ctx, "short")
	_, ok := gateway.AsConfigurationError(err)
	assert.True(t, ok)

	require.NoError(t, cli.storeAPIKey(ctx, "api-key-0123456789"))
	assert.NotContains(t, out.String(), "api-key-0123456789")

	// API keys are not refreshed
	require.NoError(t, cli.refresh(ctx))
	assert.Contains(t, out.String(), "does not need refreshing")

	out.Reset()
	require.NoError(t, cli.whoami(ctx))
	var report gateway.WhoAmIReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, gateway.AuthKindAPI, report.Type)
}

func TestShowNotifications(t *testing.T) {
	cli, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, cli.showNotifications(ctx, false))
	assert.Contains(t, out.String(), "No notifications")

	require.NoError(t, cli.storeAPIKey(ctx, "api-key-0123456789"))
	out.Reset()
	require.NoError(t, cli.showNotifications(ctx, false))
	assert.Contains(t, out.String(), "Maintenance")
	assert.Contains(t, out.String(), "Tonight at 22:00")
}

func TestUserMessage(t *testing.T) {
	denied := gateway.NewAuthorizationError(gateway.StateDenied, "access denied", nil)
	assert.Contains(t, userMessage(denied), "denied")
	assert.Equal(t, "Error: boom", userMessage(errors.New("boom")))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a.json", "b.json"}, splitList(" a.json, ,b.json "))
	assert.Nil(t, splitList(""))
}

func TestResolveAPIKey(t *testing.T) {
	env := map[string]string{}
	getenv := func(key string) string { return env[key] }

	assert.Empty(t, resolveAPIKey("", getenv))

	env[envGatewayAPIKey] = "api-key-0123456789"
	assert.Equal(t, "api-key-0123456789", resolveAPIKey("", getenv))

	env[envGatewayToken] = "gateway-token-0123456789"
	assert.Equal(t, "gateway-token-0123456789", resolveAPIKey("", getenv))

	assert.Equal(t, "flag-key-0123456789", resolveAPIKey("flag-key-0123456789", getenv))
}

func TestStoreAPIKeyFromEnvironment(t *testing.T) {
	cli, _ := newTestApp(t)
	ctx := context.Background()
	t.Setenv(envGatewayToken, "")
	t.Setenv(envGatewayAPIKey, "env-key-0123456789")

	require.NoError(t, cli.storeAPIKey(ctx, resolveAPIKey("", os.Getenv)))

	auth, err := cli.store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.Equal(t, gateway.AuthKindAPI, auth.Type)
	assert.Equal(t, "env-key-0123456789", auth.Key)
}

func TestFileLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "gatewayauth.log")

	var logger global.Logger
	logger, err := mlogger.New(
		mlogger.WithPrefix(AppName),
		mlogger.WithLogFile(logFile),
		mlogger.WithLogStdout(false),
	)
	require.NoError(t, err)

	logger.Infof("Credential store opened at %s", "test")
	logger.Debug("hidden without debug")
	logger.Close()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Credential store opened at test")
	assert.Contains(t, string(data), AppName)
	assert.NotContains(t, string(data), "hidden without debug")
}
