/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProfiles returns a fixed advisory and records the tokens it was asked about
type stubProfiles struct {
	mu     sync.Mutex
	result Advisory[Profile]
	tokens []string
}

func (s *stubProfiles) FetchProfile(_ context.Context, token string) Advisory[Profile] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = append(s.tokens, token)
	return s.result
}

func (s *stubProfiles) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// recordingSink captures identify and capture calls
type recordingSink struct {
	mu         sync.Mutex
	identified []string
	properties []map[string]string
	events     []string
}

func (s *recordingSink) Identify(distinctID string, properties map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identified = append(s.identified, distinctID)
	s.properties = append(s.properties, properties)
}

func (s *recordingSink) Capture(event string, _ map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func noEnv(string) (string, bool) { return "", false }

func TestIdentityUnknownWithoutAnyID(t *testing.T) {
	id := NewIdentity(WithEnvLookup(noEnv))

	assert.Equal(t, UnknownDistinctID, id.DistinctID())
	assert.Empty(t, id.MachineID())
}

func TestIdentityNoDataPathWritesNothing(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	id := NewIdentity(WithEnvLookup(noEnv))
	assert.Empty(t, id.MachineID())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no file may be written without a data path")
}

func TestIdentityMachineIDPersisted(t *testing.T) {
	dataPath := filepath.Join(t.TempDir(), "state")

	first := NewIdentity(WithDataPath(dataPath), WithEnvLookup(noEnv), WithIdentityLogger(newTestLogger()))
	machineID := first.MachineID()
	require.NotEmpty(t, machineID)
	_, err := uuid.Parse(machineID)
	assert.NoError(t, err)
	assert.Equal(t, machineID, first.MachineID(), "cached value is returned")

	data, err := os.ReadFile(filepath.Join(dataPath, MachineIDFile))
	require.NoError(t, err)
	assert.Equal(t, machineID, string(data))

	info, err := os.Stat(filepath.Join(dataPath, MachineIDFile))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second := NewIdentity(WithDataPath(dataPath), WithEnvLookup(noEnv))
	assert.Equal(t, machineID, second.MachineID(), "a new process reads the persisted id")
	assert.Equal(t, machineID, second.DistinctID())
}

func TestIdentityMachineIDReadsExistingFile(t *testing.T) {
	dataPath := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataPath, MachineIDFile), []byte("  existing-id\n"), 0o600))

	id := NewIdentity(WithDataPath(dataPath), WithEnvLookup(noEnv))
	assert.Equal(t, "existing-id", id.MachineID())
}

func TestIdentityEnvironmentOverride(t *testing.T) {
	dataPath := t.TempDir()
	env := func(key string) (string, bool) {
		if key == MachineIDEnvVar {
			return "ci-runner-7", true
		}
		return "", false
	}

	id := NewIdentity(WithDataPath(dataPath), WithEnvLookup(env))
	assert.Equal(t, "ci-runner-7", id.MachineID())

	_, err := os.Stat(filepath.Join(dataPath, MachineIDFile))
	assert.True(t, errors.Is(err, os.ErrNotExist), "the override is not persisted")
}

func TestIdentityUpdateFromAuth(t *testing.T) {
	profiles := &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})}
	sink := &recordingSink{}
	id := NewIdentity(WithEnvLookup(noEnv), WithProfileFetcher(profiles), WithTelemetrySink(sink))

	id.UpdateFromAuth(context.Background(), "https://eu.example.com:access", "org-1")

	assert.Equal(t, "a@b.com", id.UserID())
	assert.Equal(t, "org-1", id.OrganizationID())
	assert.Equal(t, "a@b.com", id.DistinctID())
	assert.Equal(t, []string{"https://eu.example.com:access"}, profiles.calls())

	require.Len(t, sink.identified, 1)
	assert.Equal(t, "a@b.com", sink.identified[0])
	assert.Equal(t, "org-1", sink.properties[0]["organizationId"])
}

func TestIdentityUpdateFromAuthProfileFailure(t *testing.T) {
	profiles := &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})}
	id := NewIdentity(WithEnvLookup(noEnv), WithProfileFetcher(profiles))

	id.UpdateFromAuth(context.Background(), "token-1", "")
	require.Equal(t, "a@b.com", id.UserID())

	profiles.result = Suppressed[Profile](errors.New("HTTP 500"))
	id.UpdateFromAuth(context.Background(), "token-2", "org-2")

	assert.Empty(t, id.UserID(), "a failed lookup clears the user")
	assert.Equal(t, "org-2", id.OrganizationID())
	assert.Equal(t, UnknownDistinctID, id.DistinctID())
}

func TestIdentityUpdateFromAuthWithoutToken(t *testing.T) {
	profiles := &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})}
	sink := &recordingSink{}
	id := NewIdentity(WithEnvLookup(noEnv), WithProfileFetcher(profiles), WithTelemetrySink(sink))

	id.UpdateFromAuth(context.Background(), "token", "org-1")
	id.UpdateFromAuth(context.Background(), "", "")

	assert.Empty(t, id.UserID())
	assert.Empty(t, id.OrganizationID())
	assert.Len(t, profiles.calls(), 1, "no lookup without a token")
	assert.Len(t, sink.identified, 1)
}

func TestIdentityResetKeepsMachineID(t *testing.T) {
	profiles := &stubProfiles{result: Fetched(Profile{Email: "a@b.com"})}
	id := NewIdentity(WithDataPath(t.TempDir()), WithEnvLookup(noEnv), WithProfileFetcher(profiles))

	machineID := id.MachineID()
	id.UpdateFromAuth(context.Background(), "token", "org-1")
	require.Equal(t, "a@b.com", id.DistinctID())

	id.Reset()

	assert.Empty(t, id.UserID())
	assert.Empty(t, id.OrganizationID())
	assert.Equal(t, machineID, id.MachineID())
	assert.Equal(t, machineID, id.DistinctID())

	snapshot := id.Snapshot()
	assert.Equal(t, machineID, snapshot.DistinctID)
	assert.Equal(t, machineID, snapshot.MachineID)
	assert.Empty(t, snapshot.UserID)
}

func TestIdentitySetDataPath(t *testing.T) {
	id := NewIdentity(WithEnvLookup(noEnv))
	require.Empty(t, id.MachineID())

	dataPath := t.TempDir()
	id.SetDataPath(dataPath)
	assert.Equal(t, dataPath, id.DataPath())
	assert.NotEmpty(t, id.MachineID())
	assert.Equal(t, dataPath, id.Snapshot().DataPath)
}
