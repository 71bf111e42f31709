/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/PivotLLM/GatewayAuth/global"
)

const (
	// MachineIDEnvVar overrides the persisted machine identifier
	MachineIDEnvVar = "GATEWAY_MACHINE_ID"

	// MachineIDFile is the name of the machine identifier file under the data path
	MachineIDFile = "telemetry-id"

	// UnknownDistinctID is reported when neither a user nor a machine id is known
	UnknownDistinctID = "unknown"
)

// Identity tracks who is using this installation: a persisted machine id
// plus the user and organization derived from the current credential.
// User and organization are not persisted.
type Identity struct {
	mu             sync.Mutex
	dataPath       string
	machineID      string
	userID         string
	organizationID string
	profiles       ProfileFetcher
	sink           TelemetrySink
	logger         global.Logger
	lookupEnv      func(string) (string, bool)
}

// IdentityOption configures an Identity
type IdentityOption func(*Identity)

// WithDataPath sets the directory holding the machine id file
func WithDataPath(path string) IdentityOption {
	return func(id *Identity) {
		id.dataPath = path
	}
}

// WithProfileFetcher sets how user profiles are looked up
func WithProfileFetcher(fetcher ProfileFetcher) IdentityOption {
	return func(id *Identity) {
		id.profiles = fetcher
	}
}

// WithTelemetrySink sets the sink notified on identity changes
func WithTelemetrySink(sink TelemetrySink) IdentityOption {
	return func(id *Identity) {
		id.sink = sink
	}
}

// WithIdentityLogger sets the logger
func WithIdentityLogger(logger global.Logger) IdentityOption {
	return func(id *Identity) {
		id.logger = logger
	}
}

// WithEnvLookup replaces os.LookupEnv
func WithEnvLookup(lookup func(string) (string, bool)) IdentityOption {
	return func(id *Identity) {
		id.lookupEnv = lookup
	}
}

// NewIdentity creates an identity resolver
func NewIdentity(opts ...IdentityOption) *Identity {
	id := &Identity{
		lookupEnv: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// SetDataPath changes where the machine id is persisted. An id already
// resolved from another location is kept.
func (id *Identity) SetDataPath(path string) {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.dataPath = path
}

// DataPath returns the configured data path
func (id *Identity) DataPath() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.dataPath
}

// MachineID returns the machine identifier, resolving it on first use. It
// returns "" and writes nothing when no data path is configured and no
// override is set.
func (id *Identity) MachineID() string {
	id.mu.Lock()
	defer id.mu.Unlock()

	if id.machineID != "" {
		return id.machineID
	}

	if value, ok := id.lookupEnv(MachineIDEnvVar); ok && strings.TrimSpace(value) != "" {
		id.machineID = strings.TrimSpace(value)
		return id.machineID
	}

	if id.dataPath == "" {
		return ""
	}

	idFile := filepath.Join(id.dataPath, MachineIDFile)
	data, err := os.ReadFile(idFile)
	switch {
	case err == nil:
		if existing := strings.TrimSpace(string(data)); existing != "" {
			id.machineID = existing
			return id.machineID
		}
	case !errors.Is(err, fs.ErrNotExist):
		if id.logger != nil {
			id.logger.Warningf("Failed to read machine id from %s: %v", idFile, err)
		}
	}

	newID := uuid.NewString()
	if err := os.MkdirAll(id.dataPath, 0o700); err != nil {
		if id.logger != nil {
			id.logger.Warningf("Failed to create data path %s: %v", id.dataPath, err)
		}
	} else if err := os.WriteFile(idFile, []byte(newID), 0o600); err != nil {
		if id.logger != nil {
			id.logger.Warningf("Failed to persist machine id to %s: %v", idFile, err)
		}
	} else if id.logger != nil {
		id.logger.Infof("Created machine id at %s", idFile)
	}

	id.machineID = newID
	return id.machineID
}

// UserID returns the email of the authenticated user, or ""
func (id *Identity) UserID() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.userID
}

// OrganizationID returns the organization override, or ""
func (id *Identity) OrganizationID() string {
	id.mu.Lock()
	defer id.mu.Unlock()
	return id.organizationID
}

// DistinctID returns the id used to attribute telemetry: the user id, else
// the machine id, else "unknown". It is never empty.
func (id *Identity) DistinctID() string {
	if userID := id.UserID(); userID != "" {
		return userID
	}
	if machineID := id.MachineID(); machineID != "" {
		return machineID
	}
	return UnknownDistinctID
}

// UpdateFromAuth recomputes the user and organization from the current
// credential. Profile failures are swallowed. Concurrent calls are not
// coalesced; the last one to finish wins.
func (id *Identity) UpdateFromAuth(ctx context.Context, token, accountID string) {
	id.mu.Lock()
	id.organizationID = accountID
	if token == "" {
		id.userID = ""
		id.mu.Unlock()
		return
	}
	profiles := id.profiles
	id.mu.Unlock()

	userID := ""
	if profiles != nil {
		result := profiles.FetchProfile(ctx, token)
		if result.OK() {
			userID = result.Value.Email
		} else if id.logger != nil && result.Err != nil {
			id.logger.Debugf("Profile lookup failed, user id cleared: %v", result.Err)
		}
	}

	id.mu.Lock()
	id.userID = userID
	id.mu.Unlock()

	if id.logger != nil {
		id.logger.Debugf("Identity updated: user %s, organization %q",
			SanitizeEmailForLogging(userID), accountID)
	}

	id.identify()
}

// Reset clears the session-derived user and organization. The machine id
// identifies the device and is kept.
func (id *Identity) Reset() {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.userID = ""
	id.organizationID = ""
}

// IdentitySnapshot is a point-in-time view of an Identity
type IdentitySnapshot struct {
	DistinctID     string `json:"distinct_id"`
	MachineID      string `json:"machine_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	DataPath       string `json:"data_path,omitempty"`
}

// Snapshot returns the current identity values
func (id *Identity) Snapshot() IdentitySnapshot {
	return IdentitySnapshot{
		DistinctID:     id.DistinctID(),
		MachineID:      id.MachineID(),
		UserID:         id.UserID(),
		OrganizationID: id.OrganizationID(),
		DataPath:       id.DataPath(),
	}
}

func (id *Identity) identify() {
	if id.sink == nil {
		return
	}

	properties := map[string]string{}
	if machineID := id.MachineID(); machineID != "" {
		properties["machineId"] = machineID
	}
	if orgID := id.OrganizationID(); orgID != "" {
		properties["organizationId"] = orgID
	}
	id.sink.Identify(id.DistinctID(), properties)
}
