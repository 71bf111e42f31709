/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package gateway

import (
	"context"
	"fmt"

	"github.com/PivotLLM/GatewayAuth/db"
	"github.com/PivotLLM/GatewayAuth/global"
)

// DatabaseAuthStore persists the gateway credential record in the local
// database under a single provider key
type DatabaseAuthStore struct {
	database db.Database
	provider string
	logger   global.Logger
}

// NewDatabaseAuthStore creates a store for provider. An empty provider uses ProviderName.
func NewDatabaseAuthStore(database db.Database, provider string, logger global.Logger) *DatabaseAuthStore {
	if provider == "" {
		provider = ProviderName
	}
	return &DatabaseAuthStore{
		database: database,
		provider: provider,
		logger:   logger,
	}
}

// Get returns the stored record, or nil when none exists. It satisfies StoredAuthLoader.
func (s *DatabaseAuthStore) Get(_ context.Context) (*StoredAuth, error) {
	record, err := s.database.GetAuth(s.provider)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s credentials: %w", s.provider, err)
	}

	return &StoredAuth{
		Type:      AuthKind(record.Type),
		Key:       record.Key,
		Access:    record.Access,
		Refresh:   record.Refresh,
		Expires:   record.Expires,
		AccountID: record.AccountID,
	}, nil
}

// Save replaces the stored record with auth
func (s *DatabaseAuthStore) Save(_ context.Context, auth *StoredAuth) error {
	if auth == nil {
		return fmt.Errorf("cannot store an empty %s credential", s.provider)
	}

	record := &db.AuthRecord{
		Type:      string(auth.Type),
		Key:       auth.Key,
		Access:    auth.Access,
		Refresh:   auth.Refresh,
		Expires:   auth.Expires,
		AccountID: auth.AccountID,
	}
	if err := s.database.StoreAuth(s.provider, record); err != nil {
		return fmt.Errorf("failed to store %s credentials: %w", s.provider, err)
	}

	if s.logger != nil {
		s.logger.Debugf("Saved %s credential %s", auth.Type, SanitizeTokenForLogging(auth.Token()))
	}
	return nil
}

// Delete removes the stored record. Deleting a missing record is not an error.
func (s *DatabaseAuthStore) Delete(_ context.Context) error {
	if err := s.database.DeleteAuth(s.provider); err != nil && !db.IsNotFound(err) {
		return fmt.Errorf("failed to delete %s credentials: %w", s.provider, err)
	}
	return nil
}

// History returns up to limit recent changes to the stored record, newest first
func (s *DatabaseAuthStore) History(limit int) ([]db.AuthEvent, error) {
	return s.database.ListAuthHistory(s.provider, limit)
}
