/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package db

import (
	"time"
)

// AuthRecord is the persisted credential for one provider
type AuthRecord struct {
	Type      string    `json:"type"`                 // "api" or "oauth"
	Key       string    `json:"key,omitempty"`        // API key records
	Access    string    `json:"access,omitempty"`     // OAuth access token
	Refresh   string    `json:"refresh,omitempty"`    // OAuth refresh token
	Expires   int64     `json:"expires,omitempty"`    // Access token expiry, unix milliseconds
	AccountID string    `json:"account_id,omitempty"` // Organization the credential is bound to
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired checks if the OAuth access token is expired
func (r *AuthRecord) IsExpired() bool {
	return r.IsExpiredWithBuffer(0)
}

// IsExpiredWithBuffer checks if the access token expires within buffer
func (r *AuthRecord) IsExpiredWithBuffer(buffer time.Duration) bool {
	if r.Expires <= 0 {
		return false
	}
	return time.Now().Add(buffer).After(time.UnixMilli(r.Expires))
}

// HasRefreshToken checks if the record has a refresh token
func (r *AuthRecord) HasRefreshToken() bool {
	return r.Refresh != ""
}

// Auth history actions
const (
	ActionStore  = "store"
	ActionDelete = "delete"
)

// AuthEvent is one entry of the per-provider auth history
type AuthEvent struct {
	Provider  string    `json:"provider"`
	Action    string    `json:"action"`
	Type      string    `json:"type,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuthStats represents store statistics
type AuthStats struct {
	TotalRecords   int            `json:"total_records"`
	RecordsByType  map[string]int `json:"records_by_type"`
	ExpiredRecords int            `json:"expired_records"`
	HistoryEntries int            `json:"history_entries"`
	SchemaVersion  string         `json:"schema_version"`
	CreatedAt      string         `json:"created_at,omitempty"`
	DatabaseSize   int64          `json:"database_size"`
	LastUpdated    time.Time      `json:"last_updated"`
}
