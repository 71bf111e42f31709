/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package internal

import "fmt"

// Bucket names for consistent database organization
//
//goland:noinspection GoCommentStart
const (
	// Root buckets
	BucketAuth    = "auth"
	BucketHistory = "auth_history"
	BucketSystem  = "system"

	// System keys
	KeySchemaVersion = "schema_version"
	KeyCreatedAt     = "created_at"
)

// SchemaVersion Current schema version
const SchemaVersion = "2.0"

// RootBuckets lists every bucket created when the database is initialized
var RootBuckets = []string{
	BucketAuth,
	BucketHistory,
	BucketSystem,
}

// HistoryKey builds a sortable key for an auth history entry
func HistoryKey(provider string, unixNano int64) []byte {
	return []byte(fmt.Sprintf("%s/%020d", provider, unixNano))
}

// HistoryPrefix returns the key prefix of all history entries for provider
func HistoryPrefix(provider string) []byte {
	return []byte(provider + "/")
}
