/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package db

import (
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"

	"github.com/PivotLLM/GatewayAuth/db/internal"
)

// GetStats returns statistics about the credential store
func (d *DB) GetStats() (*AuthStats, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	stats := &AuthStats{
		RecordsByType: make(map[string]int),
		LastUpdated:   time.Now(),
	}

	err := d.db.View(func(tx *bbolt.Tx) error {
		stats.DatabaseSize = tx.Size()

		if authBucket := tx.Bucket([]byte(internal.BucketAuth)); authBucket != nil {
			err := authBucket.ForEach(func(k, v []byte) error {
				var record AuthRecord
				if err := json.Unmarshal(v, &record); err != nil {
					return nil
				}
				stats.TotalRecords++
				stats.RecordsByType[record.Type]++
				if record.IsExpired() {
					stats.ExpiredRecords++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}

		if historyBucket := tx.Bucket([]byte(internal.BucketHistory)); historyBucket != nil {
			stats.HistoryEntries = historyBucket.Stats().KeyN
		}

		if systemBucket := tx.Bucket([]byte(internal.BucketSystem)); systemBucket != nil {
			stats.SchemaVersion = string(systemBucket.Get([]byte(internal.KeySchemaVersion)))
			stats.CreatedAt = string(systemBucket.Get([]byte(internal.KeyCreatedAt)))
		}

		return nil
	})

	if err != nil {
		return nil, opError(OpGetStats, "", err)
	}

	d.logger.Debugf("Store stats: %d records, %d history entries", stats.TotalRecords, stats.HistoryEntries)
	return stats, nil
}
