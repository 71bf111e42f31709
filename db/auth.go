/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package db

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/PivotLLM/GatewayAuth/db/internal"
)

// validateRecord checks the fields of an auth record before it is stored
func validateRecord(record *AuthRecord) error {
	if record == nil {
		return invalid("record", "auth record cannot be nil")
	}

	if err := internal.ValidateAuthType(record.Type); err != nil {
		return invalid("type", err.Error())
	}

	switch record.Type {
	case internal.AuthTypeAPI:
		if record.Key == "" {
			return invalid("key", "API key cannot be empty")
		}
	case internal.AuthTypeOAuth:
		if record.Access == "" {
			return invalid("access", "access token cannot be empty")
		}
	}

	for field, value := range map[string]string{"key": record.Key, "access": record.Access, "refresh": record.Refresh} {
		if err := internal.ValidateCredential(field, value); err != nil {
			return invalid(field, err.Error())
		}
	}

	return nil
}

// StoreAuth stores the auth record for a provider, replacing any previous one
func (d *DB) StoreAuth(provider string, record *AuthRecord) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	if err := internal.ValidateProviderName(provider); err != nil {
		return invalid("provider", err.Error())
	}

	if err := validateRecord(record); err != nil {
		return err
	}

	now := time.Now()
	record.UpdatedAt = now

	err := d.db.Update(func(tx *bbolt.Tx) error {
		authBucket := tx.Bucket([]byte(internal.BucketAuth))
		if authBucket == nil {
			return opError(OpStoreAuth, provider, ErrInvalidBucket)
		}

		// Keep the creation time of the record being replaced
		if record.CreatedAt.IsZero() {
			record.CreatedAt = now
			if existing := authBucket.Get([]byte(provider)); existing != nil {
				var previous AuthRecord
				if err := json.Unmarshal(existing, &previous); err == nil && !previous.CreatedAt.IsZero() {
					record.CreatedAt = previous.CreatedAt
				}
			}
		}

		recordBytes, err := json.Marshal(record)
		if err != nil {
			return opError(OpStoreAuth, provider, fmt.Errorf("failed to marshal auth record: %w", err))
		}

		if err := authBucket.Put([]byte(provider), recordBytes); err != nil {
			return opError(OpStoreAuth, provider, fmt.Errorf("failed to store auth record: %w", err))
		}

		return appendHistory(tx, AuthEvent{
			Provider:  provider,
			Action:    ActionStore,
			Type:      record.Type,
			AccountID: record.AccountID,
			Timestamp: now,
		})
	})

	if err != nil {
		return err
	}

	d.logger.Infof("Stored %s credentials for provider %s", record.Type, provider)
	return nil
}

// GetAuth retrieves the auth record for a provider
func (d *DB) GetAuth(provider string) (*AuthRecord, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	if err := internal.ValidateProviderName(provider); err != nil {
		return nil, invalid("provider", err.Error())
	}

	var record *AuthRecord

	err := d.db.View(func(tx *bbolt.Tx) error {
		authBucket := tx.Bucket([]byte(internal.BucketAuth))
		if authBucket == nil {
			return opError(OpGetAuth, provider, ErrInvalidBucket)
		}

		recordBytes := authBucket.Get([]byte(provider))
		if recordBytes == nil {
			return opError(OpGetAuth, provider, ErrAuthNotFound)
		}

		record = &AuthRecord{}
		if err := json.Unmarshal(recordBytes, record); err != nil {
			return opError(OpGetAuth, provider, fmt.Errorf("%w: %v", ErrCorruptedData, err))
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	d.logger.Debugf("Retrieved %s credentials for provider %s", record.Type, provider)
	return record, nil
}

// DeleteAuth removes the auth record for a provider
func (d *DB) DeleteAuth(provider string) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	if err := internal.ValidateProviderName(provider); err != nil {
		return invalid("provider", err.Error())
	}

	err := d.db.Update(func(tx *bbolt.Tx) error {
		authBucket := tx.Bucket([]byte(internal.BucketAuth))
		if authBucket == nil {
			return opError(OpDeleteAuth, provider, ErrInvalidBucket)
		}

		if authBucket.Get([]byte(provider)) == nil {
			return opError(OpDeleteAuth, provider, ErrAuthNotFound)
		}

		if err := authBucket.Delete([]byte(provider)); err != nil {
			return opError(OpDeleteAuth, provider, fmt.Errorf("failed to delete auth record: %w", err))
		}

		return appendHistory(tx, AuthEvent{
			Provider:  provider,
			Action:    ActionDelete,
			Timestamp: time.Now(),
		})
	})

	if err != nil {
		return err
	}

	d.logger.Infof("Deleted credentials for provider %s", provider)
	return nil
}

// ListAuth returns every stored auth record keyed by provider
func (d *DB) ListAuth() (map[string]*AuthRecord, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	records := make(map[string]*AuthRecord)

	err := d.db.View(func(tx *bbolt.Tx) error {
		authBucket := tx.Bucket([]byte(internal.BucketAuth))
		if authBucket == nil {
			return opError(OpListAuth, "", ErrInvalidBucket)
		}

		return authBucket.ForEach(func(k, v []byte) error {
			var record AuthRecord
			if err := json.Unmarshal(v, &record); err != nil {
				d.logger.Warningf("Skipping corrupted auth record for provider %s: %v", string(k), err)
				return nil
			}
			records[string(k)] = &record
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}

// ListAuthHistory returns up to limit of the most recent history entries for
// provider, newest first. A limit of zero or less returns all entries.
func (d *DB) ListAuthHistory(provider string, limit int) ([]AuthEvent, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	if err := internal.ValidateProviderName(provider); err != nil {
		return nil, invalid("provider", err.Error())
	}

	var events []AuthEvent

	err := d.db.View(func(tx *bbolt.Tx) error {
		historyBucket := tx.Bucket([]byte(internal.BucketHistory))
		if historyBucket == nil {
			return opError(OpListAuthHistory, provider, ErrInvalidBucket)
		}

		prefix := internal.HistoryPrefix(provider)
		c := historyBucket.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var event AuthEvent
			if err := json.Unmarshal(v, &event); err != nil {
				continue
			}
			events = append(events, event)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	// Keys sort oldest first
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}

	return events, nil
}

// appendHistory writes event to the history bucket inside tx
func appendHistory(tx *bbolt.Tx, event AuthEvent) error {
	historyBucket := tx.Bucket([]byte(internal.BucketHistory))
	if historyBucket == nil {
		return opError(OpAppendHistory, event.Provider, ErrInvalidBucket)
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return opError(OpAppendHistory, event.Provider, fmt.Errorf("failed to marshal event: %w", err))
	}

	key := internal.HistoryKey(event.Provider, event.Timestamp.UnixNano())
	// Two events in the same nanosecond must not overwrite each other
	for historyBucket.Get(key) != nil {
		key = append(key, '+')
	}

	return historyBucket.Put(key, eventBytes)
}
