/*=============================================================================
= Copyright (c) 2025-2026 Tenebris Technologies Inc.                         =
= All rights reserved.                                                       =
=============================================================================*/

package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/PivotLLM/GatewayAuth/db/internal"
	"github.com/PivotLLM/GatewayAuth/global"
)

// DatabaseFile is the name of the database file inside the data directory
const DatabaseFile = "gatewayauth.db"

const openTimeout = 5 * time.Second

// Database is the host credential store. Records are keyed by provider
// name and every change is appended to a per-provider history.
type Database interface {
	StoreAuth(provider string, record *AuthRecord) error
	GetAuth(provider string) (*AuthRecord, error)
	DeleteAuth(provider string) error
	ListAuth() (map[string]*AuthRecord, error)
	ListAuthHistory(provider string, limit int) ([]AuthEvent, error)

	GetStats() (*AuthStats, error)

	DataDir() string
	Close() error
	Backup(path string) error
}

// DB implements Database on a bbolt file
type DB struct {
	db      *bbolt.DB
	logger  global.Logger
	dataDir string
	mutex   sync.RWMutex
	closed  bool
}

// Option configures a DB
type Option func(*DB)

// WithDataDir sets the directory holding the database file
func WithDataDir(dataDir string) Option {
	return func(d *DB) {
		d.dataDir = dataDir
	}
}

// WithLogger sets the logger. It is required.
func WithLogger(logger global.Logger) Option {
	return func(d *DB) {
		d.logger = logger
	}
}

// New opens, creating if needed, the credential store in the data directory
func New(opts ...Option) (Database, error) {
	d := &DB{}
	for _, opt := range opts {
		opt(d)
	}

	if d.logger == nil {
		return nil, invalid("logger", "a logger is required")
	}
	if d.dataDir == "" {
		d.dataDir = DefaultDataDir(d.logger)
	}

	if err := os.MkdirAll(d.dataDir, 0o700); err != nil {
		return nil, opError(OpOpen, "", fmt.Errorf("failed to create data directory %s: %w", d.dataDir, err))
	}

	dbPath := filepath.Join(d.dataDir, DatabaseFile)
	bolt, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, opError(OpOpen, "", fmt.Errorf("failed to open %s: %w", dbPath, err))
	}
	d.db = bolt

	if err := d.initializeSchema(); err != nil {
		_ = bolt.Close()
		return nil, opError(OpOpen, "", err)
	}

	d.logger.Infof("Credential store opened at %s", dbPath)
	return d, nil
}

// DefaultDataDir returns ~/.gatewayauth, or a directory under the system
// temp dir when no home directory is known
func DefaultDataDir(logger global.Logger) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		if logger != nil {
			logger.Warningf("Cannot determine home directory: %v", err)
		}
		return filepath.Join(os.TempDir(), "gatewayauth")
	}
	return filepath.Join(homeDir, ".gatewayauth")
}

// initializeSchema creates the root buckets and records the schema version
func (d *DB) initializeSchema() error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range internal.RootBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}

		system := tx.Bucket([]byte(internal.BucketSystem))
		if err := system.Put([]byte(internal.KeySchemaVersion), []byte(internal.SchemaVersion)); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		if system.Get([]byte(internal.KeyCreatedAt)) != nil {
			return nil
		}
		return system.Put([]byte(internal.KeyCreatedAt), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

// DataDir returns the directory holding the database file
func (d *DB) DataDir() string {
	return d.dataDir
}

// Close closes the store. Closing twice is a no-op.
func (d *DB) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	if err := d.db.Close(); err != nil {
		return opError(OpClose, "", err)
	}
	d.logger.Debug("Credential store closed")
	return nil
}

// Backup writes a consistent copy of the store to path
func (d *DB) Backup(path string) error {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if d.closed {
		return ErrDatabaseClosed
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return opError(OpBackup, "", err)
	}

	return d.db.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(path, 0o600)
	})
}

func (d *DB) checkClosed() error {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if d.closed {
		return ErrDatabaseClosed
	}
	return nil
}
