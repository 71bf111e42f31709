/******************************************************************************
 * Copyright (c) 2025-2026 Tenebris Technologies Inc.                         *
 * Please see LICENSE file for details.                                       *
 ******************************************************************************/

package db

import (
	"errors"
	"fmt"
)

var (
	ErrAuthNotFound   = errors.New("auth record not found")
	ErrDatabaseClosed = errors.New("database is closed")
	ErrInvalidBucket  = errors.New("invalid bucket structure")
	ErrCorruptedData  = errors.New("corrupted data")
)

// Operation names a store operation in errors
type Operation string

const (
	OpStoreAuth       Operation = "store_auth"
	OpGetAuth         Operation = "get_auth"
	OpDeleteAuth      Operation = "delete_auth"
	OpListAuth        Operation = "list_auth"
	OpListAuthHistory Operation = "list_auth_history"
	OpAppendHistory   Operation = "append_history"
	OpGetStats        Operation = "get_stats"
	OpOpen            Operation = "open"
	OpClose           Operation = "close"
	OpBackup          Operation = "backup"
)

// DatabaseError wraps a failed store operation with the provider it concerned
type DatabaseError struct {
	Op       Operation
	Provider string // empty for store-wide operations
	Err      error
}

func (e *DatabaseError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("db %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("db %s for %s: %v", e.Op, e.Provider, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func opError(op Operation, provider string, err error) *DatabaseError {
	return &DatabaseError{Op: op, Provider: provider, Err: err}
}

// IsNotFound reports whether err means no record is stored for the provider
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAuthNotFound)
}

// IsDatabaseError reports whether err carries a DatabaseError
func IsDatabaseError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr)
}

// IsValidationError reports whether a record or provider name was rejected
func IsValidationError(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}

// ValidationError reports a rejected record or provider name. Credential
// values are never included.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
