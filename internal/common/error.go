// Package common defines shared constants and sentinel errors used across
// the layers of authkeeper. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Credential check failure. Deliberately a single error for both a
	// wrong password and a wrong role so the caller cannot tell which
	// check failed.
	ErrorInvalidCredentials = errors.New("invalid credentials")

	// Auth errors (invalid, malformed or unpaired token).
	ErrInvalidToken = errors.New("invalid token")

	// Cache backend failure. Tokens issued during an attempt that ends
	// with this error must be discarded by the caller.
	ErrorCacheUnavailable = errors.New("cache unavailable")

	// Unit-of-work lifecycle errors.
	ErrorTransactionOpen  = errors.New("transaction already open")
	ErrorUnitOfWorkClosed = errors.New("unit of work is closed")
)
