// Package models contains the persistent entities of the authkeeper server.
package models

import "time"

// User is an identity record. The password hash is opaque to every layer
// above the repository and must never be logged or serialized outward.
//
// Audit columns (CreatedAt, UpdatedAt, IsDeleted) are owned by the storage
// layer; the authentication flow only reads them.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsDeleted    bool
}
