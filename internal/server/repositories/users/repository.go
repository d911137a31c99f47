// Package users declares the server-side repository contract for reading
// and creating user credential records.
package users

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository defines operations over persisted user records.
type Repository interface {
	// Create inserts a new user and returns it with storage-assigned fields
	// (id, audit timestamps) populated.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByUsername looks up a user by exact username match. Lookup is
	// case-sensitive; no normalization is performed. Implementations return
	// common.ErrorNotFound when the user is absent or soft-deleted.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// GetByID looks up a user by its primary key. Returns
	// common.ErrorNotFound when absent or soft-deleted.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
