package repository

import (
	"context"
	"time"
)

// LocalUser is the dashboard-side account owned by one external identity.
type LocalUser struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}

// LocalUserRepository persists local accounts keyed by username.
type LocalUserRepository interface {
	// Create inserts a new account.
	// Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, username, email string) (*LocalUser, error)

	// GetByUsername retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*LocalUser, error)

	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*LocalUser, error)

	// Delete removes the account and, by cascade, the external identity
	// that references it. Retorna ErrNotFound si no existe.
	Delete(ctx context.Context, id string) error
}
