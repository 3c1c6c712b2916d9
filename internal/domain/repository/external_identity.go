package repository

import (
	"context"
	"time"
)

// ExternalIdentity maps a social provider identity to a local account and
// to the identity-service credentials provisioned for it.
type ExternalIdentity struct {
	ID          string
	ExternalID  string // provider-assigned id, unique
	Provider    string // "sina" | "tencent"
	LocalUserID string
	Email       string

	// AccessToken is the latest provider token; refreshed on every login.
	AccessToken string

	// Password is the generated identity-service password. It is written
	// once by Create and never by Update.
	Password string

	// TenantID and KeystoneUserID stay empty until provisioning completes.
	TenantID       string
	KeystoneUserID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Provisioned reports whether the identity-service tenant exists for this
// record. Records that are not provisioned are not valid login targets.
func (e *ExternalIdentity) Provisioned() bool {
	return e != nil && e.TenantID != ""
}

// ExternalIdentityRepository persists ExternalIdentity records.
type ExternalIdentityRepository interface {
	// GetByExternalID retorna ErrNotFound si no existe.
	GetByExternalID(ctx context.Context, externalID string) (*ExternalIdentity, error)

	// Create inserts rec, filling ID/CreatedAt/UpdatedAt.
	// Retorna ErrConflict si el external_id ya existe.
	Create(ctx context.Context, rec *ExternalIdentity) error

	// Update persists AccessToken, TenantID, KeystoneUserID and Email.
	// Password is never written.
	Update(ctx context.Context, rec *ExternalIdentity) error

	// Delete removes the record. Only used as compensation when
	// provisioning fails. Deleting a missing record is not an error.
	Delete(ctx context.Context, externalID string) error
}
