package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
	"github.com/dropDatabas3/horizonauth/internal/store"
)

type identityRepo struct {
	pool   *pgxpool.Pool
	sealer store.Sealer
}

func (r *identityRepo) GetByExternalID(ctx context.Context, externalID string) (*repository.ExternalIdentity, error) {
	const query = `
		SELECT id, external_id, provider, local_user_id, email, access_token, password_enc,
		       tenant_id, keystone_user_id, created_at, updated_at
		FROM external_identity
		WHERE external_id = $1
	`
	var (
		rec    repository.ExternalIdentity
		sealed string
	)
	err := r.pool.QueryRow(ctx, query, externalID).Scan(
		&rec.ID, &rec.ExternalID, &rec.Provider, &rec.LocalUserID, &rec.Email,
		&rec.AccessToken, &sealed, &rec.TenantID, &rec.KeystoneUserID,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Password, err = r.sealer.Open(sealed); err != nil {
		return nil, fmt.Errorf("pg: open stored password: %w", err)
	}
	return &rec, nil
}

func (r *identityRepo) Create(ctx context.Context, rec *repository.ExternalIdentity) error {
	if rec.ExternalID == "" || rec.LocalUserID == "" {
		return repository.ErrInvalidInput
	}
	sealed, err := r.sealer.Seal(rec.Password)
	if err != nil {
		return fmt.Errorf("pg: seal password: %w", err)
	}
	now := time.Now().UTC()
	id := uuid.NewString()

	const query = `
		INSERT INTO external_identity
		    (id, external_id, provider, local_user_id, email, access_token, password_enc,
		     tenant_id, keystone_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
	`
	_, err = r.pool.Exec(ctx, query, id, rec.ExternalID, rec.Provider, rec.LocalUserID, rec.Email,
		rec.AccessToken, sealed, rec.TenantID, rec.KeystoneUserID, now)
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}
	rec.ID, rec.CreatedAt, rec.UpdatedAt = id, now, now
	return nil
}

func (r *identityRepo) Update(ctx context.Context, rec *repository.ExternalIdentity) error {
	const query = `
		UPDATE external_identity
		SET access_token = $2, tenant_id = $3, keystone_user_id = $4, email = $5, updated_at = $6
		WHERE external_id = $1
	`
	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, query, rec.ExternalID, rec.AccessToken, rec.TenantID,
		rec.KeystoneUserID, rec.Email, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	rec.UpdatedAt = now
	return nil
}

func (r *identityRepo) Delete(ctx context.Context, externalID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM external_identity WHERE external_id = $1`, externalID)
	return err
}
