package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
	"github.com/dropDatabas3/horizonauth/internal/store"
)

type identityRepo struct {
	db     *sql.DB
	sealer store.Sealer
}

func (r *identityRepo) GetByExternalID(ctx context.Context, externalID string) (*repository.ExternalIdentity, error) {
	const query = `
		SELECT id, external_id, provider, local_user_id, email, access_token, password_enc,
		       tenant_id, keystone_user_id, created_at, updated_at
		FROM external_identity
		WHERE external_id = ?
	`
	var (
		rec              repository.ExternalIdentity
		sealed           string
		created, updated int64
	)
	err := r.db.QueryRowContext(ctx, query, externalID).Scan(
		&rec.ID, &rec.ExternalID, &rec.Provider, &rec.LocalUserID, &rec.Email,
		&rec.AccessToken, &sealed, &rec.TenantID, &rec.KeystoneUserID,
		&created, &updated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Password, err = r.sealer.Open(sealed); err != nil {
		return nil, fmt.Errorf("sqlite: open stored password: %w", err)
	}
	rec.CreatedAt, rec.UpdatedAt = fromMillis(created), fromMillis(updated)
	return &rec, nil
}

func (r *identityRepo) Create(ctx context.Context, rec *repository.ExternalIdentity) error {
	if rec.ExternalID == "" || rec.LocalUserID == "" {
		return repository.ErrInvalidInput
	}
	sealed, err := r.sealer.Seal(rec.Password)
	if err != nil {
		return fmt.Errorf("sqlite: seal password: %w", err)
	}
	now := time.Now().UTC()
	id := uuid.NewString()

	const query = `
		INSERT INTO external_identity
		    (id, external_id, provider, local_user_id, email, access_token, password_enc,
		     tenant_id, keystone_user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, id, rec.ExternalID, rec.Provider, rec.LocalUserID,
		rec.Email, rec.AccessToken, sealed, rec.TenantID, rec.KeystoneUserID,
		toMillis(now), toMillis(now))
	if isUniqueViolation(err) {
		return repository.ErrConflict
	}
	if err != nil {
		return err
	}
	rec.ID, rec.CreatedAt, rec.UpdatedAt = id, fromMillis(toMillis(now)), fromMillis(toMillis(now))
	return nil
}

func (r *identityRepo) Update(ctx context.Context, rec *repository.ExternalIdentity) error {
	const query = `
		UPDATE external_identity
		SET access_token = ?, tenant_id = ?, keystone_user_id = ?, email = ?, updated_at = ?
		WHERE external_id = ?
	`
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query, rec.AccessToken, rec.TenantID, rec.KeystoneUserID,
		rec.Email, toMillis(now), rec.ExternalID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	rec.UpdatedAt = fromMillis(toMillis(now))
	return nil
}

func (r *identityRepo) Delete(ctx context.Context, externalID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM external_identity WHERE external_id = ?`, externalID)
	return err
}
