package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
)

type localUserRepo struct {
	db *sql.DB
}

func (r *localUserRepo) Create(ctx context.Context, username, email string) (*repository.LocalUser, error) {
	if username == "" {
		return nil, repository.ErrInvalidInput
	}
	now := time.Now().UTC()
	u := &repository.LocalUser{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		CreatedAt: fromMillis(toMillis(now)),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO local_user (id, username, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, toMillis(now))
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *localUserRepo) GetByUsername(ctx context.Context, username string) (*repository.LocalUser, error) {
	return r.getOne(ctx, `SELECT id, username, email, created_at FROM local_user WHERE username = ?`, username)
}

func (r *localUserRepo) GetByID(ctx context.Context, id string) (*repository.LocalUser, error) {
	return r.getOne(ctx, `SELECT id, username, email, created_at FROM local_user WHERE id = ?`, id)
}

func (r *localUserRepo) getOne(ctx context.Context, query, arg string) (*repository.LocalUser, error) {
	var (
		u       repository.LocalUser
		created int64
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

// Delete borra el usuario y, por cascade, su external_identity.
func (r *localUserRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM local_user WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
