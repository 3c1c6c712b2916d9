package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
)

type localUserRepo struct {
	pool *pgxpool.Pool
}

func (r *localUserRepo) Create(ctx context.Context, username, email string) (*repository.LocalUser, error) {
	if username == "" {
		return nil, repository.ErrInvalidInput
	}
	u := &repository.LocalUser{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO local_user (id, username, email, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Username, u.Email, u.CreatedAt)
	if isUniqueViolation(err) {
		return nil, repository.ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *localUserRepo) GetByUsername(ctx context.Context, username string) (*repository.LocalUser, error) {
	return r.getOne(ctx, `SELECT id, username, email, created_at FROM local_user WHERE username = $1`, username)
}

func (r *localUserRepo) GetByID(ctx context.Context, id string) (*repository.LocalUser, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}
	return r.getOne(ctx, `SELECT id, username, email, created_at FROM local_user WHERE id = $1`, id)
}

func (r *localUserRepo) getOne(ctx context.Context, query, arg string) (*repository.LocalUser, error) {
	var u repository.LocalUser
	err := r.pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Delete borra el usuario; la FK con ON DELETE CASCADE se lleva el
// external_identity asociado.
func (r *localUserRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM local_user WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
