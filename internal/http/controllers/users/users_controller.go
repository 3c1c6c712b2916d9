// Package users expone GetUser sobre HTTP.
package users

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/horizonauth/internal/http/dto"
	"github.com/dropDatabas3/horizonauth/internal/http/errors"
	"github.com/dropDatabas3/horizonauth/internal/http/middlewares"
	"github.com/dropDatabas3/horizonauth/internal/keystone"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// UserGetter busca usuarios en el servicio de identidad.
type UserGetter interface {
	GetUser(ctx context.Context, userID string) (*keystone.User, error)
}

type Controller struct {
	users UserGetter
}

func NewController(u UserGetter) *Controller { return &Controller{users: u} }

// Get maneja GET /v2/users/{id}. Solo el propio usuario de la sesión.
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("UsersController.Get"))

	id := chi.URLParam(r, "id")
	sess := middlewares.GetSession(ctx)
	if sess == nil || sess.UserID != id {
		errors.WriteError(w, errors.ErrNotFound)
		return
	}

	u, err := c.users.GetUser(ctx, id)
	switch {
	case stderrors.Is(err, keystone.ErrNotFound):
		errors.WriteError(w, errors.ErrNotFound.WithCause(err))
		return
	case err != nil:
		log.Error("get user failed", logger.UserID(id), logger.Err(err))
		errors.WriteError(w, errors.ErrBadGateway.WithCause(err))
		return
	}

	errors.WriteJSON(w, http.StatusOK, dto.UserResponse{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		TenantID: u.TenantID,
		Enabled:  u.Enabled,
	})
}
