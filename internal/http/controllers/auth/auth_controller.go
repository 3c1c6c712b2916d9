// Package auth contiene el controller del callback social y la sesión.
package auth

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/horizonauth/internal/authn"
	"github.com/dropDatabas3/horizonauth/internal/http/dto"
	"github.com/dropDatabas3/horizonauth/internal/http/errors"
	"github.com/dropDatabas3/horizonauth/internal/http/middlewares"
	"github.com/dropDatabas3/horizonauth/internal/messages"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
	"github.com/dropDatabas3/horizonauth/internal/provisioning"
	"github.com/dropDatabas3/horizonauth/internal/session"
	"github.com/dropDatabas3/horizonauth/internal/social"
)

// Authenticator es lo que el controller necesita de authn.
type Authenticator interface {
	Authenticate(ctx context.Context, req social.LoginRequest, rc social.RequestContext) (*authn.Session, error)
}

// Controller maneja /v2/auth/social y /v2/session.
type Controller struct {
	auth     Authenticator
	sessions *session.Manager
}

func NewController(a Authenticator, s *session.Manager) *Controller {
	return &Controller{auth: a, sessions: s}
}

// Callback maneja GET /v2/auth/social/{provider}/callback?code=&openid=
func (c *Controller) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, rec := messages.WithRecorder(r.Context())
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.Callback"))

	q := r.URL.Query()
	code := strings.TrimSpace(q.Get("code"))
	if code == "" {
		errors.WriteError(w, errors.ErrBadRequest.WithDetail("code is required"))
		return
	}
	req := social.NewLoginRequest(code, q.Get("openid"))
	if want := social.Provider(strings.ToLower(chi.URLParam(r, "provider"))); req.Provider() != want {
		errors.WriteError(w, errors.ErrProviderMismatch.WithDetail(
			"callback for "+string(want)+" resolved to "+string(req.Provider())))
		return
	}

	sess, err := c.auth.Authenticate(ctx, req, social.RequestContextFrom(r))
	if err != nil {
		log.Info("social login rejected", logger.Err(err))
		errors.WriteErrorWithMessages(w, loginError(err), rec.Messages())
		return
	}

	data := &session.Data{
		UserID:     sess.UserID,
		Username:   sess.Username,
		TenantID:   sess.TenantID,
		TenantName: sess.TenantName,
		Token:      sess.Token,
		ExpiresAt:  sess.ExpiresAt,
		Provider:   string(sess.Provider),
		ExternalID: sess.ExternalID,
	}
	if err := c.sessions.Issue(ctx, w, data); err != nil {
		log.Error("session issue failed", logger.Err(err))
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}

	resp := toResponse(data)
	resp.Path = sess.Path
	resp.Messages = rec.Messages()
	w.Header().Set("Cache-Control", "no-store")
	errors.WriteJSON(w, http.StatusOK, resp)
}

// Session maneja GET /v2/session (requiere RequireSession).
func (c *Controller) Session(w http.ResponseWriter, r *http.Request) {
	d := middlewares.GetSession(r.Context())
	if d == nil {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	errors.WriteJSON(w, http.StatusOK, toResponse(d))
}

// Logout maneja POST /v2/logout. Idempotente.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	if err := c.sessions.Clear(w, r); err != nil {
		logger.From(r.Context()).Warn("logout: clear session", logger.Err(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

// loginError mapea la causa del rechazo. Todo rechazo es 401.
func loginError(err error) *errors.AppError {
	switch {
	case stderrors.Is(err, authn.ErrRejected):
		return errors.ErrLoginRejected.WithDetail(detail(err)).WithCause(err)
	default:
		return errors.ErrInternalServerError.WithCause(err)
	}
}

func detail(err error) string {
	switch {
	case stderrors.Is(err, social.ErrProviderAuth):
		return "provider authorization failed"
	case stderrors.Is(err, authn.ErrNotAMember):
		return "not a mutual friend of the reference account"
	case stderrors.Is(err, provisioning.ErrProvisioning):
		return "account provisioning failed"
	case stderrors.Is(err, authn.ErrSetupInProgress):
		return "account setup in progress"
	case stderrors.Is(err, authn.ErrIdentityServiceAuth):
		return "identity service login failed"
	case stderrors.Is(err, authn.ErrProviderDisabled):
		return "provider not enabled"
	}
	return ""
}

func toResponse(d *session.Data) dto.SessionResponse {
	return dto.SessionResponse{
		UserID:     d.UserID,
		Username:   d.Username,
		TenantID:   d.TenantID,
		TenantName: d.TenantName,
		Provider:   d.Provider,
		ExternalID: d.ExternalID,
		ExpiresAt:  d.ExpiresAt,
	}
}
