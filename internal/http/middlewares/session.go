package middlewares

import (
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/horizonauth/internal/http/errors"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
	"github.com/dropDatabas3/horizonauth/internal/session"
)

// RequireSession exige la cookie de sesión y deja la sesión en el contexto.
func RequireSession(m *session.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := m.FromRequest(r)
			if err != nil {
				if !stderrors.Is(err, session.ErrNoSession) && !stderrors.Is(err, session.ErrInvalidSession) {
					logger.From(r.Context()).Warn("session lookup failed", logger.Err(err))
				}
				errors.WriteError(w, errors.ErrUnauthorized.WithCause(err))
				return
			}
			ctx := logger.ToContext(r.Context(), logger.From(r.Context()).With(logger.UserID(d.UserID)))
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, d)))
		})
	}
}
