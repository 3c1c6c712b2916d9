package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/horizonauth/internal/http/errors"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// WithRecover captura panics y devuelve un 500.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					errors.WriteError(w, errors.ErrInternalServerError.WithDetail("panic recovered"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
