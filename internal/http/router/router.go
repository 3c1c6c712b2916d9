// Package router arma el árbol de rutas chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	authctrl "github.com/dropDatabas3/horizonauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/horizonauth/internal/http/controllers/health"
	usersctrl "github.com/dropDatabas3/horizonauth/internal/http/controllers/users"
	"github.com/dropDatabas3/horizonauth/internal/http/errors"
	mw "github.com/dropDatabas3/horizonauth/internal/http/middlewares"
	"github.com/dropDatabas3/horizonauth/internal/metrics"
	"github.com/dropDatabas3/horizonauth/internal/rate"
	"github.com/dropDatabas3/horizonauth/internal/session"
)

// Deps contiene las dependencias del router.
type Deps struct {
	Auth    *authctrl.Controller
	Users   *usersctrl.Controller
	Health  *healthctrl.Controller
	Session *session.Manager

	// Opcionales
	Metrics     *metrics.Metrics
	RateLimiter rate.Limiter
}

// New registra todas las rutas.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(mw.WithRecover(), mw.WithRequestID(), mw.WithLogging())
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrNotFound)
	})

	if d.Health != nil {
		r.Get("/readyz", d.Health.Readyz)
	}

	r.Route("/v2", func(r chi.Router) {
		r.With(mw.WithRateLimit(d.RateLimiter, mw.IPRateKey)).
			Get("/auth/social/{provider}/callback", d.Auth.Callback)
		r.Post("/logout", d.Auth.Logout)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireSession(d.Session))
			r.Get("/session", d.Auth.Session)
			if d.Users != nil {
				r.Get("/users/{id}", d.Users.Get)
			}
		})
	})
	return r
}
