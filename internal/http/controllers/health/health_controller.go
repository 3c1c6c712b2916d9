// Package health contiene el controller para health checks.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/horizonauth/internal/http/dto"
	"github.com/dropDatabas3/horizonauth/internal/http/errors"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// Pinger es cualquier componente chequeable (store, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller maneja /readyz.
type Controller struct {
	version    string
	components map[string]Pinger
}

func NewController(version string, components map[string]Pinger) *Controller {
	return &Controller{version: version, components: components}
}

// Readyz maneja GET /readyz
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	resp := dto.HealthResponse{Status: "ready", Version: c.version, Components: map[string]string{}}
	for name, p := range c.components {
		if err := p.Ping(ctx); err != nil {
			log.Warn("component not ready", logger.Component(name), logger.Err(err))
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	if c.version != "" {
		w.Header().Set("X-Service-Version", c.version)
	}
	errors.WriteJSON(w, status, resp)
}
