package authn

import (
	"time"

	"github.com/dropDatabas3/horizonauth/internal/social"
)

// Resolución de la cuenta local.
const (
	PathExisting         = "existing"
	PathNewlyProvisioned = "new"
)

// Session es el resultado de un login exitoso: un token de Keystone
// scoped al tenant del usuario.
type Session struct {
	UserID     string
	Username   string
	TenantID   string
	TenantName string
	Token      string
	ExpiresAt  time.Time

	Provider   social.Provider
	ExternalID string

	// Path es PathExisting o PathNewlyProvisioned.
	Path string
}
