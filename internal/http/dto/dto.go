// Package dto contiene las respuestas JSON de la API.
package dto

import (
	"time"

	"github.com/dropDatabas3/horizonauth/internal/messages"
)

// SessionResponse resume la sesión abierta. No incluye el token de
// Keystone: queda del lado del server.
type SessionResponse struct {
	UserID     string             `json:"user_id"`
	Username   string             `json:"username"`
	TenantID   string             `json:"tenant_id"`
	TenantName string             `json:"tenant_name"`
	Provider   string             `json:"provider"`
	ExternalID string             `json:"external_id"`
	ExpiresAt  time.Time          `json:"expires_at"`
	Path       string             `json:"path,omitempty"` // existing | new
	Messages   []messages.Message `json:"messages,omitempty"`
}

// UserResponse es un usuario de Keystone.
type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// HealthResponse de /readyz.
type HealthResponse struct {
	Status     string            `json:"status"` // ready | unavailable
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components"`
}
