package keystone

import "time"

// Credentials for POST /tokens. TenantName/TenantID vacíos = token unscoped.
type Credentials struct {
	Username   string
	Password   string
	TenantName string
	TenantID   string
}

// Tenant es un proyecto de Keystone v2.
type Tenant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// User es un usuario de Keystone v2.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// Role es un rol asignable.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Token emitido por POST /tokens.
type Token struct {
	ID      string  `json:"id"`
	Expires string  `json:"expires"`
	Tenant  *Tenant `json:"tenant,omitempty"`
}

// ExpiresAt parsea Expires. Keystone v2 emite RFC 3339 con o sin zona;
// sin zona se asume UTC. Zero si no se puede parsear.
func (t Token) ExpiresAt() time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		if ts, err := time.Parse(layout, t.Expires); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// Access es la respuesta completa de autenticación.
type Access struct {
	Token Token `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Roles []Role `json:"roles"`
	} `json:"user"`
}

// Scoped reports whether the token is bound to a tenant.
func (a *Access) Scoped() bool { return a != nil && a.Token.Tenant != nil && a.Token.Tenant.ID != "" }
