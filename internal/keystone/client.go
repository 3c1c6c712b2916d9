// Package keystone es un cliente mínimo de la API v2.0 de Keystone
// (identity service): tokens, tenants, users y roles.
//
// Solo cubre lo que usa el login social: autenticar admin y usuarios,
// crear tenant y usuario, asignar el rol de miembro, leer usuarios.
package keystone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config del cliente.
type Config struct {
	// AuthURL es el endpoint público (…/v2.0) usado para /tokens y /tenants.
	AuthURL string
	// AdminURL es el endpoint de administración; vacío = AuthURL.
	AdminURL string
	Timeout  time.Duration
}

// Client habla con Keystone v2.0.
type Client struct {
	authURL  string
	adminURL string
	http     *http.Client
}

// New crea un cliente.
func New(cfg Config) *Client {
	if cfg.AdminURL == "" {
		cfg.AdminURL = cfg.AuthURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		authURL:  strings.TrimRight(cfg.AuthURL, "/"),
		adminURL: strings.TrimRight(cfg.AdminURL, "/"),
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// Authenticate hace POST /tokens con password credentials.
func (c *Client) Authenticate(ctx context.Context, cred Credentials) (*Access, error) {
	type passwordCredentials struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	body := map[string]any{
		"passwordCredentials": passwordCredentials{Username: cred.Username, Password: cred.Password},
	}
	if cred.TenantID != "" {
		body["tenantId"] = cred.TenantID
	} else if cred.TenantName != "" {
		body["tenantName"] = cred.TenantName
	}

	var out struct {
		Access Access `json:"access"`
	}
	if err := c.do(ctx, http.MethodPost, c.authURL+"/tokens", "", map[string]any{"auth": body}, &out); err != nil {
		return nil, err
	}
	if out.Access.Token.ID == "" {
		return nil, fmt.Errorf("keystone: token response without id")
	}
	return &out.Access, nil
}

// Tenants lista los tenants visibles con token (GET /tenants).
func (c *Client) Tenants(ctx context.Context, token string) ([]Tenant, error) {
	var out struct {
		Tenants []Tenant `json:"tenants"`
	}
	if err := c.do(ctx, http.MethodGet, c.authURL+"/tenants", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Tenants, nil
}

// CreateTenant crea un tenant habilitado.
func (c *Client) CreateTenant(ctx context.Context, token, name, description string) (*Tenant, error) {
	in := map[string]any{"tenant": Tenant{Name: name, Description: description, Enabled: true}}
	var out struct {
		Tenant Tenant `json:"tenant"`
	}
	if err := c.do(ctx, http.MethodPost, c.adminURL+"/tenants", token, in, &out); err != nil {
		return nil, err
	}
	return &out.Tenant, nil
}

// NewUser son los datos de alta de un usuario.
type NewUser struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// CreateUser crea un usuario (POST /users).
func (c *Client) CreateUser(ctx context.Context, token string, u NewUser) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, c.adminURL+"/users", token, map[string]any{"user": u}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// GetUser lee un usuario por id.
func (c *Client) GetUser(ctx context.Context, token, userID string) (*User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, c.adminURL+"/users/"+url.PathEscape(userID), token, nil, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

// ListRoles lista roles (GET /OS-KSADM/roles).
func (c *Client) ListRoles(ctx context.Context, token string) ([]Role, error) {
	var out struct {
		Roles []Role `json:"roles"`
	}
	if err := c.do(ctx, http.MethodGet, c.adminURL+"/OS-KSADM/roles", token, nil, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

// AddUserRole asigna roleID al usuario en el tenant.
func (c *Client) AddUserRole(ctx context.Context, token, tenantID, userID, roleID string) error {
	u := fmt.Sprintf("%s/tenants/%s/users/%s/roles/OS-KSADM/%s", c.adminURL,
		url.PathEscape(tenantID), url.PathEscape(userID), url.PathEscape(roleID))
	return c.do(ctx, http.MethodPut, u, token, nil, nil)
}

// keystoneError es el cuerpo de error de v2: {"error": {"message", "code", "title"}}.
type keystoneError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
		Title   string `json:"title"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ke keystoneError
		_ = json.Unmarshal(raw, &ke)
		return &HTTPError{
			Method:     method,
			URL:        stripQuery(endpoint),
			StatusCode: resp.StatusCode,
			Message:    ke.Error.Message,
		}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("keystone: decode %s %s: %w", method, stripQuery(endpoint), err)
	}
	return nil
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
