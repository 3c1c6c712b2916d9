// Package session guarda la sesión del dashboard después del login social.
//
// El registro vive en el cache (memory o redis) bajo un id aleatorio; la
// cookie sólo lleva un JWT HS256 con ese id, firmado con session.secret.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dropDatabas3/horizonauth/internal/cache"
)

const (
	keyPrefix = "session:"
	issuer    = "horizonauth"
)

var (
	ErrNoSession      = errors.New("session: not found")
	ErrInvalidSession = errors.New("session: invalid cookie")
)

// Data es lo que se guarda por sesión.
type Data struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	TenantID   string    `json:"tenant_id"`
	TenantName string    `json:"tenant_name"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expires_at"`
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Config del Manager.
type Config struct {
	CookieName string
	Domain     string
	Secure     bool
	TTL        time.Duration
	Secret     []byte
}

// Manager emite, lee y borra sesiones.
type Manager struct {
	cfg   Config
	store cache.Client
	now   func() time.Time
}

// NewManager crea un Manager. Sin secret se genera uno aleatorio: las
// cookies no sobreviven a un reinicio.
func NewManager(store cache.Client, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "hz_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 12 * time.Hour
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte(uuid.NewString() + uuid.NewString())
	}
	return &Manager{cfg: cfg, store: store, now: time.Now}
}

// CookieName configurado.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// Issue guarda d y escribe la cookie. El TTL es el menor entre el
// configurado y la expiración del token de Keystone.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, d *Data) error {
	now := m.now()
	ttl := m.cfg.TTL
	if !d.ExpiresAt.IsZero() {
		if left := d.ExpiresAt.Sub(now); left > 0 && left < ttl {
			ttl = left
		}
	}
	d.ID = uuid.NewString()
	d.CreatedAt = now.UTC()

	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, keyPrefix+d.ID, string(b), ttl); err != nil {
		return fmt.Errorf("session: store: %w", err)
	}

	signed, err := m.sign(d.ID, d.UserID, now.Add(ttl))
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    signed,
		Path:     "/",
		Domain:   m.cfg.Domain,
		Expires:  now.Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromRequest lee la cookie y carga la sesión.
func (m *Manager) FromRequest(r *http.Request) (*Data, error) {
	c, err := r.Cookie(m.cfg.CookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}
	sid, err := m.parse(c.Value)
	if err != nil {
		return nil, err
	}
	raw, err := m.store.Get(r.Context(), keyPrefix+sid)
	if cache.IsNotFound(err) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, err
	}
	var d Data
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &d, nil
}

// Clear borra la sesión (si hay) y expira la cookie.
func (m *Manager) Clear(w http.ResponseWriter, r *http.Request) error {
	var err error
	if c, cerr := r.Cookie(m.cfg.CookieName); cerr == nil {
		if sid, perr := m.parse(c.Value); perr == nil {
			err = m.store.Delete(r.Context(), keyPrefix+sid)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		Domain:   m.cfg.Domain,
		MaxAge:   -1,
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return err
}

func (m *Manager) sign(sid, sub string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sid,
		Subject:   sub,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.cfg.Secret)
}

func (m *Manager) parse(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return m.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || claims.ID == "" {
		return "", ErrInvalidSession
	}
	return claims.ID, nil
}
