// Package authn es el backend de login social: verifica la identidad
// externa, aplica la política de amistad mutua, mapea la identidad a una
// cuenta local + tenant/usuario de Keystone (creándolos la primera vez) y
// abre la sesión en Keystone.
package authn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
	"github.com/dropDatabas3/horizonauth/internal/keystone"
	"github.com/dropDatabas3/horizonauth/internal/messages"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
	"github.com/dropDatabas3/horizonauth/internal/provisioning"
	"github.com/dropDatabas3/horizonauth/internal/security/password"
	"github.com/dropDatabas3/horizonauth/internal/social"
)

// IdentityService es lo que el login necesita de Keystone.
// *keystone.Client lo implementa.
type IdentityService interface {
	Authenticate(ctx context.Context, cred keystone.Credentials) (*keystone.Access, error)
	Tenants(ctx context.Context, token string) ([]keystone.Tenant, error)
	GetUser(ctx context.Context, token, userID string) (*keystone.User, error)
}

// Provisioner crea tenant + usuario en Keystone.
type Provisioner interface {
	Provision(ctx context.Context, req provisioning.Request) (*provisioning.Result, error)
}

// Observer recibe eventos para métricas. Todos los métodos son opcionales
// vía NopObserver.
type Observer interface {
	LoginResult(provider social.Provider, outcome string)
	ProvisionDone(provider social.Provider, d time.Duration, err error)
}

// NopObserver no hace nada.
type NopObserver struct{}

func (NopObserver) LoginResult(social.Provider, string)                 {}
func (NopObserver) ProvisionDone(social.Provider, time.Duration, error) {}

// Outcomes reportados a Observer.LoginResult.
const (
	OutcomeLoggedIn        = "logged_in"
	OutcomeProviderAuth    = "provider_auth_failed"
	OutcomeNotMember       = "not_member"
	OutcomeProvisioning    = "provisioning_failed"
	OutcomeIdentityLogin   = "identity_login_failed"
	OutcomeSetupPending    = "setup_in_progress"
	OutcomeInternal        = "internal_error"
	OutcomeUnknownProvider = "unknown_provider"
)

// Config del Authenticator.
type Config struct {
	// ReferenceIDs es la cuenta de referencia por provider.
	ReferenceIDs map[social.Provider]string

	// ProvisioningGrace: un registro sin tenant más viejo que esto se
	// considera abandonado y se rehace.
	ProvisioningGrace time.Duration

	// Admin se usa para GetUser.
	Admin keystone.Credentials
}

// Deps son las dependencias del Authenticator.
type Deps struct {
	Providers   []social.Client
	Validator   *social.Validator
	Identities  repository.ExternalIdentityRepository
	LocalUsers  repository.LocalUserRepository
	Provisioner Provisioner
	Keystone    IdentityService

	// Opcionales
	Messages messages.Sink
	Observer Observer
	Now      func() time.Time
	Password func() (string, error)
}

// Authenticator implementa el flujo de login social.
type Authenticator struct {
	cfg       Config
	providers map[social.Provider]social.Client
	validator *social.Validator
	ids       repository.ExternalIdentityRepository
	users     repository.LocalUserRepository
	prov      Provisioner
	ks        IdentityService
	msgs      messages.Sink
	obs       Observer
	now       func() time.Time
	genPass   func() (string, error)

	group    singleflight.Group
	creating sync.Map // external ids con alta en curso en este proceso
}

// New crea un Authenticator.
func New(cfg Config, d Deps) *Authenticator {
	a := &Authenticator{
		cfg:       cfg,
		providers: make(map[social.Provider]social.Client, len(d.Providers)),
		validator: d.Validator,
		ids:       d.Identities,
		users:     d.LocalUsers,
		prov:      d.Provisioner,
		ks:        d.Keystone,
		msgs:      d.Messages,
		obs:       d.Observer,
		now:       d.Now,
		genPass:   d.Password,
	}
	for _, c := range d.Providers {
		a.providers[c.Name()] = c
	}
	if a.validator == nil {
		a.validator = social.NewValidator(0, nil)
	}
	if a.msgs == nil {
		a.msgs = messages.ContextSink{}
	}
	if a.obs == nil {
		a.obs = NopObserver{}
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.genPass == nil {
		a.genPass = func() (string, error) { return password.Generate(password.DefaultLength) }
	}
	if a.cfg.ProvisioningGrace <= 0 {
		a.cfg.ProvisioningGrace = 5 * time.Minute
	}
	return a
}

// Providers lista los providers habilitados.
func (a *Authenticator) Providers() []social.Provider {
	out := make([]social.Provider, 0, len(a.providers))
	for p := range a.providers {
		out = append(out, p)
	}
	return out
}

// Authenticate ejecuta el login completo para req. Todo rechazo devuelve un
// error que matchea ErrRejected y deja un mensaje en el Sink.
func (a *Authenticator) Authenticate(ctx context.Context, req social.LoginRequest, rc social.RequestContext) (*Session, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("authn"))

	if req == nil {
		err := fmt.Errorf("%w: empty login request", social.ErrProviderAuth)
		messages.Error(ctx, a.msgs, fmt.Sprintf("Failed to login: %s", err))
		return nil, reject(err)
	}
	provider := req.Provider()
	log = log.With(logger.Provider(provider.String()))

	client, ok := a.providers[provider]
	if !ok {
		err := fmt.Errorf("%w: %s", ErrProviderDisabled, provider)
		messages.Error(ctx, a.msgs, fmt.Sprintf("Failed to login: %s", err))
		a.obs.LoginResult(provider, OutcomeUnknownProvider)
		return nil, reject(err)
	}
	texts := client.Messages()

	// Start -> ProfileFetched
	profile, err := social.FetchProfile(ctx, client, req, rc)
	if err != nil {
		messages.Error(ctx, a.msgs, texts.Unauthorized)
		a.obs.LoginResult(provider, OutcomeProviderAuth)
		return nil, reject(err)
	}
	log = log.With(logger.ExternalID(profile.ExternalID))

	// ProfileFetched -> Validated
	ref := a.cfg.ReferenceIDs[provider]
	member, err := a.validator.IsValidMember(ctx, client, profile.Token, profile.ExternalID, ref)
	if err != nil {
		messages.Error(ctx, a.msgs, fmt.Sprintf("Failed to login: %s", err))
		a.obs.LoginResult(provider, OutcomeInternal)
		return nil, reject(err)
	}
	if !member {
		messages.Error(ctx, a.msgs, fmt.Sprintf(texts.NotFollowed, ref))
		a.obs.LoginResult(provider, OutcomeNotMember)
		log.Info("login rejected: not a member")
		return nil, reject(ErrNotAMember)
	}
	profile.Valid = true

	// Validated -> Resolved
	username := fmt.Sprintf("%s_%s", provider, profile.ExternalID)
	res, err := a.resolve(ctx, profile, username)
	if err != nil {
		outcome := OutcomeInternal
		switch {
		case errors.Is(err, provisioning.ErrProvisioning):
			outcome = OutcomeProvisioning
		case errors.Is(err, ErrSetupInProgress), errors.Is(err, repository.ErrConflict):
			outcome = OutcomeSetupPending
		}
		log.Warn("account resolution failed", logger.Err(err))
		messages.Error(ctx, a.msgs, fmt.Sprintf("Failed to login: %s", err))
		a.obs.LoginResult(provider, outcome)
		return nil, reject(err)
	}

	// Resolved -> LoggedIn
	sess, err := a.login(ctx, res.rec, username)
	if err != nil {
		messages.Error(ctx, a.msgs, fmt.Sprintf("Failed to login: %s", err))
		a.obs.LoginResult(provider, OutcomeIdentityLogin)
		log.Warn("identity service login failed", logger.Err(err))
		return nil, reject(fmt.Errorf("%w: %w", ErrIdentityServiceAuth, err))
	}
	sess.Provider = provider
	sess.ExternalID = profile.ExternalID
	sess.Path = res.path

	a.obs.LoginResult(provider, OutcomeLoggedIn)
	log.Info("login ok",
		logger.Username(username),
		logger.TenantID(sess.TenantID),
		logger.String("path", res.path),
	)
	return sess, nil
}

// login abre un token unscoped, busca el tenant del usuario y lo re-scopea.
func (a *Authenticator) login(ctx context.Context, rec *repository.ExternalIdentity, username string) (*Session, error) {
	cred := keystone.Credentials{Username: username, Password: rec.Password}
	unscoped, err := a.ks.Authenticate(ctx, cred)
	if err != nil {
		return nil, err
	}

	tenants, err := a.ks.Tenants(ctx, unscoped.Token.ID)
	if err != nil {
		return nil, err
	}
	var chosen *keystone.Tenant
	for i := range tenants {
		t := &tenants[i]
		if t.Name == username || (rec.TenantID != "" && t.ID == rec.TenantID) {
			chosen = t
			break
		}
	}
	if chosen == nil && len(tenants) > 0 {
		chosen = &tenants[0]
	}
	if chosen == nil {
		return nil, fmt.Errorf("user %s has no tenants", username)
	}

	cred.TenantID = chosen.ID
	scoped, err := a.ks.Authenticate(ctx, cred)
	if err != nil {
		return nil, err
	}
	return &Session{
		UserID:     scoped.User.ID,
		Username:   username,
		TenantID:   chosen.ID,
		TenantName: chosen.Name,
		Token:      scoped.Token.ID,
		ExpiresAt:  scoped.Token.ExpiresAt(),
	}, nil
}

// GetUser retorna el usuario de Keystone con una sesión admin nueva.
func (a *Authenticator) GetUser(ctx context.Context, userID string) (*keystone.User, error) {
	admin, err := a.ks.Authenticate(ctx, a.cfg.Admin)
	if err != nil {
		return nil, fmt.Errorf("admin auth: %w", err)
	}
	return a.ks.GetUser(ctx, admin.Token.ID, userID)
}
