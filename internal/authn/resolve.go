package authn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
	"github.com/dropDatabas3/horizonauth/internal/provisioning"
	"github.com/dropDatabas3/horizonauth/internal/social"
)

type resolved struct {
	rec  *repository.ExternalIdentity
	path string
}

// resolve mapea el perfil validado a un registro con tenant, creando la
// cuenta si hace falta.
func (a *Authenticator) resolve(ctx context.Context, p *social.Profile, username string) (*resolved, error) {
	log := logger.From(ctx).With(logger.Component("authn.resolve"), logger.ExternalID(p.ExternalID))

	rec, err := a.ids.GetByExternalID(ctx, p.ExternalID)
	switch {
	case err == nil && rec.Provisioned():
		return a.reuse(ctx, rec, p)

	case err == nil:
		age := a.now().Sub(rec.CreatedAt)
		if age < a.cfg.ProvisioningGrace {
			if _, busy := a.creating.Load(p.ExternalID); busy {
				return a.createShared(ctx, p, username)
			}
			return nil, ErrSetupInProgress
		}
		log.Warn("discarding stale incomplete record", logger.Duration(age))
		if err := a.ids.Delete(ctx, p.ExternalID); err != nil {
			return nil, fmt.Errorf("delete stale record: %w", err)
		}

	case errors.Is(err, repository.ErrNotFound):

	default:
		return nil, fmt.Errorf("lookup external identity: %w", err)
	}

	return a.createShared(ctx, p, username)
}

// createShared colapsa las altas concurrentes del mismo external id en una
// sola. El alta corre sin la cancelación del request que la inició; los
// que esperan guardan su propio access token.
func (a *Authenticator) createShared(ctx context.Context, p *social.Profile, username string) (*resolved, error) {
	v, err, shared := a.group.Do(p.ExternalID, func() (any, error) {
		a.creating.Store(p.ExternalID, struct{}{})
		defer a.creating.Delete(p.ExternalID)
		return a.createAccount(context.WithoutCancel(ctx), p, username)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*resolved)
	if shared && res.rec.AccessToken != p.AccessToken {
		rec := *res.rec
		return a.reuse(ctx, &rec, p)
	}
	return res, nil
}

// reuse actualiza el access token de un registro completo.
func (a *Authenticator) reuse(ctx context.Context, rec *repository.ExternalIdentity, p *social.Profile) (*resolved, error) {
	rec.AccessToken = p.AccessToken
	if err := a.ids.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update access token: %w", err)
	}
	return &resolved{rec: rec, path: PathExisting}, nil
}

// createAccount: cuenta local, registro sin tenant, aprovisionamiento y
// tenant al registro. Si el aprovisionamiento falla se borra el registro.
func (a *Authenticator) createAccount(ctx context.Context, p *social.Profile, username string) (*resolved, error) {
	log := logger.From(ctx).With(logger.Component("authn.resolve"), logger.ExternalID(p.ExternalID))

	pass, err := a.genPass()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}

	user, err := a.createLocalUser(ctx, p.ExternalID, username, p.Email)
	if errors.Is(err, repository.ErrConflict) {
		return a.afterConflict(ctx, p)
	}
	if err != nil {
		return nil, fmt.Errorf("create local user: %w", err)
	}

	rec := &repository.ExternalIdentity{
		ExternalID:  p.ExternalID,
		Provider:    p.Provider.String(),
		LocalUserID: user.ID,
		Email:       p.Email,
		AccessToken: p.AccessToken,
		Password:    pass,
	}
	if err := a.ids.Create(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return a.afterConflict(ctx, p)
		}
		return nil, fmt.Errorf("create external identity: %w", err)
	}

	start := a.now()
	res, err := a.prov.Provision(ctx, provisioning.Request{
		TenantName: username,
		Username:   username,
		Password:   pass,
		Email:      p.Email,
	})
	a.obs.ProvisionDone(p.Provider, a.now().Sub(start), err)
	if err != nil {
		a.compensate(ctx, p.ExternalID)
		return nil, err
	}

	rec.TenantID = res.TenantID
	rec.KeystoneUserID = res.UserID
	if err := a.ids.Update(ctx, rec); err != nil {
		a.compensate(ctx, p.ExternalID)
		return nil, fmt.Errorf("store tenant: %w", err)
	}

	log.Info("account provisioned", logger.Username(username), logger.TenantID(res.TenantID))
	return &resolved{rec: rec, path: PathNewlyProvisioned}, nil
}

// createLocalUser crea la cuenta local. Si el username ya existe y no hay
// un registro externo vivo apuntándole, se borra y se recrea.
func (a *Authenticator) createLocalUser(ctx context.Context, externalID, username, email string) (*repository.LocalUser, error) {
	u, err := a.users.Create(ctx, username, email)
	if !errors.Is(err, repository.ErrConflict) {
		return u, err
	}

	existing, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return a.users.Create(ctx, username, email)
	}
	if err != nil {
		return nil, err
	}

	// otro login concurrente del mismo external id ya es dueño de la cuenta
	if rec, err := a.ids.GetByExternalID(ctx, externalID); err == nil && rec.LocalUserID == existing.ID {
		return nil, repository.ErrConflict
	}

	logger.From(ctx).Info("replacing local user with colliding username",
		logger.Component("authn.resolve"),
		logger.Username(username),
	)
	if err := a.users.Delete(ctx, existing.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return a.users.Create(ctx, username, email)
}

// afterConflict relee una vez tras perder la carrera de creación.
func (a *Authenticator) afterConflict(ctx context.Context, p *social.Profile) (*resolved, error) {
	rec, err := a.ids.GetByExternalID(ctx, p.ExternalID)
	if err == nil && rec.Provisioned() {
		return a.reuse(ctx, rec, p)
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("re-read after conflict: %w", err)
	}
	return nil, fmt.Errorf("%w: %w", ErrSetupInProgress, repository.ErrConflict)
}

// compensate borra el registro incompleto. Un fallo acá sólo se loguea: el
// registro queda sin tenant y se descarta al vencer el período de gracia.
func (a *Authenticator) compensate(ctx context.Context, externalID string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.ids.Delete(cctx, externalID); err != nil {
		logger.From(ctx).Error("compensation delete failed",
			logger.Component("authn.resolve"),
			logger.ExternalID(externalID),
			logger.Err(err),
		)
	}
}
