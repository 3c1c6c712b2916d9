// Package provisioning crea en el identity service el tenant y el usuario
// que corresponden a una identidad externa nueva.
//
// No hay rollback remoto: si un paso falla, lo ya creado queda en Keystone
// y el caller decide qué limpiar del lado local.
package provisioning

import (
	"context"
	"strings"

	"github.com/dropDatabas3/horizonauth/internal/keystone"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// TenantDescription es la descripción de los tenants auto-creados.
const TenantDescription = "Auto created account"

// IdentityService es lo que el Provisioner necesita de Keystone.
// *keystone.Client lo implementa.
type IdentityService interface {
	Authenticate(ctx context.Context, cred keystone.Credentials) (*keystone.Access, error)
	CreateTenant(ctx context.Context, token, name, description string) (*keystone.Tenant, error)
	CreateUser(ctx context.Context, token string, u keystone.NewUser) (*keystone.User, error)
	ListRoles(ctx context.Context, token string) ([]keystone.Role, error)
	AddUserRole(ctx context.Context, token, tenantID, userID, roleID string) error
}

// Config del Provisioner.
type Config struct {
	Admin keystone.Credentials
	// MemberRole es nombre o id del rol que recibe el usuario nuevo.
	MemberRole string
}

// Request describe la cuenta a crear.
type Request struct {
	TenantName string
	Username   string
	Password   string
	Email      string
}

// Result son los ids creados.
type Result struct {
	TenantID string
	UserID   string
}

// Provisioner crea tenant + usuario + rol.
type Provisioner struct {
	svc IdentityService
	cfg Config
}

// New crea un Provisioner.
func New(svc IdentityService, cfg Config) *Provisioner {
	return &Provisioner{svc: svc, cfg: cfg}
}

// Provision abre una sesión admin nueva y crea tenant, usuario y rol.
// Cualquier fallo se devuelve como *Error.
func (p *Provisioner) Provision(ctx context.Context, req Request) (*Result, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("provisioning"))

	admin, err := p.svc.Authenticate(ctx, p.cfg.Admin)
	if err != nil {
		return nil, p.fail(ctx, StepAdminAuth, err)
	}
	token := admin.Token.ID

	tenant, err := p.svc.CreateTenant(ctx, token, req.TenantName, TenantDescription)
	if err != nil {
		return nil, p.fail(ctx, StepCreateTenant, err)
	}

	user, err := p.svc.CreateUser(ctx, token, keystone.NewUser{
		Name:     req.Username,
		Password: req.Password,
		Email:    req.Email,
		TenantID: tenant.ID,
		Enabled:  true,
	})
	if err != nil {
		return nil, p.fail(ctx, StepCreateUser, err)
	}

	roleID, err := p.resolveRole(ctx, token)
	if err != nil {
		return nil, p.fail(ctx, StepResolveRole, err)
	}
	if err := p.svc.AddUserRole(ctx, token, tenant.ID, user.ID, roleID); err != nil {
		return nil, p.fail(ctx, StepAssignRole, err)
	}

	log.Info("identity provisioned",
		logger.TenantID(tenant.ID),
		logger.UserID(user.ID),
		logger.Username(req.Username),
	)
	return &Result{TenantID: tenant.ID, UserID: user.ID}, nil
}

// resolveRole busca MemberRole por nombre; si no aparece se usa tal cual
// como id.
func (p *Provisioner) resolveRole(ctx context.Context, token string) (string, error) {
	roles, err := p.svc.ListRoles(ctx, token)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, p.cfg.MemberRole) {
			return r.ID, nil
		}
	}
	return p.cfg.MemberRole, nil
}

func (p *Provisioner) fail(ctx context.Context, step string, err error) error {
	logger.From(ctx).Warn("provisioning step failed",
		logger.Component("provisioning"),
		logger.Step(step),
		logger.Err(err),
	)
	return &Error{Step: step, Err: err}
}
