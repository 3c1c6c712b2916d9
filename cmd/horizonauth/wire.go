package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/horizonauth/internal/authn"
	"github.com/dropDatabas3/horizonauth/internal/cache"
	"github.com/dropDatabas3/horizonauth/internal/config"
	authctrl "github.com/dropDatabas3/horizonauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/horizonauth/internal/http/controllers/health"
	usersctrl "github.com/dropDatabas3/horizonauth/internal/http/controllers/users"
	"github.com/dropDatabas3/horizonauth/internal/http/router"
	"github.com/dropDatabas3/horizonauth/internal/keystone"
	"github.com/dropDatabas3/horizonauth/internal/metrics"
	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
	"github.com/dropDatabas3/horizonauth/internal/provisioning"
	"github.com/dropDatabas3/horizonauth/internal/rate"
	"github.com/dropDatabas3/horizonauth/internal/security/secretbox"
	"github.com/dropDatabas3/horizonauth/internal/session"
	"github.com/dropDatabas3/horizonauth/internal/social"
	"github.com/dropDatabas3/horizonauth/internal/social/sina"
	"github.com/dropDatabas3/horizonauth/internal/social/tencent"
	"github.com/dropDatabas3/horizonauth/internal/store"
	_ "github.com/dropDatabas3/horizonauth/internal/store/adapters/dal"
)

// openStore abre la conexión configurada con el sealer de passwords.
func openStore(ctx context.Context, cfg *config.Config) (store.Connection, error) {
	var sealer store.Sealer = store.Plaintext{}
	if cfg.Security.SecretBoxKey != "" {
		box, err := secretbox.Parse(cfg.Security.SecretBoxKey)
		if err != nil {
			return nil, fmt.Errorf("secretbox key: %w", err)
		}
		sealer = box
	} else {
		logger.L().Warn("HZ_SECRETBOX_KEY vacío: los passwords generados se guardan sin cifrar")
	}
	return store.Open(ctx, store.AdapterConfig{
		Name:         cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		MaxOpenConns: cfg.Storage.MaxOpenConns,
		Sealer:       sealer,
	})
}

func adminCredentials(cfg *config.Config) keystone.Credentials {
	return keystone.Credentials{
		Username:   cfg.Keystone.AdminUser,
		Password:   cfg.Keystone.AdminPassword,
		TenantName: cfg.Keystone.AdminTenant,
	}
}

// socialClients arma los clientes habilitados y sus cuentas de referencia.
func socialClients(cfg *config.Config) ([]social.Client, map[social.Provider]string) {
	p := cfg.Providers
	var clients []social.Client
	refs := map[social.Provider]string{}
	if p.Sina.Enabled {
		clients = append(clients, sina.New(sina.Config{
			AppKey:       p.Sina.AppKey,
			AppSecret:    p.Sina.AppSecret,
			TokenURL:     p.Sina.TokenURL,
			APIBase:      p.Sina.APIBase,
			CallbackPath: p.CallbackPath,
			Timeout:      p.HTTPTimeout,
		}))
		refs[social.ProviderSina] = p.Sina.RequiredFollowerID
	}
	if p.Tencent.Enabled {
		clients = append(clients, tencent.New(tencent.Config{
			AppID:        p.Tencent.AppKey,
			AppSecret:    p.Tencent.AppSecret,
			TokenURL:     p.Tencent.TokenURL,
			APIBase:      p.Tencent.APIBase,
			CallbackPath: p.CallbackPath,
			Timeout:      p.HTTPTimeout,
		}))
		refs[social.ProviderTencent] = p.Tencent.RequiredFollowerID
	}
	return clients, refs
}

// buildHandler conecta store, cache, Keystone y providers y devuelve el
// handler HTTP junto con su cleanup.
func buildHandler(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	conn, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := store.Migrate(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	logger.L().Info("store ready",
		logger.String("driver", conn.Name()),
		logger.Int("migrations_applied", len(res.Applied)),
	)

	cc, err := cache.New(ctx, cache.Config{
		Kind:       cfg.Cache.Kind,
		Addr:       cfg.Cache.Redis.Addr,
		Password:   cfg.Cache.Redis.Password,
		DB:         cfg.Cache.Redis.DB,
		Prefix:     cfg.Cache.Redis.Prefix,
		DefaultTTL: cfg.Cache.Memory.DefaultTTL,
	})
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = cc.Close()
		_ = conn.Close()
	}

	m, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	ks := keystone.New(keystone.Config{
		AuthURL:  cfg.Keystone.AuthURL,
		AdminURL: cfg.Keystone.AdminURL,
		Timeout:  cfg.Keystone.Timeout,
	})
	admin := adminCredentials(cfg)

	clients, refs := socialClients(cfg)
	if len(clients) == 0 {
		logger.L().Warn("ningún provider social habilitado")
	}

	auth := authn.New(authn.Config{
		ReferenceIDs:      refs,
		ProvisioningGrace: cfg.Auth.ProvisioningGrace,
		Admin:             admin,
	}, authn.Deps{
		Providers:   clients,
		Validator:   social.NewValidator(cfg.Providers.MaxPages, m.FriendPage),
		Identities:  conn.Identities(),
		LocalUsers:  conn.LocalUsers(),
		Provisioner: provisioning.New(ks, provisioning.Config{Admin: admin, MemberRole: cfg.Keystone.MemberRole}),
		Keystone:    ks,
		Observer:    m,
	})

	sessions := session.NewManager(cc, session.Config{
		CookieName: cfg.Session.CookieName,
		Domain:     cfg.Session.Domain,
		Secure:     cfg.Session.Secure,
		TTL:        cfg.Session.TTL,
		Secret:     []byte(cfg.Session.Secret),
	})

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		limiter = rate.New(cc, cfg.Rate.Limit, cfg.Rate.Window)
	}

	h := router.New(router.Deps{
		Auth:    authctrl.NewController(auth, sessions),
		Users:   usersctrl.NewController(auth),
		Health:  healthctrl.NewController(version, map[string]healthctrl.Pinger{"store": conn, "cache": cc}),
		Session: sessions,

		Metrics:     m,
		RateLimiter: limiter,
	})
	return h, cleanup, nil
}
