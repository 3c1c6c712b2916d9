package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del servicio. Se carga desde YAML y
// después se pisan valores con variables HZ_*.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env" env:"HZ_APP_ENV"`
	} `yaml:"app"`

	Log struct {
		Level string `yaml:"level" env:"HZ_LOG_LEVEL"`
	} `yaml:"log"`

	Server struct {
		Addr         string        `yaml:"addr" env:"HZ_SERVER_ADDR"`
		ReadTimeout  time.Duration `yaml:"read_timeout" env:"HZ_SERVER_READ_TIMEOUT"`
		WriteTimeout time.Duration `yaml:"write_timeout" env:"HZ_SERVER_WRITE_TIMEOUT"`
	} `yaml:"server"`

	Storage struct {
		// postgres | sqlite
		Driver       string `yaml:"driver" env:"HZ_STORAGE_DRIVER"`
		DSN          string `yaml:"dsn" env:"HZ_STORAGE_DSN"`
		MaxOpenConns int    `yaml:"max_open_conns" env:"HZ_STORAGE_MAX_OPEN_CONNS"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind" env:"HZ_CACHE_KIND"`
		Redis struct {
			Addr     string `yaml:"addr" env:"HZ_REDIS_ADDR"`
			Password string `yaml:"password" env:"HZ_REDIS_PASSWORD"`
			DB       int    `yaml:"db" env:"HZ_REDIS_DB"`
			Prefix   string `yaml:"prefix" env:"HZ_REDIS_PREFIX"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL time.Duration `yaml:"default_ttl" env:"HZ_CACHE_MEMORY_TTL"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Rate struct {
		Enabled bool          `yaml:"enabled" env:"HZ_RATE_ENABLED"`
		Limit   int           `yaml:"limit" env:"HZ_RATE_LIMIT"`
		Window  time.Duration `yaml:"window" env:"HZ_RATE_WINDOW"`
	} `yaml:"rate"`

	Session struct {
		CookieName string        `yaml:"cookie_name" env:"HZ_SESSION_COOKIE_NAME"`
		Domain     string        `yaml:"domain" env:"HZ_SESSION_DOMAIN"`
		Secure     bool          `yaml:"secure" env:"HZ_SESSION_SECURE"`
		TTL        time.Duration `yaml:"ttl" env:"HZ_SESSION_TTL"`
		// HMAC para la cookie firmada
		Secret string `yaml:"secret" env:"HZ_SESSION_SECRET"`
	} `yaml:"session"`

	Security struct {
		// 32 bytes en base64 o hex; vacío = password guardada en claro
		SecretBoxKey string `yaml:"secretbox_key" env:"HZ_SECRETBOX_KEY"`
	} `yaml:"security"`

	Keystone struct {
		AuthURL       string        `yaml:"auth_url" env:"HZ_KEYSTONE_AUTH_URL"`
		AdminURL      string        `yaml:"admin_url" env:"HZ_KEYSTONE_ADMIN_URL"`
		AdminUser     string        `yaml:"admin_user" env:"HZ_KEYSTONE_ADMIN_USER"`
		AdminPassword string        `yaml:"admin_password" env:"HZ_KEYSTONE_ADMIN_PASSWORD"`
		AdminTenant   string        `yaml:"admin_tenant" env:"HZ_KEYSTONE_ADMIN_TENANT"`
		MemberRole    string        `yaml:"member_role" env:"HZ_KEYSTONE_MEMBER_ROLE"`
		Timeout       time.Duration `yaml:"timeout" env:"HZ_KEYSTONE_TIMEOUT"`
	} `yaml:"keystone"`

	Providers struct {
		HTTPTimeout time.Duration `yaml:"http_timeout" env:"HZ_PROVIDERS_HTTP_TIMEOUT"`
		MaxPages    int           `yaml:"max_pages" env:"HZ_PROVIDERS_MAX_PAGES"`
		// referencia relativa para el redirect_uri
		CallbackPath string `yaml:"callback_path" env:"HZ_PROVIDERS_CALLBACK_PATH"`

		Sina    ProviderConfig `yaml:"sina" envPrefix:"HZ_SINA_"`
		Tencent ProviderConfig `yaml:"tencent" envPrefix:"HZ_TENCENT_"`
	} `yaml:"providers"`

	Auth struct {
		// edad a partir de la cual un registro sin tenant se considera abandonado
		ProvisioningGrace time.Duration `yaml:"provisioning_grace" env:"HZ_AUTH_PROVISIONING_GRACE"`
	} `yaml:"auth"`
}

// ProviderConfig holds one social provider's app credentials and endpoints.
type ProviderConfig struct {
	Enabled            bool   `yaml:"enabled" env:"ENABLED"`
	AppKey             string `yaml:"app_key" env:"APP_KEY"`
	AppSecret          string `yaml:"app_secret" env:"APP_SECRET"`
	RequiredFollowerID string `yaml:"required_follower_id" env:"REQUIRED_FOLLOWER_ID"`
	TokenURL           string `yaml:"token_url" env:"TOKEN_URL"`
	APIBase            string `yaml:"api_base" env:"API_BASE"`
}

// Load lee el YAML en path (si path != ""), aplica defaults y overrides
// de entorno, y valida.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("config: env: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.DSN == "" && c.Storage.Driver == "sqlite" {
		c.Storage.DSN = "file:horizonauth.db"
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == 0 {
		c.Cache.Memory.DefaultTTL = 2 * time.Minute
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "hz:"
	}
	if c.Rate.Limit == 0 {
		c.Rate.Limit = 20
	}
	if c.Rate.Window == 0 {
		c.Rate.Window = time.Minute
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "hz_session"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 12 * time.Hour
	}
	if c.Keystone.AdminURL == "" {
		c.Keystone.AdminURL = c.Keystone.AuthURL
	}
	if c.Keystone.MemberRole == "" {
		c.Keystone.MemberRole = "_member_"
	}
	if c.Keystone.Timeout == 0 {
		c.Keystone.Timeout = 10 * time.Second
	}
	if c.Providers.HTTPTimeout == 0 {
		c.Providers.HTTPTimeout = 10 * time.Second
	}
	if c.Providers.MaxPages == 0 {
		c.Providers.MaxPages = 200
	}
	if c.Providers.CallbackPath == "" {
		c.Providers.CallbackPath = "authentication_callback"
	}
	if c.Providers.Sina.TokenURL == "" {
		c.Providers.Sina.TokenURL = "https://api.weibo.com/oauth2/access_token"
	}
	if c.Providers.Sina.APIBase == "" {
		c.Providers.Sina.APIBase = "https://api.weibo.com"
	}
	if c.Providers.Tencent.TokenURL == "" {
		c.Providers.Tencent.TokenURL = "https://open.t.qq.com/cgi-bin/oauth2/access_token"
	}
	if c.Providers.Tencent.APIBase == "" {
		c.Providers.Tencent.APIBase = "http://open.t.qq.com"
	}
	if c.Auth.ProvisioningGrace == 0 {
		c.Auth.ProvisioningGrace = 5 * time.Minute
	}
}

// Validate revisa valores críticos. Devuelve todos los problemas juntos.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q not supported", c.Storage.Driver))
	}
	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			errs = append(errs, errors.New("cache.redis.addr is required for redis cache"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.kind %q not supported", c.Cache.Kind))
	}
	if c.Providers.MaxPages < 0 {
		errs = append(errs, errors.New("providers.max_pages must be >= 0"))
	}
	if c.Rate.Enabled && c.Rate.Limit < 0 {
		errs = append(errs, errors.New("rate.limit must be >= 0"))
	}
	if c.Auth.ProvisioningGrace < 0 {
		errs = append(errs, errors.New("auth.provisioning_grace must be >= 0"))
	}
	errs = append(errs, c.Providers.Sina.validate("providers.sina")...)
	errs = append(errs, c.Providers.Tencent.validate("providers.tencent")...)
	// sin providers habilitados no hay logins que lleguen a Keystone
	if c.Providers.Sina.Enabled || c.Providers.Tencent.Enabled {
		if c.Keystone.AuthURL == "" {
			errs = append(errs, errors.New("keystone.auth_url is required"))
		}
		if c.Keystone.AdminUser == "" || c.Keystone.AdminPassword == "" {
			errs = append(errs, errors.New("keystone.admin_user and keystone.admin_password are required"))
		}
	}
	if strings.EqualFold(c.App.Env, "prod") && len(c.Session.Secret) < 32 {
		errs = append(errs, errors.New("session.secret must be at least 32 bytes in prod"))
	}
	return errors.Join(errs...)
}

func (p ProviderConfig) validate(prefix string) []error {
	if !p.Enabled {
		return nil
	}
	var errs []error
	if p.AppKey == "" || p.AppSecret == "" {
		errs = append(errs, fmt.Errorf("%s.app_key and %s.app_secret are required", prefix, prefix))
	}
	if p.RequiredFollowerID == "" {
		errs = append(errs, fmt.Errorf("%s.required_follower_id is required", prefix))
	}
	return errs
}
