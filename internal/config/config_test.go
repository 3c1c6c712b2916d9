package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":8080" {
		t.Fatalf("addr=%q", c.Server.Addr)
	}
	if c.Session.CookieName != "hz_session" {
		t.Fatalf("cookie=%q", c.Session.CookieName)
	}
	if c.Providers.HTTPTimeout != 10*time.Second {
		t.Fatalf("http_timeout=%v", c.Providers.HTTPTimeout)
	}
	if c.Providers.MaxPages != 200 {
		t.Fatalf("max_pages=%d", c.Providers.MaxPages)
	}
	if c.Auth.ProvisioningGrace != 5*time.Minute {
		t.Fatalf("grace=%v", c.Auth.ProvisioningGrace)
	}
	if c.Providers.CallbackPath != "authentication_callback" {
		t.Fatalf("callback=%q", c.Providers.CallbackPath)
	}
}

func TestLoad_YAMLAndEnvOverride(t *testing.T) {
	p := writeYAML(t, `
server:
  addr: ":9000"
keystone:
  auth_url: "http://ks:5000/v2.0"
  member_role: "Member"
providers:
  max_pages: 5
  sina:
    app_key: "yaml-key"
    required_follower_id: "1001"
`)
	t.Setenv("HZ_SINA_APP_KEY", "env-key")
	t.Setenv("HZ_PROVIDERS_HTTP_TIMEOUT", "3s")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Addr != ":9000" {
		t.Fatalf("addr=%q", c.Server.Addr)
	}
	if c.Providers.Sina.AppKey != "env-key" {
		t.Fatalf("env override not applied: %q", c.Providers.Sina.AppKey)
	}
	if c.Providers.Sina.RequiredFollowerID != "1001" {
		t.Fatalf("follower=%q", c.Providers.Sina.RequiredFollowerID)
	}
	if c.Providers.HTTPTimeout != 3*time.Second {
		t.Fatalf("timeout=%v", c.Providers.HTTPTimeout)
	}
	if c.Providers.MaxPages != 5 {
		t.Fatalf("max_pages=%d", c.Providers.MaxPages)
	}
	// admin_url cae a auth_url
	if c.Keystone.AdminURL != "http://ks:5000/v2.0" {
		t.Fatalf("admin_url=%q", c.Keystone.AdminURL)
	}
	if c.Keystone.MemberRole != "Member" {
		t.Fatalf("role=%q", c.Keystone.MemberRole)
	}
}

func TestValidate(t *testing.T) {
	p := writeYAML(t, `
storage:
  driver: "mongo"
cache:
  kind: "redis"
`)
	_, err := Load(p)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"storage.driver", "cache.redis.addr"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

func TestValidate_EnabledProviderRequiresCredentials(t *testing.T) {
	p := writeYAML(t, `
providers:
  sina:
    enabled: true
`)
	_, err := Load(p)
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{
		"providers.sina.app_key",
		"providers.sina.required_follower_id",
		"keystone.auth_url",
		"keystone.admin_user",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
	if strings.Contains(msg, "providers.tencent") {
		t.Fatalf("disabled provider validated: %q", msg)
	}
}

func TestValidate_CompleteProvider(t *testing.T) {
	p := writeYAML(t, `
keystone:
  auth_url: "http://ks:5000/v2.0"
  admin_user: "admin"
  admin_password: "secret"
providers:
  tencent:
    enabled: true
    app_key: "k"
    app_secret: "s"
    required_follower_id: "horizon"
`)
	if _, err := Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}

	p = writeYAML(t, `
keystone:
  auth_url: "http://ks:5000/v2.0"
  admin_user: "admin"
providers:
  tencent:
    enabled: true
    app_key: "k"
    required_follower_id: "horizon"
`)
	_, err := Load(p)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"keystone.admin_password", "providers.tencent.app_secret"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestValidate_ProdRequiresSecret(t *testing.T) {
	t.Setenv("HZ_APP_ENV", "prod")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "session.secret") {
		t.Fatalf("expected session.secret error, got %v", err)
	}
}
