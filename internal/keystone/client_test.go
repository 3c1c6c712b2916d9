package keystone_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dropDatabas3/horizonauth/internal/keystone"
	"github.com/dropDatabas3/horizonauth/internal/keystone/keystonetest"
)

func adminToken(t *testing.T, c *keystone.Client) string {
	t.Helper()
	acc, err := c.Authenticate(context.Background(), keystone.Credentials{
		Username:   keystonetest.AdminUser,
		Password:   keystonetest.AdminPassword,
		TenantName: keystonetest.AdminTenant,
	})
	if err != nil {
		t.Fatalf("admin auth: %v", err)
	}
	if !acc.Scoped() {
		t.Fatal("admin token must be scoped")
	}
	if acc.Token.ExpiresAt().IsZero() {
		t.Fatalf("expires not parsed: %q", acc.Token.Expires)
	}
	return acc.Token.ID
}

func TestAuthenticate_BadPassword(t *testing.T) {
	srv := keystonetest.New()
	defer srv.Close()
	c := keystone.New(keystone.Config{AuthURL: srv.AuthURL()})

	_, err := c.Authenticate(context.Background(), keystone.Credentials{Username: "admin", Password: "nope"})
	if !errors.Is(err, keystone.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	var he *keystone.HTTPError
	if !errors.As(err, &he) || he.StatusCode != 401 {
		t.Fatalf("want *HTTPError 401, got %#v", err)
	}
}

func TestTenantUserRoleFlow(t *testing.T) {
	ctx := context.Background()
	srv := keystonetest.New()
	defer srv.Close()
	c := keystone.New(keystone.Config{AuthURL: srv.AuthURL()})
	tok := adminToken(t, c)

	tn, err := c.CreateTenant(ctx, tok, "sina_1", "Auto created account")
	if err != nil {
		t.Fatalf("CreateTenant: %v", err)
	}
	if _, err := c.CreateTenant(ctx, tok, "sina_1", "dup"); !errors.Is(err, keystone.ErrConflict) {
		t.Fatalf("duplicate tenant: want ErrConflict, got %v", err)
	}

	u, err := c.CreateUser(ctx, tok, keystone.NewUser{Name: "sina_1", Password: "pw", TenantID: tn.ID, Enabled: true})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	roles, err := c.ListRoles(ctx, tok)
	if err != nil || len(roles) == 0 {
		t.Fatalf("ListRoles: %v %v", roles, err)
	}
	if err := c.AddUserRole(ctx, tok, tn.ID, u.ID, "r-member"); err != nil {
		t.Fatalf("AddUserRole: %v", err)
	}
	if got := srv.Roles(tn.ID, u.ID); len(got) != 1 || got[0] != "r-member" {
		t.Fatalf("roles=%v", got)
	}

	got, err := c.GetUser(ctx, tok, u.ID)
	if err != nil || got.Name != "sina_1" {
		t.Fatalf("GetUser: %+v %v", got, err)
	}
	if _, err := c.GetUser(ctx, tok, "missing"); !errors.Is(err, keystone.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	// login del usuario final: unscoped, lista tenants, scoped
	acc, err := c.Authenticate(ctx, keystone.Credentials{Username: "sina_1", Password: "pw"})
	if err != nil || acc.Scoped() {
		t.Fatalf("unscoped auth: %+v %v", acc, err)
	}
	tenants, err := c.Tenants(ctx, acc.Token.ID)
	if err != nil || len(tenants) != 1 || tenants[0].Name != "sina_1" {
		t.Fatalf("Tenants: %+v %v", tenants, err)
	}
	scoped, err := c.Authenticate(ctx, keystone.Credentials{Username: "sina_1", Password: "pw", TenantID: tenants[0].ID})
	if err != nil || !scoped.Scoped() || scoped.Token.Tenant.ID != tn.ID {
		t.Fatalf("scoped auth: %+v %v", scoped, err)
	}
}

func TestTokenExpiresAt(t *testing.T) {
	for _, in := range []string{"2013-02-27T18:30:59Z", "2013-02-27T18:30:59.999999Z", "2013-02-27T18:30:59"} {
		if (keystone.Token{Expires: in}).ExpiresAt().IsZero() {
			t.Fatalf("could not parse %q", in)
		}
	}
	if !(keystone.Token{Expires: "garbage"}).ExpiresAt().IsZero() {
		t.Fatal("garbage must give zero time")
	}
}
