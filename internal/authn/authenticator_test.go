package authn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/horizonauth/internal/domain/repository"
	"github.com/dropDatabas3/horizonauth/internal/keystone"
	"github.com/dropDatabas3/horizonauth/internal/keystone/keystonetest"
	"github.com/dropDatabas3/horizonauth/internal/messages"
	"github.com/dropDatabas3/horizonauth/internal/provisioning"
	"github.com/dropDatabas3/horizonauth/internal/social"
	"github.com/dropDatabas3/horizonauth/internal/store"
	_ "github.com/dropDatabas3/horizonauth/internal/store/adapters/sqlite"
)

const refID = "1001"

// fakeProvider es un social.Client en memoria.
type fakeProvider struct {
	name      social.Provider
	texts     social.Messages
	mu        sync.Mutex
	id        string
	email     string
	token     string
	tokens    map[string]string // por código de autorización
	friends   [][]string
	failAuth  bool
	pageCalls int
}

func (f *fakeProvider) Name() social.Provider     { return f.name }
func (f *fakeProvider) Messages() social.Messages { return f.texts }

func (f *fakeProvider) Exchange(_ context.Context, req social.LoginRequest, _ social.RequestContext) (*social.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAuth {
		return nil, errors.New("invalid code")
	}
	if tok, ok := f.tokens[req.AuthCode()]; ok {
		return &social.Token{AccessToken: tok}, nil
	}
	return &social.Token{AccessToken: f.token}, nil
}

func (f *fakeProvider) Profile(context.Context, *social.Token) (*social.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &social.Profile{ExternalID: f.id, Email: f.email}, nil
}

func (f *fakeProvider) FriendsPage(_ context.Context, _ *social.Token, _ string, page int) (*social.FriendPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	if page > len(f.friends) {
		return &social.FriendPage{Exhausted: true}, nil
	}
	return &social.FriendPage{IDs: f.friends[page-1]}, nil
}

func (f *fakeProvider) setToken(tok string) {
	f.mu.Lock()
	f.token = tok
	f.mu.Unlock()
}

// countingIdentities cuenta las mutaciones del repositorio y registra los
// access tokens escritos. delay y failUpdate se setean antes de loguear.
type countingIdentities struct {
	repository.ExternalIdentityRepository
	creates, updates, deletes atomic.Int32

	delay      time.Duration
	failUpdate error

	mu      sync.Mutex
	written []string
}

func (c *countingIdentities) Create(ctx context.Context, r *repository.ExternalIdentity) error {
	c.creates.Add(1)
	c.record(r.AccessToken)
	return c.ExternalIdentityRepository.Create(ctx, r)
}

func (c *countingIdentities) Update(ctx context.Context, r *repository.ExternalIdentity) error {
	c.updates.Add(1)
	if c.failUpdate != nil {
		return c.failUpdate
	}
	time.Sleep(c.delay)
	c.record(r.AccessToken)
	return c.ExternalIdentityRepository.Update(ctx, r)
}

func (c *countingIdentities) record(tok string) {
	c.mu.Lock()
	c.written = append(c.written, tok)
	c.mu.Unlock()
}

func (c *countingIdentities) tokens() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

func (c *countingIdentities) Delete(ctx context.Context, id string) error {
	c.deletes.Add(1)
	return c.ExternalIdentityRepository.Delete(ctx, id)
}

func (c *countingIdentities) mutations() int32 {
	return c.creates.Load() + c.updates.Load() + c.deletes.Load()
}

type harness struct {
	auth    *Authenticator
	ks      *keystonetest.Server
	ids     *countingIdentities
	users   repository.LocalUserRepository
	sina    *fakeProvider
	tencent *fakeProvider
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	conn, err := store.Open(ctx, store.AdapterConfig{Name: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = store.Migrate(ctx, conn)
	require.NoError(t, err)

	ks := keystonetest.New()
	t.Cleanup(ks.Close)
	client := keystone.New(keystone.Config{AuthURL: ks.AuthURL()})
	admin := keystone.Credentials{
		Username:   keystonetest.AdminUser,
		Password:   keystonetest.AdminPassword,
		TenantName: keystonetest.AdminTenant,
	}

	h := &harness{
		ks:    ks,
		ids:   &countingIdentities{ExternalIdentityRepository: conn.Identities()},
		users: conn.LocalUsers(),
		sina: &fakeProvider{
			name:    social.ProviderSina,
			texts:   social.Messages{Unauthorized: "Your SinaID is not authorized to login.", NotFollowed: "Your sinaID is not followed by %s yet."},
			id:      "123",
			email:   "u@example.com",
			token:   "at-1",
			friends: [][]string{{"9", refID}},
		},
		tencent: &fakeProvider{
			name:  social.ProviderTencent,
			texts: social.Messages{Unauthorized: "You QQ is not authorized to login.", NotFollowed: "Your TencentID is not followed by %s yet."},
			id:    "qquser",
			token: "qq-at",
		},
		now: time.Now(),
	}
	h.auth = New(Config{
		ReferenceIDs: map[social.Provider]string{
			social.ProviderSina:    refID,
			social.ProviderTencent: refID,
		},
		ProvisioningGrace: 5 * time.Minute,
		Admin:             admin,
	}, Deps{
		Providers:   []social.Client{h.sina, h.tencent},
		Identities:  h.ids,
		LocalUsers:  h.users,
		Provisioner: provisioning.New(client, provisioning.Config{Admin: admin, MemberRole: keystonetest.MemberRole}),
		Keystone:    client,
		Now:         func() time.Time { return h.now },
	})
	return h
}

func (h *harness) login(openid string) (*Session, []string, error) {
	return h.loginCode("code", openid)
}

func (h *harness) loginCode(code, openid string) (*Session, []string, error) {
	ctx, rec := messages.WithRecorder(context.Background())
	sess, err := h.auth.Authenticate(ctx, social.NewLoginRequest(code, openid), social.RequestContext{RemoteAddr: "127.0.0.1:1"})
	return sess, rec.Texts(), err
}

func countCalls(calls []string, step string) int {
	n := 0
	for _, c := range calls {
		if c == step {
			n++
		}
	}
	return n
}

func TestFirstSinaLogin_Provisions(t *testing.T) {
	h := newHarness(t)

	sess, msgs, err := h.login("")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, "sina_123", sess.Username)
	assert.Equal(t, PathNewlyProvisioned, sess.Path)
	assert.Equal(t, social.ProviderSina, sess.Provider)
	assert.NotEmpty(t, sess.Token)

	rec, err := h.ids.GetByExternalID(context.Background(), "123")
	require.NoError(t, err)
	assert.True(t, rec.Provisioned())
	assert.Equal(t, sess.TenantID, rec.TenantID)
	assert.Equal(t, h.ks.TenantByName("sina_123"), rec.TenantID)
	assert.Len(t, rec.Password, 8)
	assert.Equal(t, "at-1", rec.AccessToken)

	assert.Equal(t, 1, countCalls(h.ks.Calls(), "create_tenant"))
	assert.Equal(t, 1, countCalls(h.ks.Calls(), "create_user"))
	assert.Equal(t, 1, countCalls(h.ks.Calls(), "add_role"))
}

func TestSecondSinaLogin_ReusesPassword(t *testing.T) {
	h := newHarness(t)
	first, _, err := h.login("")
	require.NoError(t, err)
	before, err := h.ids.GetByExternalID(context.Background(), "123")
	require.NoError(t, err)

	h.sina.setToken("at-2")
	second, _, err := h.login("")
	require.NoError(t, err)
	assert.Equal(t, PathExisting, second.Path)
	assert.Equal(t, first.TenantID, second.TenantID)

	after, err := h.ids.GetByExternalID(context.Background(), "123")
	require.NoError(t, err)
	assert.Equal(t, "at-2", after.AccessToken)
	assert.Equal(t, before.Password, after.Password)
	assert.Equal(t, before.TenantID, after.TenantID)
	assert.Equal(t, 1, countCalls(h.ks.Calls(), "create_tenant"))
}

func TestTencentNotMember_Rejected(t *testing.T) {
	h := newHarness(t)

	sess, msgs, err := h.login("openid-1")
	assert.Nil(t, sess)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, ErrNotAMember)
	assert.Equal(t, []string{"Your TencentID is not followed by 1001 yet."}, msgs)
	assert.Equal(t, 1, h.tencent.pageCalls)
	assert.Zero(t, h.ids.mutations())
	assert.Zero(t, countCalls(h.ks.Calls(), "create_tenant"))
}

func TestDispatchByOpenID(t *testing.T) {
	h := newHarness(t)
	h.tencent.friends = [][]string{{refID}}

	sess, _, err := h.login("openid-1")
	require.NoError(t, err)
	assert.Equal(t, "tencent_qquser", sess.Username)
	assert.Equal(t, social.ProviderTencent, sess.Provider)
	assert.Zero(t, h.sina.pageCalls)
}

func TestProviderAuthFailure(t *testing.T) {
	h := newHarness(t)
	h.sina.failAuth = true

	_, msgs, err := h.login("")
	assert.ErrorIs(t, err, social.ErrProviderAuth)
	assert.Equal(t, []string{"Your SinaID is not authorized to login."}, msgs)
	assert.Zero(t, h.ids.mutations())
}

func TestProvisioningFailure_DeletesRecord(t *testing.T) {
	h := newHarness(t)
	h.ks.Fail("create_user")

	_, msgs, err := h.login("")
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, provisioning.ErrProvisioning)
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "Failed to login: "))

	_, err = h.ids.GetByExternalID(context.Background(), "123")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.EqualValues(t, 1, h.ids.deletes.Load())
	// sin login contra Keystone después de la limpieza
	assert.Zero(t, countCalls(h.ks.Calls(), "user_tokens"))
}

func TestUsernameCollision_ReplacesStaleAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stale, err := h.users.Create(ctx, "sina_123", "old@example.com")
	require.NoError(t, err)

	_, _, err = h.login("")
	require.NoError(t, err)

	u, err := h.users.GetByUsername(ctx, "sina_123")
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, u.ID)
	_, err = h.users.GetByID(ctx, stale.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	rec, err := h.ids.GetByExternalID(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, rec.LocalUserID)
}

func TestIncompleteRecord(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u, err := h.users.Create(ctx, "sina_123", "")
	require.NoError(t, err)
	require.NoError(t, h.ids.ExternalIdentityRepository.Create(ctx, &repository.ExternalIdentity{
		ExternalID: "123", Provider: "sina", LocalUserID: u.ID, Password: "halfdone",
	}))

	_, msgs, err := h.login("")
	assert.ErrorIs(t, err, ErrSetupInProgress)
	assert.Equal(t, []string{"Failed to login: account setup still in progress"}, msgs)

	// vencido el período de gracia se rehace la cuenta
	h.now = h.now.Add(10 * time.Minute)
	sess, _, err := h.login("")
	require.NoError(t, err)
	assert.Equal(t, PathNewlyProvisioned, sess.Path)

	rec, err := h.ids.GetByExternalID(ctx, "123")
	require.NoError(t, err)
	assert.True(t, rec.Provisioned())
	assert.NotEqual(t, "halfdone", rec.Password)
}

func TestIdentityServiceLoginFailure(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.login("")
	require.NoError(t, err)

	h.ks.SetPassword("sina_123", "rotated")
	_, msgs, err := h.login("")
	assert.ErrorIs(t, err, ErrIdentityServiceAuth)
	assert.ErrorIs(t, err, keystone.ErrUnauthorized)
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "Failed to login: "))
}

func TestConcurrentFirstLogin_SingleProvision(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	errs := make([]error, 6)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = h.login("")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, countCalls(h.ks.Calls(), "create_tenant"))
}

func TestConcurrentFirstLogin_EveryTokenPersisted(t *testing.T) {
	h := newHarness(t)
	codes := []string{"c1", "c2", "c3", "c4"}
	h.sina.tokens = map[string]string{}
	for _, c := range codes {
		h.sina.tokens[c] = "tok-" + c
	}
	h.ids.delay = 50 * time.Millisecond

	var wg sync.WaitGroup
	errs := make([]error, len(codes))
	for i, c := range codes {
		wg.Add(1)
		go func(i int, c string) {
			defer wg.Done()
			_, _, errs[i] = h.loginCode(c, "")
		}(i, c)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, countCalls(h.ks.Calls(), "create_tenant"))
	written := h.ids.tokens()
	for _, c := range codes {
		assert.Contains(t, written, "tok-"+c)
	}
}

func TestConcurrentRelogin_EachTokenWritten(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.login("")
	require.NoError(t, err)

	h.sina.tokens = map[string]string{"A": "tok-A", "B": "tok-B"}
	h.ids.delay = 300 * time.Millisecond
	before := h.ids.updates.Load()

	var wg sync.WaitGroup
	paths := make([]string, 2)
	errs := make([]error, 2)
	for i, code := range []string{"A", "B"} {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			var sess *Session
			sess, _, errs[i] = h.loginCode(code, "")
			if sess != nil {
				paths[i] = sess.Path
			}
		}(i, code)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, []string{PathExisting, PathExisting}, paths)
	assert.EqualValues(t, 2, h.ids.updates.Load()-before)

	written := h.ids.tokens()
	assert.Contains(t, written, "tok-A")
	assert.Contains(t, written, "tok-B")

	rec, err := h.ids.GetByExternalID(context.Background(), "123")
	require.NoError(t, err)
	assert.Contains(t, []string{"tok-A", "tok-B"}, rec.AccessToken)
}

func TestTenantUpdateFailure_DeletesRecord(t *testing.T) {
	h := newHarness(t)
	h.ids.failUpdate = errors.New("disk full")

	_, msgs, err := h.login("")
	assert.ErrorIs(t, err, ErrRejected)
	require.Len(t, msgs, 1)
	assert.True(t, strings.HasPrefix(msgs[0], "Failed to login: "))

	// el alta en Keystone terminó, pero el registro local se descarta
	assert.Equal(t, 1, countCalls(h.ks.Calls(), "add_role"))
	_, err = h.ids.GetByExternalID(context.Background(), "123")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.EqualValues(t, 1, h.ids.deletes.Load())
	assert.Zero(t, countCalls(h.ks.Calls(), "user_tokens"))
}

func TestGetUser(t *testing.T) {
	h := newHarness(t)
	sess, _, err := h.login("")
	require.NoError(t, err)

	u, err := h.auth.GetUser(context.Background(), sess.UserID)
	require.NoError(t, err)
	assert.Equal(t, "sina_123", u.Name)
}
