package tencent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/horizonauth/internal/social"
)

type fakeQQ struct {
	// mutual[i] son los names de la página i+1; después ret=5.
	mutual [][]string

	mu       sync.Mutex
	lastIP   string
	requests int
}

func (f *fakeQQ) ip() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastIP
}

func (f *fakeQQ) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeQQ) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		if q.Get("code") != "good-code" || q.Get("client_id") != "appid" {
			io.WriteString(w, "errorCode=1&errorMsg=invalid%20code")
			return
		}
		assert.Equal(t, "authorization_code", q.Get("grant_type"))
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "access_token=QQAT&expires_in=604800&refresh_token=R&name=qquser")
	})
	mux.HandleFunc(userInfoPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2.a", q.Get("oauth_version"))
		assert.Equal(t, "OPENID", q.Get("openid"))
		f.mu.Lock()
		f.lastIP = q.Get("clientip")
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ret": 0, "msg": "ok",
			"data": map[string]any{"name": "qquser", "email": ""},
		})
	})
	mux.HandleFunc(mutualListPath, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests++
		f.mu.Unlock()
		q := r.URL.Query()
		assert.Equal(t, "qquser", q.Get("name"))
		assert.Equal(t, "30", q.Get("reqnum"))
		start, _ := strconv.Atoi(q.Get("startindex"))
		page := start/PageSize + 1
		if page > len(f.mutual) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ret": 5, "msg": "no more data", "data": nil})
			return
		}
		info := make([]map[string]any, 0)
		for _, n := range f.mutual[page-1] {
			info = append(info, map[string]any{"name": n})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ret": 0, "data": map[string]any{"info": info}})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{
		AppID:     "appid",
		AppSecret: "secret",
		TokenURL:  srv.URL + "/cgi-bin/oauth2/access_token",
		APIBase:   srv.URL,
	})
}

func rc(forwarded string) social.RequestContext {
	u, _ := url.Parse("https://dash.example.com/auth/login")
	return social.RequestContext{URL: u, ForwardedFor: forwarded, RemoteAddr: "192.0.2.7:4321"}
}

func TestFetchProfile_ClientIP(t *testing.T) {
	t.Parallel()

	t.Run("uses X-Forwarded-For when present", func(t *testing.T) {
		f := &fakeQQ{}
		c := newTestClient(f.server(t))
		p, err := social.FetchProfile(context.Background(), c,
			social.TencentRequest{Code: "good-code", OpenID: "OPENID"}, rc("203.0.113.9"))
		require.NoError(t, err)
		assert.Equal(t, "qquser", p.ExternalID)
		assert.Equal(t, "", p.Email)
		assert.Equal(t, "QQAT", p.AccessToken)
		assert.Equal(t, "203.0.113.9", f.ip())
	})

	t.Run("falls back to remote address", func(t *testing.T) {
		f := &fakeQQ{}
		c := newTestClient(f.server(t))
		_, err := social.FetchProfile(context.Background(), c,
			social.TencentRequest{Code: "good-code", OpenID: "OPENID"}, rc(""))
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.7", f.ip())
	})
}

func TestExchange_Errors(t *testing.T) {
	t.Parallel()
	f := &fakeQQ{}
	c := newTestClient(f.server(t))

	_, err := social.FetchProfile(context.Background(), c,
		social.TencentRequest{Code: "bad", OpenID: "OPENID"}, rc(""))
	assert.ErrorIs(t, err, social.ErrProviderAuth)

	_, err = c.Exchange(context.Background(), social.TencentRequest{Code: "good-code"}, rc(""))
	assert.Error(t, err, "openid is required")
}

func TestValidator_Tencent(t *testing.T) {
	t.Parallel()

	t.Run("member on second page", func(t *testing.T) {
		f := &fakeQQ{mutual: [][]string{{"a", "b"}, {"ref"}}}
		c := newTestClient(f.server(t))
		tok := &social.Token{AccessToken: "QQAT", OpenID: "OPENID"}
		ok, err := social.NewValidator(0, nil).IsValidMember(context.Background(), c, tok, "qquser", "ref")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 3, f.count())
	})

	t.Run("ret 5 on first page means not a member", func(t *testing.T) {
		f := &fakeQQ{}
		c := newTestClient(f.server(t))
		tok := &social.Token{AccessToken: "QQAT", OpenID: "OPENID"}
		ok, err := social.NewValidator(0, nil).IsValidMember(context.Background(), c, tok, "qquser", "ref")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 1, f.count())
	})
}
