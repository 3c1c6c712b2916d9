package sina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/horizonauth/internal/social"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fakeWeibo sirve token, perfil y amigos bilaterales paginados.
func fakeWeibo(t *testing.T, pages [][]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("client_id") != "key" || r.PostForm.Get("client_secret") != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_client", "error_code": 21324})
			return
		}
		if r.PostForm.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_code": 21325})
			return
		}
		assert.Equal(t, "https://dash.example.com/auth/authentication_callback", r.PostForm.Get("redirect_uri"))
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "AT", "expires_in": 157679999, "uid": "123",
		})
	})
	mux.HandleFunc(profilePath, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "AT" {
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "invalid token", "error_code": 21332})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": 123, "email": "u@example.com"})
	})
	mux.HandleFunc(friendsPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "123", r.URL.Query().Get("uid"))
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 || page > len(pages) {
			writeJSON(w, http.StatusOK, map[string]any{"users": []any{}, "total_number": 0})
			return
		}
		users := make([]map[string]any, 0, len(pages[page-1]))
		for _, id := range pages[page-1] {
			users = append(users, map[string]any{"id": id})
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users, "total_number": 999})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{
		AppKey:    "key",
		AppSecret: "secret",
		TokenURL:  srv.URL + "/oauth2/access_token",
		APIBase:   srv.URL,
	})
}

func requestContext() social.RequestContext {
	u, _ := url.Parse("https://dash.example.com/auth/login?code=good-code")
	return social.RequestContext{URL: u, RemoteAddr: "10.0.0.1:5555"}
}

func TestFetchProfile(t *testing.T) {
	t.Parallel()
	srv := fakeWeibo(t, nil)
	c := newTestClient(srv)

	t.Run("exchanges code and reads profile", func(t *testing.T) {
		p, err := social.FetchProfile(context.Background(), c, social.SinaRequest{Code: "good-code"}, requestContext())
		require.NoError(t, err)
		assert.Equal(t, "123", p.ExternalID)
		assert.Equal(t, "u@example.com", p.Email)
		assert.Equal(t, "AT", p.AccessToken)
		assert.Equal(t, social.ProviderSina, p.Provider)
		assert.Equal(t, int64(157679999), p.Token.ExpiresIn)
	})

	t.Run("bad code is a provider auth error", func(t *testing.T) {
		_, err := social.FetchProfile(context.Background(), c, social.SinaRequest{Code: "bad"}, requestContext())
		assert.ErrorIs(t, err, social.ErrProviderAuth)
	})

	t.Run("tencent request is refused", func(t *testing.T) {
		_, err := social.FetchProfile(context.Background(), c, social.TencentRequest{Code: "good-code", OpenID: "o"}, requestContext())
		assert.ErrorIs(t, err, social.ErrProviderAuth)
	})
}

func TestProfile_MissingEmail(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"id": 9})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Profile(context.Background(), &social.Token{AccessToken: "AT"})
	assert.Error(t, err)
}

func TestFriendsPage(t *testing.T) {
	t.Parallel()
	srv := fakeWeibo(t, [][]any{{1, 2}, {"3", 1001}})
	c := newTestClient(srv)
	tok := &social.Token{AccessToken: "AT"}

	p1, err := c.FriendsPage(context.Background(), tok, "123", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, p1.IDs)
	assert.False(t, p1.Exhausted)

	p3, err := c.FriendsPage(context.Background(), tok, "123", 3)
	require.NoError(t, err)
	assert.True(t, p3.Exhausted)
}

func TestValidator_Sina(t *testing.T) {
	t.Parallel()
	srv := fakeWeibo(t, [][]any{{1, 2}, {"3", 1001}})
	c := newTestClient(srv)
	v := social.NewValidator(0, nil)
	tok := &social.Token{AccessToken: "AT"}

	ok, err := v.IsValidMember(context.Background(), c, tok, "123", "1001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.IsValidMember(context.Background(), c, tok, "123", "4242")
	require.NoError(t, err)
	assert.False(t, ok)
}
