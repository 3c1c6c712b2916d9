// Package tencent implements the Tencent Weibo social.Client.
//
// Tencent's OAuth 2.a endpoints are not RFC 6749: the token endpoint is a
// GET that answers with a URL-encoded body, and every API call needs the
// caller's openid and client IP next to the access token.
package tencent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/horizonauth/internal/social"
)

const (
	DefaultTokenURL = "https://open.t.qq.com/cgi-bin/oauth2/access_token"
	DefaultAPIBase  = "http://open.t.qq.com"

	userInfoPath   = "/api/user/info"
	mutualListPath = "/api/friends/mutual_list"

	// PageSize es el reqnum que se pide por página.
	PageSize = 30

	// retNoMoreData es el ret con el que mutual_list marca el final.
	retNoMoreData = 5
)

// Config for the Tencent client.
type Config struct {
	AppID     string
	AppSecret string
	TokenURL  string
	APIBase   string

	CallbackPath string
	Timeout      time.Duration
}

// Client is the Tencent Weibo client.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ social.Client = (*Client)(nil)

// New creates a Tencent client.
func New(cfg Config) *Client {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.CallbackPath == "" {
		cfg.CallbackPath = "authentication_callback"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) Name() social.Provider { return social.ProviderTencent }

func (c *Client) Messages() social.Messages {
	return social.Messages{
		Unauthorized: "You QQ is not authorized to login.",
		NotFollowed:  "Your TencentID is not followed by %s yet.",
	}
}

// Exchange calls the token endpoint. The response body is a query string
// (access_token=...&expires_in=...&refresh_token=...).
func (c *Client) Exchange(ctx context.Context, req social.LoginRequest, rc social.RequestContext) (*social.Token, error) {
	r, ok := req.(social.TencentRequest)
	if !ok {
		return nil, fmt.Errorf("tencent: unexpected request type %T", req)
	}
	if r.OpenID == "" {
		return nil, fmt.Errorf("tencent: openid is required")
	}

	q := url.Values{}
	q.Set("client_id", c.cfg.AppID)
	q.Set("client_secret", c.cfg.AppSecret)
	q.Set("redirect_uri", rc.RedirectURI(c.cfg.CallbackPath))
	q.Set("grant_type", "authorization_code")
	q.Set("code", r.Code)

	body, status, err := c.do(ctx, c.cfg.TokenURL, q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("tencent token error: status %d", status)
	}

	vals, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("tencent: parse token response: %w", err)
	}
	at := vals.Get("access_token")
	if at == "" {
		return nil, fmt.Errorf("tencent: no access_token in response (errorCode=%s)", vals.Get("errorCode"))
	}

	exp, _ := strconv.ParseInt(vals.Get("expires_in"), 10, 64)
	return &social.Token{
		AccessToken: at,
		ExpiresIn:   exp,
		OpenID:      r.OpenID,
		ClientIP:    rc.ClientIP(),
	}, nil
}

type envelope struct {
	Ret     int             `json:"ret"`
	ErrCode int             `json:"errcode"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

type userInfo struct {
	Name  social.ID `json:"name"`
	Email string    `json:"email"`
}

// Profile reads /api/user/info. data.name is the external id; email is
// optional.
func (c *Client) Profile(ctx context.Context, tok *social.Token) (*social.Profile, error) {
	env, err := c.api(ctx, userInfoPath, tok, nil)
	if err != nil {
		return nil, err
	}
	if env.Ret != 0 {
		return nil, fmt.Errorf("tencent api error: ret=%d errcode=%d msg=%s", env.Ret, env.ErrCode, env.Msg)
	}
	var u userInfo
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("tencent: user info without data")
	}
	if err := json.Unmarshal(env.Data, &u); err != nil {
		return nil, fmt.Errorf("tencent: decode user info: %w", err)
	}
	if u.Name == "" {
		return nil, fmt.Errorf("tencent: user info without name")
	}
	return &social.Profile{
		Provider:   social.ProviderTencent,
		ExternalID: u.Name.String(),
		Email:      u.Email,
	}, nil
}

type mutualList struct {
	Info []struct {
		Name social.ID `json:"name"`
	} `json:"info"`
}

// FriendsPage reads one page of mutual friends of externalID. ret == 5 means
// there is nothing left.
func (c *Client) FriendsPage(ctx context.Context, tok *social.Token, externalID string, page int) (*social.FriendPage, error) {
	q := url.Values{}
	q.Set("name", externalID)
	q.Set("startindex", strconv.Itoa(PageSize*(page-1)))
	q.Set("reqnum", strconv.Itoa(PageSize))
	q.Set("install", "0")

	env, err := c.api(ctx, mutualListPath, tok, q)
	if err != nil {
		return nil, err
	}
	if env.Ret == retNoMoreData {
		return &social.FriendPage{Exhausted: true}, nil
	}
	if env.Ret != 0 {
		return nil, fmt.Errorf("tencent api error: ret=%d errcode=%d msg=%s", env.Ret, env.ErrCode, env.Msg)
	}

	var ml mutualList
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &ml); err != nil {
			return nil, fmt.Errorf("tencent: decode mutual_list: %w", err)
		}
	}
	ids := make([]string, 0, len(ml.Info))
	for _, f := range ml.Info {
		if f.Name != "" {
			ids = append(ids, f.Name.String())
		}
	}
	return &social.FriendPage{IDs: ids}, nil
}

// api agrega los parámetros comunes de OAuth 2.a y decodifica el envelope.
func (c *Client) api(ctx context.Context, path string, tok *social.Token, q url.Values) (*envelope, error) {
	if q == nil {
		q = url.Values{}
	}
	q.Set("format", "json")
	q.Set("oauth_consumer_key", c.cfg.AppID)
	q.Set("access_token", tok.AccessToken)
	q.Set("openid", tok.OpenID)
	q.Set("clientip", tok.ClientIP)
	q.Set("oauth_version", "2.a")
	q.Set("scope", "all")

	body, status, err := c.do(ctx, c.cfg.APIBase+path, q)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("tencent api error: status %d", status)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("tencent: decode %s: %w", path, err)
	}
	return &env, nil
}

func (c *Client) do(ctx context.Context, endpoint string, q url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
