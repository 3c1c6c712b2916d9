// Package sina implements the Sina Weibo social.Client.
//
// Token exchange uses golang.org/x/oauth2 with credentials in the form body;
// the profile and bilateral-friends calls are plain GETs against API v2 with
// access_token in the query string.
package sina

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

	"golang.org/x/oauth2"

	"github.com/dropDatabas3/horizonauth/internal/social"
)

const (
	DefaultTokenURL = "https://api.weibo.com/oauth2/access_token"
	DefaultAPIBase  = "https://api.weibo.com"

	profilePath = "/2/account/profile/basic.json"
	friendsPath = "/2/friendships/friends/bilateral.json"
)

// Config for the Sina client.
type Config struct {
	AppKey    string
	AppSecret string
	TokenURL  string
	APIBase   string

	// CallbackPath is resolved against the request URL to build redirect_uri.
	CallbackPath string

	Timeout time.Duration
}

// Client is the Sina Weibo client.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ social.Client = (*Client)(nil)

// New creates a Sina client.
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

func (c *Client) Name() social.Provider { return social.ProviderSina }

func (c *Client) Messages() social.Messages {
	return social.Messages{
		Unauthorized: "Your SinaID is not authorized to login.",
		NotFollowed:  "Your sinaID is not followed by %s yet.",
	}
}

func (c *Client) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.AppKey,
		ClientSecret: c.cfg.AppSecret,
		RedirectURL:  redirectURI,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// Exchange trades the code for an access token.
func (c *Client) Exchange(ctx context.Context, req social.LoginRequest, rc social.RequestContext) (*social.Token, error) {
	r, ok := req.(social.SinaRequest)
	if !ok {
		return nil, fmt.Errorf("sina: unexpected request type %T", req)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	tok, err := c.oauthConfig(rc.RedirectURI(c.cfg.CallbackPath)).Exchange(ctx, r.Code)
	if err != nil {
		return nil, fmt.Errorf("sina: exchange: %w", err)
	}

	out := &social.Token{AccessToken: tok.AccessToken, ExpiresIn: tok.ExpiresIn}
	if out.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		out.ExpiresIn = int64(time.Until(tok.Expiry).Seconds())
	}
	return out, nil
}

// apiError is the error envelope of API v2.
type apiError struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

type profileResponse struct {
	apiError
	ID    social.ID `json:"id"`
	Email string    `json:"email"`
}

// Profile reads /2/account/profile/basic.json. Both id and email are required.
func (c *Client) Profile(ctx context.Context, tok *social.Token) (*social.Profile, error) {
	var pr profileResponse
	if err := c.get(ctx, profilePath, tok, nil, &pr); err != nil {
		return nil, err
	}
	if pr.ErrorCode != 0 || pr.Error != "" {
		return nil, fmt.Errorf("sina api error %d: %s", pr.ErrorCode, pr.Error)
	}
	if pr.ID == "" {
		return nil, fmt.Errorf("sina: profile without id")
	}
	if pr.Email == "" {
		return nil, fmt.Errorf("sina: profile without email")
	}
	return &social.Profile{
		Provider:   social.ProviderSina,
		ExternalID: pr.ID.String(),
		Email:      pr.Email,
	}, nil
}

type friendsResponse struct {
	apiError
	Users []struct {
		ID social.ID `json:"id"`
	} `json:"users"`
	TotalNumber *int `json:"total_number"`
}

// FriendsPage reads one page of bilateral friends. total_number == 0 means
// the list is exhausted.
func (c *Client) FriendsPage(ctx context.Context, tok *social.Token, externalID string, page int) (*social.FriendPage, error) {
	q := url.Values{}
	q.Set("uid", externalID)
	q.Set("page", strconv.Itoa(page))

	var fr friendsResponse
	if err := c.get(ctx, friendsPath, tok, q, &fr); err != nil {
		return nil, err
	}
	if fr.ErrorCode != 0 || fr.Error != "" {
		return nil, fmt.Errorf("sina api error %d: %s", fr.ErrorCode, fr.Error)
	}
	if fr.TotalNumber == nil {
		return nil, fmt.Errorf("sina: friends response without total_number")
	}
	if *fr.TotalNumber == 0 {
		return &social.FriendPage{Exhausted: true}, nil
	}

	ids := make([]string, 0, len(fr.Users))
	for _, u := range fr.Users {
		if u.ID != "" {
			ids = append(ids, u.ID.String())
		}
	}
	return &social.FriendPage{IDs: ids}, nil
}

func (c *Client) get(ctx context.Context, path string, tok *social.Token, q url.Values, out any) error {
	if q == nil {
		q = url.Values{}
	}
	q.Set("access_token", tok.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBase+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	// Sina devuelve 4xx con el mismo envelope de error; se decodifica igual.
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("sina: decode %s (status %d): %w", path, resp.StatusCode, err)
	}
	if resp.StatusCode >= 400 {
		var ae apiError
		_ = json.Unmarshal(body, &ae)
		return fmt.Errorf("sina api error: status %d: %s", resp.StatusCode, ae.Error)
	}
	return nil
}
