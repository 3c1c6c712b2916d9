// Package social implements the external-identity side of login: code
// exchange and profile fetch per provider, and the mutual-friend check
// that gates access.
//
// Cada provider vive en su subpaquete (sina, tencent) e implementa Client.
// Las diferencias de paginación quedan dentro de FriendsPage; el loop de
// Validator es común.
package social

import (
	"context"
	"errors"
)

// Provider identifies a social identity provider.
type Provider string

const (
	ProviderSina    Provider = "sina"
	ProviderTencent Provider = "tencent"
)

func (p Provider) String() string { return string(p) }

// ErrProviderAuth indica que el token exchange o el profile fetch fallaron.
var ErrProviderAuth = errors.New("provider authentication failed")

// Token is the provider session obtained from a code exchange.
type Token struct {
	AccessToken string
	ExpiresIn   int64

	// OpenID and ClientIP are only used by Tencent, which requires both on
	// every API call.
	OpenID   string
	ClientIP string
}

// Profile is the identity facts returned by a provider.
type Profile struct {
	Provider    Provider
	ExternalID  string
	Email       string
	AccessToken string
	Token       *Token

	// Valid is set after the social-graph check.
	Valid bool
}

// FriendPage is one page of the mutual-friend list.
type FriendPage struct {
	IDs []string

	// Exhausted is the provider's own end-of-list signal for this page.
	// When true, IDs is ignored.
	Exhausted bool
}

// Messages are the user-facing texts a provider surfaces on rejection.
type Messages struct {
	Unauthorized string
	// NotFollowed is a format string taking the reference account id.
	NotFollowed string
}

// Client is the provider capability used by the authenticator.
type Client interface {
	Name() Provider

	// Exchange trades the request's authorization code for a token.
	Exchange(ctx context.Context, req LoginRequest, rc RequestContext) (*Token, error)

	// Profile fetches the caller's id and email.
	Profile(ctx context.Context, tok *Token) (*Profile, error)

	// FriendsPage fetches page (1-based) of the mutual friends of externalID.
	FriendsPage(ctx context.Context, tok *Token, externalID string, page int) (*FriendPage, error)

	Messages() Messages
}
