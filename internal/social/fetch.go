package social

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// FetchProfile exchanges the request's code and reads the caller's
// profile. Every failure wraps ErrProviderAuth.
func FetchProfile(ctx context.Context, c Client, req LoginRequest, rc RequestContext) (*Profile, error) {
	log := logger.From(ctx).With(logger.Component("social.fetch"), logger.Provider(c.Name().String()))

	if req == nil || req.AuthCode() == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrProviderAuth)
	}
	if req.Provider() != c.Name() {
		return nil, fmt.Errorf("%w: %s request sent to %s client", ErrProviderAuth, req.Provider(), c.Name())
	}

	tok, err := c.Exchange(ctx, req, rc)
	if err != nil {
		log.Warn("token exchange failed", logger.Err(err))
		return nil, fmt.Errorf("%w: exchange: %v", ErrProviderAuth, err)
	}

	p, err := c.Profile(ctx, tok)
	if err != nil {
		log.Warn("profile fetch failed", logger.Err(err))
		return nil, fmt.Errorf("%w: profile: %v", ErrProviderAuth, err)
	}
	if p.ExternalID == "" {
		return nil, fmt.Errorf("%w: profile without id", ErrProviderAuth)
	}
	p.Provider = c.Name()
	p.Token = tok
	p.AccessToken = tok.AccessToken
	return p, nil
}
