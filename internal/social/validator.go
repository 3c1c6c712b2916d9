package social

import (
	"context"

	"github.com/dropDatabas3/horizonauth/internal/observability/logger"
)

// DefaultMaxPages caps friend-list pagination.
const DefaultMaxPages = 200

// PageObserver is notified once per fetched page. Used for metrics.
type PageObserver func(provider Provider, outcome string)

// Validator decides whether an identity is a mutual friend of a reference
// account.
type Validator struct {
	MaxPages int
	Observe  PageObserver
}

// NewValidator creates a Validator. maxPages <= 0 selects DefaultMaxPages.
func NewValidator(maxPages int, observe PageObserver) *Validator {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Validator{MaxPages: maxPages, Observe: observe}
}

// IsValidMember walks the mutual-friend list of externalID page by page
// until the provider signals the end, and reports whether referenceID is
// in it.
//
// A page that fails to load ends the walk as if the list were exhausted.
// The only error returned is the context's.
func (v *Validator) IsValidMember(ctx context.Context, c Client, tok *Token, externalID, referenceID string) (bool, error) {
	log := logger.From(ctx).With(logger.Component("social.validator"), logger.Provider(c.Name().String()))

	maxPages := v.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	friends := make(map[string]struct{})
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		fp, err := c.FriendsPage(ctx, tok, externalID, page)
		if err != nil {
			log.Debug("friend page failed, stopping", logger.Page(page), logger.Err(err))
			v.observe(c.Name(), "error")
			break
		}
		if fp == nil || fp.Exhausted {
			v.observe(c.Name(), "exhausted")
			break
		}
		if len(fp.IDs) == 0 {
			v.observe(c.Name(), "empty")
			break
		}
		v.observe(c.Name(), "ok")
		for _, id := range fp.IDs {
			friends[id] = struct{}{}
		}
		if page == maxPages {
			log.Warn("friend list truncated", logger.Int("max_pages", maxPages))
		}
	}

	_, ok := friends[referenceID]
	log.Debug("membership checked",
		logger.ExternalID(externalID),
		logger.Count(len(friends)),
		logger.Bool("member", ok),
	)
	return ok, nil
}

func (v *Validator) observe(p Provider, outcome string) {
	if v.Observe != nil {
		v.Observe(p, outcome)
	}
}
