// Package credentials resolves the Graph API access token a channel sends with.
package credentials

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrNoCredential means no tier produced a token; the send must be abandoned.
var ErrNoCredential = errors.New("credentials: no access token for alias")

// Strategy is one resolution tier. ok=false passes the lookup on to the next tier.
type Strategy interface {
	Name() string
	Resolve(ctx context.Context, tenantID, alias string) (token string, ok bool, err error)
}

// SecretLookup is the external secret store consulted by the alias tiers.
type SecretLookup interface {
	Lookup(name string) (string, bool)
}

// Observer is notified with the tier that answered ("none" on failure).
type Observer func(tier string)

// Resolver tries its strategies in order. Nothing is cached so rotated tokens are
// picked up on the next send.
type Resolver struct {
	strategies []Strategy
	observe    Observer
}

func NewResolver(observe Observer, strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies, observe: observe}
}

func (r *Resolver) Resolve(ctx context.Context, tenantID, alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	log := logrus.WithFields(logrus.Fields{"tenant_id": tenantID, "alias": alias})

	for _, s := range r.strategies {
		token, ok, err := s.Resolve(ctx, tenantID, alias)
		if err != nil {
			// um tier com erro não derruba os seguintes
			log.WithError(err).Warnf("[credentials] tier %s failed", s.Name())
			continue
		}
		if ok && strings.TrimSpace(token) != "" {
			log.Debugf("[credentials] resolved by %s", s.Name())
			r.notify(s.Name())
			return strings.TrimSpace(token), nil
		}
	}

	log.Error("[credentials] could not resolve access token")
	r.notify("none")
	return "", ErrNoCredential
}

func (r *Resolver) notify(tier string) {
	if r.observe != nil {
		r.observe(tier)
	}
}
