// Package oauth exchanges authorization codes with external identity
// providers for normalized profiles. It makes no account decisions.
package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"golang.org/x/oauth2"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// Provider is one configured identity source.
type Provider interface {
	Name() domain.Provider

	// AuthCodeURL returns the consent page URL for state, with the S256
	// challenge derived from verifier.
	AuthCodeURL(state, verifier string) string

	// Exchange trades code for tokens and returns the caller's profile.
	Exchange(ctx context.Context, code, verifier string) (*domain.OAuthProfile, error)
}

// Registry holds the providers with configured credentials.
type Registry struct {
	providers map[domain.Provider]Provider
}

func NewRegistry(list ...Provider) *Registry {
	m := make(map[domain.Provider]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[domain.Provider(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

// Names lists the registered providers.
func (r *Registry) Names() []domain.Provider {
	out := make([]domain.Provider, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}

// NewVerifier returns a fresh PKCE code verifier.
func NewVerifier() string {
	return oauth2.GenerateVerifier()
}
