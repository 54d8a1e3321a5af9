package provider

import (
	"context"
	"net/http"

	"github.com/grepdeck/authgate/internal/domain"
)

// Provider is the common surface of every configured identity source.
type Provider interface {
	ID() string
	Name() string
	Kind() domain.ProviderKind
}

// RedirectFlow is implemented by providers that authenticate through a
// browser redirect (the direct OAuth channel).
type RedirectFlow interface {
	Provider

	// AuthURL builds the authorization redirect for a one-time state and
	// PKCE challenge.
	AuthURL(state, codeChallenge string) string

	// Exchange trades the callback code for a verified identity.
	Exchange(ctx context.Context, code, codeVerifier string) (domain.Identity, error)
}

// RequestVerifier is implemented by providers that authenticate a request in
// place from ambient material (trusted proxy headers, signed assertions).
// Verify returns the identity or an error describing why the material was
// absent or unacceptable.
type RequestVerifier interface {
	Provider
	Verify(ctx context.Context, r *http.Request) (domain.Identity, error)
}

// Descriptor is the public shape of an enabled provider, served to sign-in
// pages so they can render the right buttons.
type Descriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}
