package provider

import (
	"github.com/grepdeck/authgate/internal/config"
	"github.com/grepdeck/authgate/internal/domain"
)

// entry is one row of the provider table: the config fields that must all be
// non-empty for the provider to exist, and its constructor.
type entry struct {
	required func(cfg *config.Config) []string
	enabled  func(cfg *config.Config) bool // extra gate beyond required fields
	build    func(cfg *config.Config) Provider
}

// table is the full set of supported providers, in the order they are
// reported to sign-in pages. Evaluated once at startup; partial configuration
// silently disables a provider rather than failing the boot.
var table = []entry{
	{
		required: func(c *config.Config) []string { return []string{c.GitHubClientID, c.GitHubClientSecret} },
		build: func(c *config.Config) Provider {
			return NewGitHub(c.GitHubClientID, c.GitHubClientSecret, c.GitHubBaseURL, c.ExternalURL)
		},
	},
	{
		required: func(c *config.Config) []string { return []string{c.GitLabClientID, c.GitLabClientSecret} },
		build: func(c *config.Config) Provider {
			return NewGitLab(c.GitLabClientID, c.GitLabClientSecret, c.GitLabBaseURL, c.ExternalURL)
		},
	},
	{
		required: func(c *config.Config) []string { return []string{c.GoogleClientID, c.GoogleClientSecret} },
		build: func(c *config.Config) Provider {
			return NewGoogle(c.GoogleClientID, c.GoogleClientSecret, c.ExternalURL)
		},
	},
	{
		required: func(c *config.Config) []string {
			return []string{c.OktaClientID, c.OktaClientSecret, c.OktaIssuer}
		},
		build: func(c *config.Config) Provider {
			return NewOkta(c.OktaClientID, c.OktaClientSecret, c.OktaIssuer, c.ExternalURL)
		},
	},
	{
		required: func(c *config.Config) []string {
			return []string{c.KeycloakClientID, c.KeycloakClientSecret, c.KeycloakIssuer}
		},
		build: func(c *config.Config) Provider {
			return NewKeycloak(c.KeycloakClientID, c.KeycloakClientSecret, c.KeycloakIssuer, c.ExternalURL)
		},
	},
	{
		required: func(c *config.Config) []string {
			return []string{c.EntraIDClientID, c.EntraIDClientSecret, c.EntraIDIssuer}
		},
		build: func(c *config.Config) Provider {
			return NewEntraID(c.EntraIDClientID, c.EntraIDClientSecret, c.EntraIDIssuer, c.ExternalURL)
		},
	},
	{
		required: func(c *config.Config) []string { return []string{c.IAPAudience} },
		enabled:  func(c *config.Config) bool { return c.IAPEnabled },
		build: func(c *config.Config) Provider {
			return NewIAP(c.IAPAudience, c.IAPKeyURL)
		},
	},
	{
		required: func(c *config.Config) []string { return []string{c.ProxyUserHeader, c.ProxyEmailHeader} },
		enabled:  func(c *config.Config) bool { return c.TrustProxyHeaders },
		build: func(c *config.Config) Provider {
			return NewHeaderTrust(c.ProxyUserHeader, c.ProxyEmailHeader, c.ProxyNameHeader, c.ProxyGroupsHeader)
		},
	},
}

// Registry holds the providers enabled by the current configuration, in
// table order.
type Registry struct {
	providers []Provider
	byID      map[string]Provider
}

// Build evaluates the provider table against the configuration. A provider is
// enabled iff all of its required fields are non-empty and any extra gate
// passes. Deterministic for a given config.
func Build(cfg *config.Config) *Registry {
	r := &Registry{byID: make(map[string]Provider)}
	for _, e := range table {
		if e.enabled != nil && !e.enabled(cfg) {
			continue
		}
		if !allSet(e.required(cfg)) {
			continue
		}
		p := e.build(cfg)
		r.providers = append(r.providers, p)
		r.byID[p.ID()] = p
	}
	return r
}

func allSet(fields []string) bool {
	for _, f := range fields {
		if f == "" {
			return false
		}
	}
	return true
}

// All returns the enabled providers in registration order.
func (r *Registry) All() []Provider {
	return r.providers
}

// Lookup finds an enabled provider by its ID.
func (r *Registry) Lookup(id string) (Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// RedirectFlow finds an enabled redirect provider by ID, or an
// unsupported-provider error naming the ID.
func (r *Registry) RedirectFlow(id string) (RedirectFlow, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUnsupportedProvider(id)
	}
	f, ok := p.(RedirectFlow)
	if !ok {
		return nil, domain.ErrUnsupportedProvider(id)
	}
	return f, nil
}

// RequestVerifiers returns the enabled in-place verifiers in registration
// order; the session middleware tries them one by one.
func (r *Registry) RequestVerifiers() []RequestVerifier {
	var out []RequestVerifier
	for _, p := range r.providers {
		if v, ok := p.(RequestVerifier); ok {
			out = append(out, v)
		}
	}
	return out
}

// Descriptors returns the public view of the enabled providers.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, Descriptor{ID: p.ID(), Name: p.Name(), Kind: string(p.Kind())})
	}
	return out
}
