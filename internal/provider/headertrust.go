package provider

import (
	"context"
	"net/http"

	"github.com/grepdeck/authgate/internal/domain"
)

// HeaderTrust authenticates requests from identity headers stamped by a
// fronting reverse proxy (oauth2-proxy conventions). It must only be enabled
// when the proxy is the sole ingress; the gate middleware rejects requests
// that arrive without the trusted headers so nothing downstream can be
// reached anonymously.
type HeaderTrust struct {
	userHeader   string
	emailHeader  string
	nameHeader   string
	groupsHeader string
}

func NewHeaderTrust(userHeader, emailHeader, nameHeader, groupsHeader string) *HeaderTrust {
	return &HeaderTrust{
		userHeader:   userHeader,
		emailHeader:  emailHeader,
		nameHeader:   nameHeader,
		groupsHeader: groupsHeader,
	}
}

func (h *HeaderTrust) ID() string                { return "oauth2-proxy" }
func (h *HeaderTrust) Name() string              { return "OAuth2 Proxy" }
func (h *HeaderTrust) Kind() domain.ProviderKind { return domain.ProviderHeaderTrust }

// Present reports whether the request carries the identity headers. The gate
// uses this to distinguish "proxy forgot its job" from ordinary anonymity.
func (h *HeaderTrust) Present(r *http.Request) bool {
	return r.Header.Get(h.emailHeader) != ""
}

// Verify derives an identity from the proxy headers. Header values are
// attacker-influenced when the proxy is misdeployed, so the email goes
// through full normalization and validation.
func (h *HeaderTrust) Verify(_ context.Context, r *http.Request) (domain.Identity, error) {
	email := r.Header.Get(h.emailHeader)
	if email == "" {
		return domain.Identity{}, domain.ErrMissingEmail()
	}

	user := r.Header.Get(h.userHeader)
	name := r.Header.Get(h.nameHeader)
	if name == "" {
		name = user
	}
	groups := domain.ParseGroups(r.Header.Get(h.groupsHeader))

	return domain.NewIdentity(user, email, name, groups, domain.ProviderHeaderTrust)
}
