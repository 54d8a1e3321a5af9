package authn

import (
	"context"
	"time"

	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/provider"
)

/*
UserRepo
--------
Persistence port for users. Only describes WHAT the sign-in flows need, not
HOW it's stored.
*/
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)

	// Create must fail with an email-conflict error when another row already
	// owns the email; provisioning depends on that to resolve races.
	Create(ctx context.Context, u domain.User) (domain.User, error)

	// UpdateProfile refreshes mutable attributes from the identity provider.
	UpdateProfile(ctx context.Context, userID, name, image string) error
}

/*
MembershipRepo
--------------
Org membership port. Ensure is idempotent: re-ensuring an existing
membership keeps its current role.
*/
type MembershipRepo interface {
	Ensure(ctx context.Context, m domain.OrgMembership) error
}

// StateData is what a sign-in attempt parks between the redirect out and the
// callback in.
type StateData struct {
	CodeVerifier string `json:"code_verifier"`
	Provider     string `json:"provider"`
	RedirectTo   string `json:"redirect_to,omitempty"`
}

/*
StateStore
----------
One-time storage for OAuth login state. Consume removes the entry; a second
consume of the same token must fail (replay defense).
*/
type StateStore interface {
	Create(ctx context.Context, data StateData) (token string, err error)
	Consume(ctx context.Context, token string) (StateData, error)
}

/*
ProviderRegistry
----------------
Read-only view over the enabled identity providers. Satisfied by
provider.Registry.
*/
type ProviderRegistry interface {
	RedirectFlow(id string) (provider.RedirectFlow, error)
	Descriptors() []provider.Descriptor
}

// SessionClaims is the payload carried by the session artifact.
type SessionClaims struct {
	UserID string
	Email  string
	Name   string
	Groups []string
}

/*
SessionSigner
-------------
Issues and verifies the session artifact (JWT). Used by the service and the
session middleware.
*/
type SessionSigner interface {
	Sign(claims SessionClaims, ttl time.Duration) (string, error)
	Verify(token string) (SessionClaims, error)
}
