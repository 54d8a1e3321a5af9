package authn

import (
	"context"

	"github.com/google/uuid"

	"github.com/grepdeck/authgate/internal/domain"
	"github.com/grepdeck/authgate/internal/logger"
)

// EnsureUser resolves a verified identity to a durable user, creating one on
// first login. Concurrent first logins for the same email race on the unique
// constraint; the loser re-reads the winner's row, so at most one user ever
// exists per email and every caller gets the same one.
func (s *Service) EnsureUser(ctx context.Context, ident domain.Identity) (domain.User, bool, error) {
	user, err := s.users.GetByEmail(ctx, ident.Email)
	firstLogin := false

	switch {
	case err == nil:
		// Known user. Refresh mutable profile attributes best-effort; a
		// stale name must not block the sign-in.
		if (ident.Name != "" && ident.Name != user.Name) || (ident.Image != "" && ident.Image != user.Image) {
			if uerr := s.users.UpdateProfile(ctx, user.ID, ident.Name, ident.Image); uerr != nil {
				logger.WithCtx(ctx).Warn().Err(uerr).Str("user_id", user.ID).Msg("profile refresh failed")
			} else {
				user.Name = ident.Name
				if ident.Image != "" {
					user.Image = ident.Image
				}
			}
		}

	case domain.Is(err, "user_not_found"):
		user, firstLogin, err = s.createUser(ctx, ident)
		if err != nil {
			return domain.User{}, false, err
		}

	default:
		return domain.User{}, false, domain.ErrProvisioningFailed(err)
	}

	// In single-tenant mode membership in the pinned org is part of the
	// provisioning contract: a user without one is half-provisioned and must
	// not be signed in. Multi-tenant deployments grant memberships through
	// invites, not sign-in.
	if s.singleTenant {
		err = s.memberships.Ensure(ctx, domain.OrgMembership{
			UserID: user.ID,
			OrgID:  s.orgID,
			Role:   domain.OrgRoleMember,
		})
		if err != nil {
			return domain.User{}, false, domain.ErrProvisioningFailed(err)
		}
	}

	if firstLogin {
		s.record(ctx, "user.jit_provisioned", user.ID)
	}
	return user, firstLogin, nil
}

func (s *Service) createUser(ctx context.Context, ident domain.Identity) (domain.User, bool, error) {
	created, err := s.users.Create(ctx, domain.User{
		ID:    uuid.NewString(),
		Email: ident.Email,
		Name:  ident.Name,
		Image: ident.Image,
	})
	if err == nil {
		return created, true, nil
	}

	// Unique-constraint loss means another request created the user between
	// our read and write. First writer wins; adopt their row.
	if domain.Is(err, "email_already_exists") {
		user, rerr := s.users.GetByEmail(ctx, ident.Email)
		if rerr != nil {
			return domain.User{}, false, domain.ErrProvisioningFailed(rerr)
		}
		return user, false, nil
	}

	return domain.User{}, false, domain.ErrProvisioningFailed(err)
}
