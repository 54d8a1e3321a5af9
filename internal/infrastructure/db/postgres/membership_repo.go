package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/grepdeck/authgate/internal/domain"
)

type MembershipRepo struct {
	db *sql.DB
}

func NewMembershipRepo(db *sql.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// Ensure inserts the membership if it does not exist. An existing row keeps
// its role; provisioning must never demote or promote anyone.
func (r *MembershipRepo) Ensure(ctx context.Context, m domain.OrgMembership) error {
	if strings.TrimSpace(m.UserID) == "" {
		return domain.ErrMissingField("user_id")
	}
	if m.Role == "" {
		m.Role = domain.OrgRoleMember
	}

	const q = `
INSERT INTO org_memberships (user_id, org_id, role)
VALUES ($1,$2,$3)
ON CONFLICT (user_id, org_id) DO NOTHING;
`
	if _, err := r.db.ExecContext(ctx, q, m.UserID, m.OrgID, m.Role); err != nil {
		return domain.ErrDBUnavailable(err)
	}
	return nil
}
