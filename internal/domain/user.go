package domain

import "time"

// User is the durable record created by JIT provisioning. It is never
// deleted by this service.
type User struct {
	ID        string
	Email     string
	Name      string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrgRole values for organization membership.
const (
	OrgRoleMember = "MEMBER"
	OrgRoleOwner  = "OWNER"
)

// OrgMembership links a user to an organization. In single-tenant mode every
// provisioned user gets exactly one membership in the well-known org.
type OrgMembership struct {
	UserID string
	OrgID  int64
	Role   string
}
