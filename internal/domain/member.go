package domain

// Role enumerates organization roles supplied by the identity service.
type Role string

const (
	RoleEmployee     Role = "employee"
	RoleSupportAdmin Role = "support_admin"
	RoleSuperAdmin   Role = "super_admin"
)

// IsStaff reports whether the role may work tickets.
func (r Role) IsStaff() bool {
	return r == RoleSupportAdmin || r == RoleSuperAdmin
}

// Member is an organization membership record.
type Member struct {
	UserID         string
	OrganizationID string
	Name           string
	Role           Role
	Active         bool
}

// Actor is the authenticated caller a service operation runs on behalf of.
type Actor struct {
	UserID         string
	OrganizationID string
	Name           string
	Role           Role
}

// IsStaff reports whether the actor holds a staff role.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}
