package models

// Role is the caller's authority level as asserted by the auth boundary.
type Role string

const (
	RoleCitizen   Role = "citizen"
	RoleAuthority Role = "authority"
	RoleAdmin     Role = "admin"
)

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID         string `json:"id"`
	Role           Role   `json:"role"`
	DepartmentCode string `json:"departmentCode,omitempty"`
}

// HasRole reports whether the identity holds any of roles.
func (i *Identity) HasRole(roles ...Role) bool {
	if i == nil {
		return false
	}
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
