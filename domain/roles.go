package domain

// Role to scope/permission/plan mapping. This table is the only place the
// mapping lives; token issuance and permission checks both read from here.

// BaseScopes are granted to every authenticated principal.
var BaseScopes = []string{"openid", "profile", "email"}

var roleScopes = map[UserRole][]string{
	RoleAdmin:   {"admin", "read", "write", "delete"},
	RoleManager: {"read", "write"},
	RoleUser:    {"read"},
}

var rolePermissions = map[UserRole][]string{
	RoleAdmin: {
		"users:read", "users:write", "users:delete",
		"accounts:read", "accounts:write", "accounts:delete",
		"organizations:read", "organizations:write", "organizations:delete",
		"projects:read", "projects:write", "projects:delete",
		"admin:access",
	},
	RoleManager: {
		"users:read",
		"accounts:read", "accounts:write",
		"organizations:read",
		"projects:read", "projects:write",
	},
	RoleUser: {
		"accounts:read",
		"projects:read",
	},
}

var defaultPermissions = []string{"accounts:read"}

// ScopesForUser returns the scope set issued in the user's access tokens:
// the base OIDC scopes, the role scopes, and "organizations" when the user
// belongs to at least one organization.
func ScopesForUser(u *User) []string {
	scopes := append([]string{}, BaseScopes...)
	rs, ok := roleScopes[u.Role]
	if !ok {
		rs = roleScopes[RoleUser]
	}
	scopes = append(scopes, rs...)
	if len(u.Memberships) > 0 {
		scopes = append(scopes, "organizations")
	}
	return scopes
}

// PermissionsForRole returns the permission strings for a role. Unknown
// roles get the minimal default set.
func PermissionsForRole(role UserRole) []string {
	if perms, ok := rolePermissions[role]; ok {
		return append([]string{}, perms...)
	}
	return append([]string{}, defaultPermissions...)
}

// PlanForUser derives the billing plan claim.
func PlanForUser(u *User) string {
	switch {
	case u.Role == RoleAdmin:
		return "Enterprise"
	case len(u.Memberships) > 0:
		return "Organization"
	default:
		return "Free"
	}
}
