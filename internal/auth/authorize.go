package auth

// Principal is an authenticated user together with the role and session that
// admitted it.
type Principal struct {
	User    User
	Role    Role
	Session Session
}

// TenantID is the tenant every data access made on behalf of the principal
// is confined to.
func (p Principal) TenantID() string { return p.User.TenantID }

// UserID returns the acting user's id.
func (p Principal) UserID() string { return p.User.ID }

// Can reports whether the principal's role grants action on resource.
func (p Principal) Can(resource Resource, action Action) bool {
	return IsAllowed(p.Role.Permissions, resource, action)
}
