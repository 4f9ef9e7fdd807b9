package auth

import "time"

// Tenant is the isolation boundary grouping one customer organisation's data.
// Tenants are never deleted; IsActive=false disables them.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// User belongs to exactly one tenant and holds exactly one role.
type User struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenantId"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	RoleID       string     `json:"roleId"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Role is a named permission set scoped to a tenant. An empty TenantID marks
// a system-wide template copied into tenants at onboarding.
type Role struct {
	ID          string        `json:"id"`
	TenantID    string        `json:"tenantId,omitempty"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Permissions PermissionSet `json:"permissions"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// IsTemplate reports whether the role is a system-wide template.
func (r Role) IsTemplate() bool { return r.TenantID == "" }
