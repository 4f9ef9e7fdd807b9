package auth

import (
	"context"
	"time"
)

// TenantStore manages tenants.
type TenantStore interface {
	CreateTenant(ctx context.Context, t Tenant) (Tenant, error)
	GetTenant(ctx context.Context, id string) (Tenant, error)
	FindTenantBySlug(ctx context.Context, slug string) (Tenant, error)
}

// UserStore manages users. Every lookup except FindUserByEmail is scoped to a
// tenant; a user of another tenant is reported as ErrNotFound.
type UserStore interface {
	CreateUser(ctx context.Context, u User) (User, error)
	FindUser(ctx context.Context, tenantID, id string) (User, error)
	// FindUserByEmail is global because login happens before the tenant is
	// known. Emails are unique across tenants.
	FindUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, tenantID string) ([]User, error)
	SetUserActive(ctx context.Context, tenantID, id string, active bool, at time.Time) (User, error)
	TouchLogin(ctx context.Context, tenantID, id string, at time.Time) error
}

// RoleStore manages tenant roles.
type RoleStore interface {
	CreateRole(ctx context.Context, r Role) (Role, error)
	FindRole(ctx context.Context, tenantID, id string) (Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]Role, error)
	UpdateRolePermissions(ctx context.Context, tenantID, id string, perms PermissionSet, at time.Time) (Role, error)
}

// Store groups the persistence the auth subsystem needs.
type Store interface {
	TenantStore
	UserStore
	RoleStore
}
