// Package onboarding creates tenants: the tenant row, a copy of every role
// template and the first administrator.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/ids"
	"tenantcrm.dev/internal/obs"
)

// Demo tenant created by the seed command.
const (
	DemoTenantName = "Demo Company"
	DemoTenantSlug = "demo"
	DemoAdminEmail = "admin@demo.crm.com"
)

// Request describes a new tenant and its first administrator.
type Request struct {
	TenantName     string
	TenantSlug     string
	AdminEmail     string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string
}

// Result is what Onboard created.
type Result struct {
	Tenant auth.Tenant
	Roles  []auth.Role
	Admin  auth.User
}

// Role returns the created role named name.
func (r Result) Role(name string) (auth.Role, bool) {
	for _, role := range r.Roles {
		if role.Name == name {
			return role, true
		}
	}
	return auth.Role{}, false
}

// Service onboards tenants.
type Service struct {
	store auth.Store
	audit audit.Sink
	now   func() time.Time
}

// New builds the onboarding service. A nil sink disables auditing.
func New(store auth.Store, sink audit.Sink) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Service{store: store, audit: sink, now: time.Now}, nil
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe tenant slug from a name.
func Slugify(name string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Onboard creates the tenant, copies the role templates into it and creates
// the administrator holding the Admin role.
func (s *Service) Onboard(ctx context.Context, req Request) (Result, error) {
	name := strings.TrimSpace(req.TenantName)
	if name == "" {
		return Result{}, fmt.Errorf("%w: tenant name is required", auth.ErrInvalidInput)
	}
	slug := Slugify(req.TenantSlug)
	if slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return Result{}, fmt.Errorf("%w: tenant slug is required", auth.ErrInvalidInput)
	}
	email := strings.ToLower(strings.TrimSpace(req.AdminEmail))
	if email == "" || !strings.Contains(email, "@") {
		return Result{}, fmt.Errorf("%w: valid admin email is required", auth.ErrInvalidInput)
	}
	if len(req.AdminPassword) < 8 {
		return Result{}, fmt.Errorf("%w: admin password must be at least 8 characters", auth.ErrInvalidInput)
	}
	hash, err := auth.HashPassword(req.AdminPassword)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	tenant, err := s.store.CreateTenant(ctx, auth.Tenant{
		ID:        ids.New(),
		Name:      name,
		Slug:      slug,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create tenant: %w", err)
	}

	res := Result{Tenant: tenant}
	var adminRoleID string
	for _, tpl := range auth.Templates() {
		tpl.ID = ids.New()
		tpl.TenantID = tenant.ID
		tpl.CreatedAt = now
		tpl.UpdatedAt = now
		role, err := s.store.CreateRole(ctx, tpl)
		if err != nil {
			return Result{}, fmt.Errorf("create role %s: %w", tpl.Name, err)
		}
		if role.Name == auth.RoleAdmin {
			adminRoleID = role.ID
		}
		res.Roles = append(res.Roles, role)
	}

	admin, err := s.store.CreateUser(ctx, auth.User{
		ID:           ids.New(),
		TenantID:     tenant.ID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.AdminFirstName),
		LastName:     strings.TrimSpace(req.AdminLastName),
		RoleID:       adminRoleID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Result{}, fmt.Errorf("create admin: %w", err)
	}
	res.Admin = admin

	s.audit.Record(ctx, audit.Entry{
		TenantID:     tenant.ID,
		ActorID:      admin.ID,
		Action:       audit.ActionTenantOnboard,
		ResourceType: "tenants",
		ResourceID:   tenant.ID,
		After:        audit.Snapshot(tenant),
	})
	obs.Logger().Info().Str("tenant_id", tenant.ID).Str("slug", tenant.Slug).Msg("tenant onboarded")
	return res, nil
}

// SeedDemo onboards the demo tenant unless it already exists.
func (s *Service) SeedDemo(ctx context.Context, adminPassword string) (auth.Tenant, bool, error) {
	existing, err := s.store.FindTenantBySlug(ctx, DemoTenantSlug)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, auth.ErrNotFound) {
		return auth.Tenant{}, false, err
	}
	res, err := s.Onboard(ctx, Request{
		TenantName:     DemoTenantName,
		TenantSlug:     DemoTenantSlug,
		AdminEmail:     DemoAdminEmail,
		AdminPassword:  adminPassword,
		AdminFirstName: "Demo",
		AdminLastName:  "Admin",
	})
	if err != nil {
		return auth.Tenant{}, false, err
	}
	return res.Tenant, true, nil
}
