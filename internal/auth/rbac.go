package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/ids"
)

const minPasswordLength = 8

// NewUser is the input for RBACService.CreateUser.
type NewUser struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	RoleID    string
}

// RBACService administers users and roles within the caller's tenant.
// Permission checks happen before these methods are called; the service
// only enforces tenant confinement and input rules.
type RBACService struct {
	store Store
	roles *RoleCache
	audit audit.Sink
	now   func() time.Time
}

// NewRBACService builds the admin service. roles may be nil when no cache is
// in use.
func NewRBACService(store Store, roles *RoleCache, sink audit.Sink) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("rbac store is required")
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return &RBACService{store: store, roles: roles, audit: sink, now: time.Now}, nil
}

func (s *RBACService) CreateUser(ctx context.Context, p Principal, in NewUser) (User, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	roleID := strings.TrimSpace(in.RoleID)
	if roleID == "" {
		return User{}, fmt.Errorf("%w: roleId is required", ErrInvalidInput)
	}
	if _, err := s.store.FindRole(ctx, p.TenantID(), roleID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: unknown role", ErrInvalidInput)
		}
		return User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	now := s.now().UTC()
	user, err := s.store.CreateUser(ctx, User{
		ID:           ids.New(),
		TenantID:     p.TenantID(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		RoleID:       roleID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		TenantID:     p.TenantID(),
		ActorID:      p.UserID(),
		Action:       audit.ActionCreate,
		ResourceType: string(ResourceUsers),
		ResourceID:   user.ID,
		After:        audit.Snapshot(user),
	})
	return user, nil
}

func (s *RBACService) ListUsers(ctx context.Context, p Principal) ([]User, error) {
	return s.store.ListUsers(ctx, p.TenantID())
}

func (s *RBACService) GetUser(ctx context.Context, p Principal, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return s.store.FindUser(ctx, p.TenantID(), userID)
}

// DeactivateUser disables a user of the caller's tenant. Users are never
// hard deleted.
func (s *RBACService) DeactivateUser(ctx context.Context, p Principal, userID string) (User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return User{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if userID == p.UserID() {
		return User{}, fmt.Errorf("%w: cannot deactivate yourself", ErrInvalidInput)
	}
	before, err := s.store.FindUser(ctx, p.TenantID(), userID)
	if err != nil {
		return User{}, err
	}
	after, err := s.store.SetUserActive(ctx, p.TenantID(), userID, false, s.now().UTC())
	if err != nil {
		return User{}, err
	}
	s.audit.Record(ctx, audit.Entry{
		TenantID:     p.TenantID(),
		ActorID:      p.UserID(),
		Action:       audit.ActionUserDeactivate,
		ResourceType: string(ResourceUsers),
		ResourceID:   userID,
		Before:       audit.Snapshot(before),
		After:        audit.Snapshot(after),
	})
	return after, nil
}

func (s *RBACService) ListRoles(ctx context.Context, p Principal) ([]Role, error) {
	return s.store.ListRoles(ctx, p.TenantID())
}

// SetRolePermissions replaces a role's permission set and evicts it from the
// role cache.
func (s *RBACService) SetRolePermissions(ctx context.Context, p Principal, roleID string, perms PermissionSet) (Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	for _, r := range perms.Resources() {
		if !KnownResource(r) {
			return Role{}, fmt.Errorf("%w: unknown resource %q", ErrInvalidInput, r)
		}
	}
	before, err := s.store.FindRole(ctx, p.TenantID(), roleID)
	if err != nil {
		return Role{}, err
	}
	after, err := s.store.UpdateRolePermissions(ctx, p.TenantID(), roleID, perms, s.now().UTC())
	if err != nil {
		return Role{}, err
	}
	if s.roles != nil {
		s.roles.Invalidate(p.TenantID(), roleID)
	}
	s.audit.Record(ctx, audit.Entry{
		TenantID:     p.TenantID(),
		ActorID:      p.UserID(),
		Action:       audit.ActionRolePermissionsUpdate,
		ResourceType: string(ResourceRoles),
		ResourceID:   roleID,
		Before:       audit.Snapshot(before.Permissions),
		After:        audit.Snapshot(after.Permissions),
	})
	return after, nil
}
