package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcrm.dev/internal/audit"
)

func newRBACFixture(t *testing.T) (*RBACService, *stubStore, *captureSink, *RoleCache, Principal) {
	t.Helper()
	store := newStubStore()
	sink := &captureSink{}
	cache := NewRoleCache(store, 16, time.Minute)
	svc, err := NewRBACService(store, cache, sink)
	require.NoError(t, err)
	_, admin := seedTenant(store, "t1", "admin@a.com", RoleAdmin)
	role := store.roles[admin.RoleID]
	return svc, store, sink, cache, Principal{User: admin, Role: role}
}

func roleByName(t *testing.T, s *stubStore, tenantID, name string) Role {
	t.Helper()
	for _, r := range s.roles {
		if r.TenantID == tenantID && r.Name == name {
			return r
		}
	}
	t.Fatalf("role %s not found in %s", name, tenantID)
	return Role{}
}

func TestRBACCreateUser(t *testing.T) {
	svc, store, sink, _, admin := newRBACFixture(t)
	rep := roleByName(t, store, "t1", RoleSalesRep)

	user, err := svc.CreateUser(context.Background(), admin, NewUser{
		Email:     " New.Rep@A.com ",
		Password:  "long-enough",
		FirstName: "New",
		RoleID:    rep.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "new.rep@a.com", user.Email)
	assert.Equal(t, "t1", user.TenantID)
	assert.True(t, user.IsActive)
	require.NoError(t, VerifyPassword(user.PasswordHash, "long-enough"))

	last := sink.last()
	assert.Equal(t, audit.ActionCreate, last.Action)
	assert.Equal(t, user.ID, last.ResourceID)
	assert.NotContains(t, string(last.After), "long-enough")
	assert.NotContains(t, string(last.After), user.PasswordHash)

	_, err = svc.CreateUser(context.Background(), admin, NewUser{Email: "new.rep@a.com", Password: "long-enough", RoleID: rep.ID})
	require.ErrorIs(t, err, ErrConflict)
}

func TestRBACCreateUserRejectsForeignRole(t *testing.T) {
	svc, store, _, _, admin := newRBACFixture(t)
	seedTenant(store, "t2", "other@b.com", RoleAdmin)
	foreign := roleByName(t, store, "t2", RoleAdmin)

	_, err := svc.CreateUser(context.Background(), admin, NewUser{Email: "x@a.com", Password: "long-enough", RoleID: foreign.ID})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateUser(context.Background(), admin, NewUser{Email: "bad", Password: "long-enough", RoleID: foreign.ID})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CreateUser(context.Background(), admin, NewUser{Email: "x@a.com", Password: "short", RoleID: foreign.ID})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRBACDeactivateUser(t *testing.T) {
	svc, store, sink, _, admin := newRBACFixture(t)
	_, other := seedTenant(store, "t2", "other@b.com", RoleAdmin)
	rep := roleByName(t, store, "t1", RoleSalesRep)
	user, err := svc.CreateUser(context.Background(), admin, NewUser{Email: "rep@a.com", Password: "long-enough", RoleID: rep.ID})
	require.NoError(t, err)

	got, err := svc.DeactivateUser(context.Background(), admin, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, audit.ActionUserDeactivate, sink.last().Action)

	_, err = svc.DeactivateUser(context.Background(), admin, other.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.True(t, store.users[other.ID].IsActive)

	_, err = svc.DeactivateUser(context.Background(), admin, admin.UserID())
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRBACSetRolePermissionsInvalidatesCache(t *testing.T) {
	svc, store, sink, cache, admin := newRBACFixture(t)
	rep := roleByName(t, store, "t1", RoleSalesRep)
	ctx := context.Background()

	cached, err := cache.Role(ctx, "t1", rep.ID)
	require.NoError(t, err)
	assert.False(t, IsAllowed(cached.Permissions, ResourceAccounts, ActionDelete))

	perms := NewPermissionSet()
	perms.Grant(ResourceAccounts, AllActions())
	_, err = svc.SetRolePermissions(ctx, admin, rep.ID, perms)
	require.NoError(t, err)
	assert.Equal(t, audit.ActionRolePermissionsUpdate, sink.last().Action)

	fresh, err := cache.Role(ctx, "t1", rep.ID)
	require.NoError(t, err)
	assert.True(t, IsAllowed(fresh.Permissions, ResourceAccounts, ActionDelete))
}

func TestRBACSetRolePermissionsValidation(t *testing.T) {
	svc, store, _, _, admin := newRBACFixture(t)
	rep := roleByName(t, store, "t1", RoleSalesRep)

	perms := NewPermissionSet()
	perms.Grant(Resource("invoices"), AllActions())
	_, err := svc.SetRolePermissions(context.Background(), admin, rep.ID, perms)
	require.ErrorIs(t, err, ErrInvalidInput)

	seedTenant(store, "t2", "other@b.com", RoleAdmin)
	foreign := roleByName(t, store, "t2", RoleSalesRep)
	_, err = svc.SetRolePermissions(context.Background(), admin, foreign.ID, NewPermissionSet())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRBACListsAreTenantScoped(t *testing.T) {
	svc, store, _, _, admin := newRBACFixture(t)
	seedTenant(store, "t2", "other@b.com", RoleAdmin)

	users, err := svc.ListUsers(context.Background(), admin)
	require.NoError(t, err)
	for _, u := range users {
		assert.Equal(t, "t1", u.TenantID)
	}
	roles, err := svc.ListRoles(context.Background(), admin)
	require.NoError(t, err)
	assert.Len(t, roles, len(Templates()))
	for _, r := range roles {
		assert.Equal(t, "t1", r.TenantID)
	}
}
