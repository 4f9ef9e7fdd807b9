package onboarding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/store/memory"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "acme-corp", Slugify("  Acme Corp!! "))
	assert.Equal(t, "", Slugify("!!!"))
}

func TestOnboardCreatesTenantRolesAndAdmin(t *testing.T) {
	store := memory.New()
	svc, err := New(store, nil)
	require.NoError(t, err)

	res, err := svc.Onboard(context.Background(), Request{
		TenantName:    "Acme Corp",
		AdminEmail:    "Boss@Acme.io",
		AdminPassword: "correct-horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "acme-corp", res.Tenant.Slug)
	assert.True(t, res.Tenant.IsActive)
	require.Len(t, res.Roles, len(auth.Templates()))
	for _, r := range res.Roles {
		assert.Equal(t, res.Tenant.ID, r.TenantID)
	}

	admin, ok := res.Role(auth.RoleAdmin)
	require.True(t, ok)
	assert.Equal(t, admin.ID, res.Admin.RoleID)
	assert.Equal(t, "boss@acme.io", res.Admin.Email)
	assert.True(t, auth.IsAllowed(admin.Permissions, auth.ResourceUsers, auth.ActionDelete))

	_, err = svc.Onboard(context.Background(), Request{
		TenantName:    "Acme Corp",
		AdminEmail:    "other@acme.io",
		AdminPassword: "correct-horse",
	})
	require.ErrorIs(t, err, auth.ErrConflict)
}

func TestOnboardValidation(t *testing.T) {
	svc, err := New(memory.New(), nil)
	require.NoError(t, err)
	cases := []Request{
		{TenantName: "", AdminEmail: "a@b.c", AdminPassword: "long-enough"},
		{TenantName: "X", AdminEmail: "nope", AdminPassword: "long-enough"},
		{TenantName: "X", AdminEmail: "a@b.c", AdminPassword: "short"},
		{TenantName: "???", AdminEmail: "a@b.c", AdminPassword: "long-enough"},
	}
	for _, req := range cases {
		_, err := svc.Onboard(context.Background(), req)
		assert.ErrorIs(t, err, auth.ErrInvalidInput, "%+v", req)
	}
}

func TestSeedDemoIsIdempotent(t *testing.T) {
	store := memory.New()
	svc, err := New(store, nil)
	require.NoError(t, err)

	tenant, created, err := svc.SeedDemo(context.Background(), "demo-password")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := svc.SeedDemo(context.Background(), "demo-password")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, tenant.ID, again.ID)

	admin, err := store.FindUserByEmail(context.Background(), DemoAdminEmail)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, admin.TenantID)
}

type sink struct{ entries []audit.Entry }

func (s *sink) Record(_ context.Context, e audit.Entry) { s.entries = append(s.entries, e) }

func TestOnboardAudits(t *testing.T) {
	rec := &sink{}
	svc, err := New(memory.New(), rec)
	require.NoError(t, err)
	res, err := svc.Onboard(context.Background(), Request{TenantName: "Beta", AdminEmail: "a@beta.io", AdminPassword: "long-enough"})
	require.NoError(t, err)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionTenantOnboard, rec.entries[0].Action)
	assert.Equal(t, res.Tenant.ID, rec.entries[0].TenantID)
}
