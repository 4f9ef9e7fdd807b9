package pg

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/crm"
	"tenantcrm.dev/internal/tenancy"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

var (
	t0      = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	userCol = []string{"id", "tenant_id", "email", "password_hash", "first_name", "last_name", "role_id", "is_active", "last_login_at", "created_at", "updated_at"}
	roleCol = []string{"id", "tenant_id", "name", "description", "permissions", "created_at", "updated_at"}
)

func TestCreateUserMapsUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("insert into users")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.CreateUser(context.Background(), auth.User{ID: "u1", TenantID: "t1", Email: "a@b.c"})
	require.ErrorIs(t, err, auth.ErrConflict)
}

func TestFindUserIsTenantScoped(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("from users where tenant_id = $1 and id = $2")).
		WithArgs("t1", "u1").
		WillReturnRows(sqlmock.NewRows(userCol).
			AddRow("u1", "t1", "a@b.c", "hash", "Ann", "Lee", "r1", true, t0, t0, t0))
	mock.ExpectQuery(regexp.QuoteMeta("from users where tenant_id = $1 and id = $2")).
		WithArgs("t2", "u1").
		WillReturnRows(sqlmock.NewRows(userCol))

	u, err := store.FindUser(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.FirstName)
	require.NotNil(t, u.LastLoginAt)
	assert.True(t, t0.Equal(*u.LastLoginAt))

	_, err = store.FindUser(context.Background(), "t2", "u1")
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func TestFindRoleDecodesPermissions(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("from roles where tenant_id = $1 and id = $2")).
		WithArgs("t1", "r1").
		WillReturnRows(sqlmock.NewRows(roleCol).
			AddRow("r1", "t1", "Sales Rep", nil, []byte(`{"accounts":["create","read"]}`), t0, t0))

	r, err := store.FindRole(context.Background(), "t1", "r1")
	require.NoError(t, err)
	assert.Equal(t, "Sales Rep", r.Name)
	assert.True(t, auth.IsAllowed(r.Permissions, auth.ResourceAccounts, auth.ActionCreate))
	assert.False(t, auth.IsAllowed(r.Permissions, auth.ResourceAccounts, auth.ActionDelete))
}

func TestUpdateRolePermissionsNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("update roles set permissions = $3, updated_at = $4")).
		WithArgs("t1", "r9", sqlmock.AnyArg(), t0).
		WillReturnRows(sqlmock.NewRows(roleCol))

	_, err := store.UpdateRolePermissions(context.Background(), "t1", "r9", auth.NewPermissionSet(), t0)
	require.ErrorIs(t, err, auth.ErrNotFound)
}

func accountRow(id string) []driver.Value {
	return []driver.Value{id, "t1", "u1", true, t0, t0, "Acme", nil, nil, nil, nil, nil, "CUSTOMER", 1500.5, int64(12)}
}

func TestListRecordsScopesAndPages(t *testing.T) {
	store, mock := newMockStore(t)
	scoped := tenancy.Scope{TenantID: "t1"}.Apply(tenancy.Query{
		Filters: []tenancy.Filter{tenancy.Eq("type", "CUSTOMER")},
		Search:  "ac",
		Page:    tenancy.NormalizePage(2, 1),
	})

	where := "tenant_id = $1 AND is_active = $2 AND type = $3 AND (name ILIKE $4 OR industry ILIKE $4 OR email ILIKE $4 OR website ILIKE $4)"
	mock.ExpectQuery(regexp.QuoteMeta("select count(*) from accounts where " + where)).
		WithArgs("t1", true, "CUSTOMER", "%ac%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("from accounts where " + where + " order by updated_at DESC, id DESC limit 1 offset 1")).
		WithArgs("t1", true, "CUSTOMER", "%ac%").
		WillReturnRows(sqlmock.NewRows(crm.AllColumns(crm.AccountSchema)).AddRow(accountRow("a2")...))

	items, total, err := store.List(context.Background(), crm.AccountSchema, scoped)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, items, 1)
	acct := items[0].(*crm.Account)
	assert.Equal(t, "a2", acct.ID)
	assert.Equal(t, crm.AccountCustomer, acct.Type)
	assert.Nil(t, acct.Industry)
	require.NotNil(t, acct.Employees)
	assert.Equal(t, 12, *acct.Employees)
	require.NotNil(t, acct.AnnualRevenue)
	assert.Equal(t, 1500.5, *acct.AnnualRevenue)
}

func TestGetRecordNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("from notes where tenant_id = $1 AND is_active = $2 AND id = $3")).
		WithArgs("t1", true, "n1").
		WillReturnRows(sqlmock.NewRows(crm.AllColumns(crm.NoteSchema)))

	_, err := store.Get(context.Background(), crm.NoteSchema, tenancy.Scope{TenantID: "t1"}.ByID("n1", false))
	require.ErrorIs(t, err, crm.ErrNotFound)
}

func TestInsertRecord(t *testing.T) {
	store, mock := newMockStore(t)
	note := &crm.Note{Content: "hello"}
	*note.Meta() = crm.Base{ID: "n1", TenantID: "t1", OwnerID: "u1", IsActive: true, CreatedAt: t0, UpdatedAt: t0}

	mock.ExpectExec(regexp.QuoteMeta("insert into notes (id, tenant_id, owner_id, is_active, created_at, updated_at, content, account_id, contact_id, lead_id, opportunity_id) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)")).
		WithArgs("n1", "t1", "u1", true, t0, t0, "hello", nil, nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Insert(context.Background(), crm.NoteSchema, note))
}

func TestInsertRecordMapsForeignKeyToUnknownOwner(t *testing.T) {
	store, mock := newMockStore(t)
	note := &crm.Note{Content: "hello"}
	*note.Meta() = crm.Base{ID: "n1", TenantID: "t1", OwnerID: "gone", IsActive: true, CreatedAt: t0, UpdatedAt: t0}

	mock.ExpectExec(regexp.QuoteMeta("insert into notes")).
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})

	err := store.Insert(context.Background(), crm.NoteSchema, note)
	var verr *crm.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"ownerId": "unknown owner"}, verr.Fields)
}

func TestUpdateAndDeactivateRequireAMatch(t *testing.T) {
	store, mock := newMockStore(t)
	q := tenancy.Scope{TenantID: "t2"}.ByID("n1", false)
	note := &crm.Note{Content: "changed"}
	*note.Meta() = crm.Base{ID: "n1", TenantID: "t1", OwnerID: "u1", UpdatedAt: t0}

	mock.ExpectExec(regexp.QuoteMeta("update notes set owner_id = $1, updated_at = $2, content = $3, account_id = $4, contact_id = $5, lead_id = $6, opportunity_id = $7 where tenant_id = $8 AND is_active = $9 AND id = $10")).
		WithArgs("u1", t0, "changed", nil, nil, nil, nil, "t2", true, "n1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("update notes set is_active = false, updated_at = $1 where tenant_id = $2 AND is_active = $3 AND id = $4")).
		WithArgs(t0, "t2", true, "n1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, store.Update(context.Background(), crm.NoteSchema, q, note), crm.ErrNotFound)
	require.ErrorIs(t, store.Deactivate(context.Background(), crm.NoteSchema, q, t0), crm.ErrNotFound)
}

func TestAppendAuditWritesNulls(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("insert into audit_logs")).
		WithArgs("e1", nil, nil, "LOGIN_FAILED", "users", nil, nil, []byte(`{"email":"x@y.z"}`), "10.0.0.1", nil, "req-1", t0).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Append(context.Background(), audit.Entry{
		ID:           "e1",
		Action:       audit.ActionLoginFailed,
		ResourceType: "users",
		After:        []byte(`{"email":"x@y.z"}`),
		IPAddress:    "10.0.0.1",
		RequestID:    "req-1",
		OccurredAt:   t0,
	})
	require.NoError(t, err)
}

func TestCreateTenantConflict(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("insert into tenants")).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	_, err := store.CreateTenant(context.Background(), auth.Tenant{ID: "t1", Slug: "demo"})
	require.ErrorIs(t, err, auth.ErrConflict)
}
