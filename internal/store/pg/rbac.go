package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tenantcrm.dev/internal/auth"
)

const tenantColumns = `id, name, slug, is_active, created_at, updated_at`

func (s *Store) CreateTenant(ctx context.Context, t auth.Tenant) (auth.Tenant, error) {
	if s.db == nil {
		return auth.Tenant{}, errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into tenants (`+tenantColumns+`)
		values ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.Name, t.Slug, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return auth.Tenant{}, auth.ErrConflict
	}
	if err != nil {
		return auth.Tenant{}, err
	}
	return t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (auth.Tenant, error) {
	return s.tenantWhere(ctx, `id = $1`, id)
}

func (s *Store) FindTenantBySlug(ctx context.Context, slug string) (auth.Tenant, error) {
	return s.tenantWhere(ctx, `slug = $1`, slug)
}

func (s *Store) tenantWhere(ctx context.Context, cond string, arg any) (auth.Tenant, error) {
	if s.db == nil {
		return auth.Tenant{}, errNoDB
	}
	var t auth.Tenant
	err := s.db.QueryRowContext(ctx, `select `+tenantColumns+` from tenants where `+cond, arg).
		Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Tenant{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Tenant{}, err
	}
	return t, nil
}

const userColumns = `id, tenant_id, email, password_hash, first_name, last_name, role_id, is_active, last_login_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u         auth.User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.RoleID, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, err
	}
	if lastLogin.Valid {
		at := lastLogin.Time
		u.LastLoginAt = &at
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u auth.User) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (`+userColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.TenantID, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.RoleID, u.IsActive, u.LastLoginAt, u.CreatedAt, u.UpdatedAt)
	switch {
	case isUniqueViolation(err):
		return auth.User{}, auth.ErrConflict
	case isForeignKeyViolation(err):
		return auth.User{}, fmt.Errorf("%w: unknown tenant or role", auth.ErrInvalidInput)
	case err != nil:
		return auth.User{}, err
	}
	return u, nil
}

func (s *Store) FindUser(ctx context.Context, tenantID, id string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where tenant_id = $1 and id = $2
	`, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+` from users where lower(email) = lower($1)
	`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, tenantID string) ([]auth.User, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+` from users where tenant_id = $1 order by email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SetUserActive(ctx context.Context, tenantID, id string, active bool, at time.Time) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		update users set is_active = $3, updated_at = $4
		where tenant_id = $1 and id = $2
		returning `+userColumns,
		tenantID, id, active, at))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return u, err
}

func (s *Store) TouchLogin(ctx context.Context, tenantID, id string, at time.Time) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `
		update users set last_login_at = $3 where tenant_id = $1 and id = $2
	`, tenantID, id, at)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

const roleColumns = `id, tenant_id, name, description, permissions, created_at, updated_at`

func scanRole(row rowScanner) (auth.Role, error) {
	var (
		r        auth.Role
		tenantID sql.NullString
		desc     sql.NullString
		rawPerms []byte
	)
	if err := row.Scan(&r.ID, &tenantID, &r.Name, &desc, &rawPerms, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return auth.Role{}, err
	}
	r.TenantID = tenantID.String
	r.Description = desc.String
	if len(rawPerms) > 0 {
		if err := json.Unmarshal(rawPerms, &r.Permissions); err != nil {
			return auth.Role{}, fmt.Errorf("decode permissions of role %s: %w", r.ID, err)
		}
	}
	return r, nil
}

func (s *Store) CreateRole(ctx context.Context, r auth.Role) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	perms, err := json.Marshal(r.Permissions)
	if err != nil {
		return auth.Role{}, fmt.Errorf("marshal permissions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into roles (`+roleColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, r.ID, nullIfEmpty(r.TenantID), r.Name, nullIfEmpty(r.Description), perms, r.CreatedAt, r.UpdatedAt)
	if isUniqueViolation(err) {
		return auth.Role{}, auth.ErrConflict
	}
	if err != nil {
		return auth.Role{}, err
	}
	return r, nil
}

func (s *Store) FindRole(ctx context.Context, tenantID, id string) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	r, err := scanRole(s.db.QueryRowContext(ctx, `
		select `+roleColumns+` from roles where tenant_id = $1 and id = $2
	`, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	return r, err
}

func (s *Store) ListRoles(ctx context.Context, tenantID string) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+roleColumns+` from roles where tenant_id = $1 order by name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []auth.Role{}
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateRolePermissions(ctx context.Context, tenantID, id string, perms auth.PermissionSet, at time.Time) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return auth.Role{}, fmt.Errorf("marshal permissions: %w", err)
	}
	r, err := scanRole(s.db.QueryRowContext(ctx, `
		update roles set permissions = $3, updated_at = $4
		where tenant_id = $1 and id = $2
		returning `+roleColumns,
		tenantID, id, raw, at))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	return r, err
}
