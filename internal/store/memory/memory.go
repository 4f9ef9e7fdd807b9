// Package memory implements every store interface in process. It backs the
// tests and the API when no database is configured.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/crm"
	"tenantcrm.dev/internal/tenancy"
)

// Store is safe for concurrent use. Records are held encoded so that callers
// never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]auth.Tenant
	users   map[string]auth.User
	roles   map[string]auth.Role
	records map[string]map[string][]byte // table -> id -> JSON
	entries []audit.Entry

	auditErr error
}

var (
	_ auth.Store      = (*Store)(nil)
	_ crm.RecordStore = (*Store)(nil)
	_ audit.Store     = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		tenants: make(map[string]auth.Tenant),
		users:   make(map[string]auth.User),
		roles:   make(map[string]auth.Role),
		records: make(map[string]map[string][]byte),
	}
}

// Tenants

func (s *Store) CreateTenant(_ context.Context, t auth.Tenant) (auth.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; ok {
		return auth.Tenant{}, auth.ErrConflict
	}
	for _, existing := range s.tenants {
		if strings.EqualFold(existing.Slug, t.Slug) {
			return auth.Tenant{}, auth.ErrConflict
		}
	}
	s.tenants[t.ID] = t
	return t, nil
}

func (s *Store) GetTenant(_ context.Context, id string) (auth.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return auth.Tenant{}, auth.ErrNotFound
	}
	return t, nil
}

func (s *Store) FindTenantBySlug(_ context.Context, slug string) (auth.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if strings.EqualFold(t.Slug, slug) {
			return t, nil
		}
	}
	return auth.Tenant{}, auth.ErrNotFound
}

// SetTenantActive enables or disables a tenant.
func (s *Store) SetTenantActive(id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return auth.ErrNotFound
	}
	t.IsActive = active
	s.tenants[id] = t
	return nil
}

// Users

func (s *Store) CreateUser(_ context.Context, u auth.User) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[u.TenantID]; !ok {
		return auth.User{}, auth.ErrInvalidInput
	}
	for _, existing := range s.users {
		if existing.ID == u.ID || strings.EqualFold(existing.Email, u.Email) {
			return auth.User{}, auth.ErrConflict
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) FindUser(_ context.Context, tenantID, id string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return auth.User{}, auth.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, tenantID string) ([]auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []auth.User{}
	for _, u := range s.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *Store) SetUserActive(_ context.Context, tenantID, id string, active bool, at time.Time) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return auth.User{}, auth.ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = at
	s.users[id] = u
	return u, nil
}

func (s *Store) TouchLogin(_ context.Context, tenantID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return auth.ErrNotFound
	}
	u.LastLoginAt = &at
	s.users[id] = u
	return nil
}

// Roles

func (s *Store) CreateRole(_ context.Context, r auth.Role) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.ID == r.ID || (existing.TenantID == r.TenantID && strings.EqualFold(existing.Name, r.Name)) {
			return auth.Role{}, auth.ErrConflict
		}
	}
	s.roles[r.ID] = r
	return r, nil
}

func (s *Store) FindRole(_ context.Context, tenantID, id string) (auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok || r.TenantID != tenantID {
		return auth.Role{}, auth.ErrNotFound
	}
	return r, nil
}

func (s *Store) ListRoles(_ context.Context, tenantID string) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []auth.Role{}
	for _, r := range s.roles {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) UpdateRolePermissions(_ context.Context, tenantID, id string, perms auth.PermissionSet, at time.Time) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok || r.TenantID != tenantID {
		return auth.Role{}, auth.ErrNotFound
	}
	r.Permissions = perms
	r.UpdatedAt = at
	s.roles[id] = r
	return r, nil
}

// Records

func (s *Store) rows(schema crm.Schema) ([]tenancy.Row, map[string]crm.Entity, error) {
	table := s.records[schema.Table]
	rows := make([]tenancy.Row, 0, len(table))
	byID := make(map[string]crm.Entity, len(table))
	for id, raw := range table {
		e := schema.New()
		if err := json.Unmarshal(raw, e); err != nil {
			return nil, nil, err
		}
		byID[id] = e
		rows = append(rows, crm.Row(schema, e))
	}
	return rows, byID, nil
}

func (s *Store) List(_ context.Context, schema crm.Schema, q tenancy.Scoped) ([]crm.Entity, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, byID, err := s.rows(schema)
	if err != nil {
		return nil, 0, err
	}
	page, total := q.Select(rows, schema.Search)
	out := make([]crm.Entity, 0, len(page))
	for _, r := range page {
		out = append(out, byID[idOf(r)])
	}
	return out, total, nil
}

func (s *Store) Get(ctx context.Context, schema crm.Schema, q tenancy.Scoped) (crm.Entity, error) {
	items, _, err := s.List(ctx, schema, q)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, crm.ErrNotFound
	}
	return items[0], nil
}

func (s *Store) Insert(_ context.Context, schema crm.Schema, e crm.Entity) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	table, ok := s.records[schema.Table]
	if !ok {
		table = make(map[string][]byte)
		s.records[schema.Table] = table
	}
	id := e.Meta().ID
	if _, dup := table[id]; dup {
		return errors.New("memory: duplicate record id")
	}
	table[id] = raw
	return nil
}

// match finds the single record q selects, under the caller's lock.
func (s *Store) match(schema crm.Schema, q tenancy.Scoped) (crm.Entity, error) {
	rows, byID, err := s.rows(schema)
	if err != nil {
		return nil, err
	}
	page, _ := q.Select(rows, schema.Search)
	if len(page) == 0 {
		return nil, crm.ErrNotFound
	}
	return byID[idOf(page[0])], nil
}

func (s *Store) Update(_ context.Context, schema crm.Schema, q tenancy.Scoped, e crm.Entity) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.match(schema, q)
	if err != nil {
		return err
	}
	s.records[schema.Table][current.Meta().ID] = raw
	return nil
}

func (s *Store) Deactivate(_ context.Context, schema crm.Schema, q tenancy.Scoped, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, err := s.match(schema, q)
	if err != nil {
		return err
	}
	meta := current.Meta()
	meta.IsActive = false
	meta.UpdatedAt = at
	raw, err := json.Marshal(current)
	if err != nil {
		return err
	}
	s.records[schema.Table][meta.ID] = raw
	return nil
}

func idOf(r tenancy.Row) string {
	if p, ok := r[tenancy.ColumnID].(*string); ok && p != nil {
		return *p
	}
	return ""
}

// Audit

// FailAudit makes Append return err until called again with nil.
func (s *Store) FailAudit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditErr = err
}

func (s *Store) Append(_ context.Context, e audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auditErr != nil {
		return s.auditErr
	}
	s.entries = append(s.entries, e)
	return nil
}

// AuditEntries returns the entries recorded for tenantID, oldest first.
func (s *Store) AuditEntries(tenantID string) []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []audit.Entry{}
	for _, e := range s.entries {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out
}
