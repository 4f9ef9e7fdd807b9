package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"tenantcrm.dev/internal/audit"
)

type stubStore struct {
	mu        sync.Mutex
	tenants   map[string]Tenant
	users     map[string]User
	roles     map[string]Role
	roleReads int
	err       error
}

func newStubStore() *stubStore {
	return &stubStore{
		tenants: map[string]Tenant{},
		users:   map[string]User{},
		roles:   map[string]Role{},
	}
}

func (s *stubStore) CreateTenant(_ context.Context, t Tenant) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants[t.ID] = t
	return t, nil
}

func (s *stubStore) GetTenant(_ context.Context, id string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Tenant{}, s.err
	}
	t, ok := s.tenants[id]
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return t, nil
}

func (s *stubStore) FindTenantBySlug(_ context.Context, slug string) (Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			return t, nil
		}
	}
	return Tenant{}, ErrNotFound
}

func (s *stubStore) CreateUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return User{}, ErrConflict
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubStore) FindUser(_ context.Context, tenantID, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return User{}, s.err
	}
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *stubStore) FindUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *stubStore) ListUsers(_ context.Context, tenantID string) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []User
	for _, u := range s.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubStore) SetUserActive(_ context.Context, tenantID, id string, active bool, at time.Time) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return User{}, ErrNotFound
	}
	u.IsActive = active
	u.UpdatedAt = at
	s.users[id] = u
	return u, nil
}

func (s *stubStore) TouchLogin(_ context.Context, tenantID, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.TenantID != tenantID {
		return ErrNotFound
	}
	u.LastLoginAt = &at
	s.users[id] = u
	return nil
}

func (s *stubStore) CreateRole(_ context.Context, r Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID] = r
	return r, nil
}

func (s *stubStore) FindRole(_ context.Context, tenantID, id string) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleReads++
	r, ok := s.roles[id]
	if !ok || r.TenantID != tenantID {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (s *stubStore) ListRoles(_ context.Context, tenantID string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Role
	for _, r := range s.roles {
		if r.TenantID == tenantID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubStore) UpdateRolePermissions(_ context.Context, tenantID, id string, perms PermissionSet, at time.Time) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok || r.TenantID != tenantID {
		return Role{}, ErrNotFound
	}
	r.Permissions = perms
	r.UpdatedAt = at
	s.roles[id] = r
	return r, nil
}

func (s *stubStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roleReads
}

var errStoreDown = errors.New("store down")

type captureSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (c *captureSink) Record(_ context.Context, e audit.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

func (c *captureSink) actions() []audit.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]audit.Action, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.Action)
	}
	return out
}

func (c *captureSink) last() audit.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[len(c.entries)-1]
}

// seedTenant creates a tenant with the built-in roles and one active user
// holding roleName. The password is "password123".
func seedTenant(s *stubStore, tenantID, email, roleName string) (Tenant, User) {
	tenant := Tenant{ID: tenantID, Name: tenantID, Slug: tenantID, IsActive: true}
	s.tenants[tenantID] = tenant
	var roleID string
	for _, tpl := range Templates() {
		tpl.ID = tenantID + "-" + strings.ReplaceAll(strings.ToLower(tpl.Name), " ", "-")
		tpl.TenantID = tenantID
		s.roles[tpl.ID] = tpl
		if tpl.Name == roleName {
			roleID = tpl.ID
		}
	}
	user := User{
		ID:           tenantID + "-" + email,
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: testPasswordHash,
		RoleID:       roleID,
		IsActive:     true,
	}
	s.users[user.ID] = user
	return tenant, user
}

var testPasswordHash = func() string {
	h, err := HashPassword("password123")
	if err != nil {
		panic(err)
	}
	return h
}()
