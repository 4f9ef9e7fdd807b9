package crm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tenantcrm.dev/internal/audit"
	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/ids"
	"tenantcrm.dev/internal/tenancy"
)

// RecordStore persists records of any registered schema. Every method takes
// an already scoped query; implementations must not widen it.
type RecordStore interface {
	List(ctx context.Context, s Schema, q tenancy.Scoped) ([]Entity, int, error)
	// Get returns the first match of q or ErrNotFound.
	Get(ctx context.Context, s Schema, q tenancy.Scoped) (Entity, error)
	Insert(ctx context.Context, s Schema, e Entity) error
	// Update overwrites the record matched by q with e, or returns ErrNotFound.
	Update(ctx context.Context, s Schema, q tenancy.Scoped, e Entity) error
	// Deactivate sets is_active = false on the record matched by q.
	Deactivate(ctx context.Context, s Schema, q tenancy.Scoped, at time.Time) error
}

// UserDirectory resolves owners. auth.Store satisfies it.
type UserDirectory interface {
	FindUser(ctx context.Context, tenantID, id string) (auth.User, error)
}

// Service performs CRUD on one record type for an authenticated principal.
// Permission checks are the caller's job; the service confines every read
// and write to the principal's tenant.
type Service struct {
	schema   Schema
	store    RecordStore
	users    UserDirectory
	audit    audit.Sink
	validate *Validator
	now      func() time.Time
}

// Services builds one Service per registered schema.
func Services(store RecordStore, users UserDirectory, sink audit.Sink) (map[auth.Resource]*Service, error) {
	out := make(map[auth.Resource]*Service, len(registry))
	v := NewValidator()
	for _, s := range Schemas() {
		svc, err := NewService(s, store, users, sink)
		if err != nil {
			return nil, err
		}
		svc.validate = v
		out[s.Resource] = svc
	}
	return out, nil
}

// NewService builds the service for one schema.
func NewService(s Schema, store RecordStore, users UserDirectory, sink audit.Sink) (*Service, error) {
	if store == nil {
		return nil, errors.New("record store is required")
	}
	if users == nil {
		return nil, errors.New("user directory is required")
	}
	if s.New == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, s.Resource)
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Service{
		schema:   s,
		store:    store,
		users:    users,
		audit:    sink,
		validate: NewValidator(),
		now:      time.Now,
	}, nil
}

// SetClock overrides the time source.
func (s *Service) SetClock(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Schema returns the service's record schema.
func (s *Service) Schema() Schema { return s.schema }

// New allocates an empty record of the service's type.
func (s *Service) New() Entity { return s.schema.New() }

func (s *Service) scope(p auth.Principal) (tenancy.Scope, error) {
	return tenancy.ScopeFor(p)
}

// List returns one page of the principal's tenant's records.
func (s *Service) List(ctx context.Context, p auth.Principal, q tenancy.Query) ([]Entity, tenancy.Meta, error) {
	scope, err := s.scope(p)
	if err != nil {
		return nil, tenancy.Meta{}, err
	}
	scoped := scope.Apply(q)
	items, total, err := s.store.List(ctx, s.schema, scoped)
	if err != nil {
		return nil, tenancy.Meta{}, err
	}
	return items, tenancy.NewMeta(scoped.Page(), total), nil
}

// Get returns one active record. A record of another tenant is reported as
// ErrNotFound, exactly like a missing one.
func (s *Service) Get(ctx context.Context, p auth.Principal, id string) (Entity, error) {
	scope, err := s.scope(p)
	if err != nil {
		return nil, err
	}
	if !ids.Valid(id) {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, s.schema, scope.ByID(id, false))
}

// Create stores a new record. decode fills the client-supplied fields;
// system columns are overwritten afterwards.
func (s *Service) Create(ctx context.Context, p auth.Principal, decode func(Entity) error) (Entity, error) {
	scope, err := s.scope(p)
	if err != nil {
		return nil, err
	}
	e := s.schema.New()
	if decode != nil {
		if err := decode(e); err != nil {
			return nil, err
		}
	}
	now := s.now().UTC()
	owner := strings.TrimSpace(e.Meta().OwnerID)
	if owner == "" {
		owner = p.UserID()
	}
	*e.Meta() = Base{
		ID:        ids.New(),
		TenantID:  scope.TenantID,
		OwnerID:   owner,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d, ok := e.(defaulter); ok {
		d.defaults(now)
	}
	if err := s.check(ctx, scope, e); err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, s.schema, e); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		TenantID:     scope.TenantID,
		ActorID:      p.UserID(),
		Action:       audit.ActionCreate,
		ResourceType: string(s.schema.Resource),
		ResourceID:   e.Meta().ID,
		After:        audit.Snapshot(e),
	})
	return e, nil
}

// Update merges the client-supplied fields onto the stored record. Fields
// absent from the input keep their stored values.
func (s *Service) Update(ctx context.Context, p auth.Principal, id string, decode func(Entity) error) (Entity, error) {
	scope, err := s.scope(p)
	if err != nil {
		return nil, err
	}
	if !ids.Valid(id) {
		return nil, ErrNotFound
	}
	q := scope.ByID(id, false)
	e, err := s.store.Get(ctx, s.schema, q)
	if err != nil {
		return nil, err
	}
	before := audit.Snapshot(e)
	stored := *e.Meta()
	if decode != nil {
		if err := decode(e); err != nil {
			return nil, err
		}
	}
	owner := strings.TrimSpace(e.Meta().OwnerID)
	if owner == "" {
		owner = stored.OwnerID
	}
	*e.Meta() = Base{
		ID:        stored.ID,
		TenantID:  stored.TenantID,
		OwnerID:   owner,
		IsActive:  stored.IsActive,
		CreatedAt: stored.CreatedAt,
		UpdatedAt: s.now().UTC(),
	}
	if err := s.check(ctx, scope, e); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, s.schema, q, e); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, audit.Entry{
		TenantID:     scope.TenantID,
		ActorID:      p.UserID(),
		Action:       audit.ActionUpdate,
		ResourceType: string(s.schema.Resource),
		ResourceID:   id,
		Before:       before,
		After:        audit.Snapshot(e),
	})
	return e, nil
}

// Delete soft-deletes a record.
func (s *Service) Delete(ctx context.Context, p auth.Principal, id string) error {
	scope, err := s.scope(p)
	if err != nil {
		return err
	}
	if !ids.Valid(id) {
		return ErrNotFound
	}
	q := scope.ByID(id, false)
	e, err := s.store.Get(ctx, s.schema, q)
	if err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, s.schema, q, s.now().UTC()); err != nil {
		return err
	}
	s.audit.Record(ctx, audit.Entry{
		TenantID:     scope.TenantID,
		ActorID:      p.UserID(),
		Action:       audit.ActionDelete,
		ResourceType: string(s.schema.Resource),
		ResourceID:   id,
		Before:       audit.Snapshot(e),
	})
	return nil
}

// check validates field rules, then the owner and every reference. Owners
// and references outside the tenant are reported exactly like missing ones.
func (s *Service) check(ctx context.Context, scope tenancy.Scope, e Entity) error {
	if err := s.validate.Struct(e); err != nil {
		return err
	}
	verr := &ValidationError{Fields: map[string]string{}}

	owner, err := s.users.FindUser(ctx, scope.TenantID, e.Meta().OwnerID)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		verr.Fields["ownerId"] = "unknown owner"
	case err != nil:
		return fmt.Errorf("load owner: %w", err)
	case !owner.IsActive:
		verr.Fields["ownerId"] = "unknown owner"
	}

	for _, ref := range e.Refs() {
		if ref.ID == nil {
			continue
		}
		id := strings.TrimSpace(*ref.ID)
		ok, err := s.exists(ctx, scope, ref.Resource, id)
		if err != nil {
			return err
		}
		if !ok {
			verr.Fields[ref.Field] = "unknown " + singular(ref.Resource)
		}
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *Service) exists(ctx context.Context, scope tenancy.Scope, resource auth.Resource, id string) (bool, error) {
	if !ids.Valid(id) {
		return false, nil
	}
	target, err := SchemaFor(resource)
	if err != nil {
		return false, err
	}
	_, err = s.store.Get(ctx, target, scope.ByID(id, false))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", singular(resource), err)
	}
	return true, nil
}

func singular(r auth.Resource) string {
	switch r {
	case auth.ResourceActivities:
		return "activity"
	case auth.ResourceOpportunities:
		return "opportunity"
	}
	return strings.TrimSuffix(string(r), "s")
}
