package tenancy

import (
	"errors"
	"strings"

	"tenantcrm.dev/internal/auth"
)

// ErrNoTenant is returned when a scope would have no tenant.
var ErrNoTenant = errors.New("tenancy: principal has no tenant")

// Scope confines data access to one tenant.
type Scope struct {
	TenantID string
}

// ScopeFor derives the scope from the validated principal. There is no way
// to build a Scope from request input.
func ScopeFor(p auth.Principal) (Scope, error) {
	return scopeOf(p.TenantID())
}

// System returns a scope for internal callers that act on a known tenant,
// such as onboarding and seeding.
func System(tenantID string) (Scope, error) {
	return scopeOf(tenantID)
}

func scopeOf(tenantID string) (Scope, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Scope{}, ErrNoTenant
	}
	return Scope{TenantID: tenantID}, nil
}

// Scoped is a Query bound to a tenant.
type Scoped struct {
	tenantID   string
	activeOnly bool
	filters    []Filter
	search     string
	sort       Sort
	page       Page
}

// Apply binds q to the scope. Caller filters on tenant_id are discarded and
// replaced by the scope's tenant; is_active = true is added unless the query
// asks for inactive rows.
func (s Scope) Apply(q Query) Scoped {
	filters := make([]Filter, 0, len(q.Filters))
	for _, f := range q.Filters {
		if strings.EqualFold(strings.TrimSpace(f.Field), ColumnTenantID) {
			continue
		}
		filters = append(filters, f)
	}
	sort := q.Sort
	if sort.Field == "" {
		sort = DefaultSort
	}
	return Scoped{
		tenantID:   s.TenantID,
		activeOnly: !q.IncludeInactive,
		filters:    filters,
		search:     strings.TrimSpace(q.Search),
		sort:       sort,
		page:       q.Page.normalized(),
	}
}

// ByID is the scoped lookup of a single record.
func (s Scope) ByID(id string, includeInactive bool) Scoped {
	return s.Apply(Query{
		Filters:         []Filter{Eq(ColumnID, id)},
		IncludeInactive: includeInactive,
		Page:            Page{Number: 1, Limit: 1},
	})
}

// TenantID returns the bound tenant.
func (s Scoped) TenantID() string { return s.tenantID }

// Page returns the normalised page.
func (s Scoped) Page() Page { return s.page }

// Sort returns the effective ordering.
func (s Scoped) Sort() Sort { return s.sort }

// Conditions returns every filter the query enforces, the tenant and
// activity conditions first.
func (s Scoped) Conditions() []Filter {
	out := make([]Filter, 0, len(s.filters)+2)
	out = append(out, Eq(ColumnTenantID, s.tenantID))
	if s.activeOnly {
		out = append(out, Eq(ColumnIsActive, true))
	}
	return append(out, s.filters...)
}
