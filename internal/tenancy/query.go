// Package tenancy builds the tenant-scoped data queries every store runs.
// A Query describes what the caller asked for; a Scope derived from the
// authenticated principal turns it into a Scoped query that always carries
// the tenant condition.
package tenancy

import (
	"errors"
	"fmt"
	"regexp"
)

// Op is a filter operator.
type Op string

const (
	OpEq    Op = "eq"
	OpIn    Op = "in"
	OpILike Op = "ilike"
)

// Reserved columns present on every tenant-scoped table.
const (
	ColumnID        = "id"
	ColumnTenantID  = "tenant_id"
	ColumnIsActive  = "is_active"
	ColumnUpdatedAt = "updated_at"
)

// ErrInvalidQuery reports a malformed descriptor, for example an unsafe
// column name.
var ErrInvalidQuery = errors.New("tenancy: invalid query")

// Filter is one condition on a column. For OpIn Value must be a []string;
// for OpILike it is a substring matched case-insensitively.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Eq is shorthand for an equality filter.
func Eq(field string, value any) Filter { return Filter{Field: field, Op: OpEq, Value: value} }

// In is shorthand for a membership filter.
func In(field string, values ...string) Filter { return Filter{Field: field, Op: OpIn, Value: values} }

// ILike is shorthand for a case-insensitive substring filter.
func ILike(field, substr string) Filter { return Filter{Field: field, Op: OpILike, Value: substr} }

// Sort orders results by one column.
type Sort struct {
	Field string
	Desc  bool
}

// DefaultSort is most recently updated first.
var DefaultSort = Sort{Field: ColumnUpdatedAt, Desc: true}

// Query is the caller's description of a list or lookup.
type Query struct {
	Filters []Filter
	Search  string
	Sort    Sort
	Page    Page
	// IncludeInactive lifts the is_active condition. Internal callers only;
	// HTTP handlers never set it.
	IncludeInactive bool
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func validIdent(s string) error {
	if !identRe.MatchString(s) {
		return fmt.Errorf("%w: column %q", ErrInvalidQuery, s)
	}
	return nil
}
