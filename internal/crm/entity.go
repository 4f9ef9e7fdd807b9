// Package crm holds the tenant-scoped sales records and the service that
// reads and writes them on behalf of an authenticated principal.
package crm

import (
	"errors"
	"time"

	"tenantcrm.dev/internal/auth"
	"tenantcrm.dev/internal/tenancy"
)

var (
	// ErrNotFound covers both absent records and records of another tenant.
	ErrNotFound = errors.New("crm: record not found")
	// ErrUnknownResource is returned for a resource with no registered schema.
	ErrUnknownResource = errors.New("crm: unknown resource")
)

// Base carries the columns shared by every tenant-scoped record. Clients
// cannot set any of them except OwnerID.
type Base struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	OwnerID   string    `json:"ownerId"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Meta returns the shared columns.
func (b *Base) Meta() *Base { return b }

// Columns and Fields for the shared part, in the same order.
var baseColumns = []string{
	tenancy.ColumnID,
	tenancy.ColumnTenantID,
	"owner_id",
	tenancy.ColumnIsActive,
	"created_at",
	tenancy.ColumnUpdatedAt,
}

func (b *Base) fields() []any {
	return []any{&b.ID, &b.TenantID, &b.OwnerID, &b.IsActive, &b.CreatedAt, &b.UpdatedAt}
}

// Ref is a link from one record to another record of the same tenant.
type Ref struct {
	Field    string
	Resource auth.Resource
	ID       *string
}

// Entity is implemented by pointers to the record types.
type Entity interface {
	Meta() *Base
	// Fields returns pointers to the record's own columns in Schema.Columns
	// order. They are used both as query arguments and as scan targets.
	Fields() []any
	// Refs lists the record's links to other records.
	Refs() []Ref
}

// AllColumns returns the shared columns followed by the schema's own.
func AllColumns(s Schema) []string {
	return append(append([]string{}, baseColumns...), s.Columns...)
}

// AllFields returns pointers matching AllColumns.
func AllFields(e Entity) []any {
	return append(e.Meta().fields(), e.Fields()...)
}

// Row flattens e for in-process query evaluation.
func Row(s Schema, e Entity) tenancy.Row {
	cols := AllColumns(s)
	vals := AllFields(e)
	row := make(tenancy.Row, len(cols))
	for i, c := range cols {
		row[c] = vals[i]
	}
	return row
}
