package crm

import (
	"fmt"
	"sort"

	"tenantcrm.dev/internal/auth"
)

// Schema describes how a record type is stored and queried.
type Schema struct {
	Resource auth.Resource
	Table    string
	// Columns are the record's own columns, matching Entity.Fields.
	Columns []string
	// Search lists the columns matched by the free-text search term.
	Search []string
	// Filters maps list query parameters to columns.
	Filters map[string]string
	// Sortable maps sort keys to columns.
	Sortable map[string]string
	New      func() Entity
}

var registry = map[auth.Resource]Schema{}

func register(s Schema) Schema {
	if _, dup := registry[s.Resource]; dup {
		panic(fmt.Sprintf("crm: schema %s registered twice", s.Resource))
	}
	if s.Filters == nil {
		s.Filters = map[string]string{}
	}
	s.Filters["ownerId"] = "owner_id"
	if s.Sortable == nil {
		s.Sortable = map[string]string{}
	}
	s.Sortable["createdAt"] = "created_at"
	s.Sortable["updatedAt"] = "updated_at"
	registry[s.Resource] = s
	return s
}

// SchemaFor returns the schema registered for resource.
func SchemaFor(resource auth.Resource) (Schema, error) {
	s, ok := registry[resource]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownResource, resource)
	}
	return s, nil
}

// Schemas returns every registered schema ordered by resource name.
func Schemas() []Schema {
	out := make([]Schema, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}
