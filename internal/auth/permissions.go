package auth

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Resource identifies a kind of tenant-scoped record guarded by permissions.
type Resource string

const (
	ResourceAccounts      Resource = "accounts"
	ResourceContacts      Resource = "contacts"
	ResourceLeads         Resource = "leads"
	ResourceOpportunities Resource = "opportunities"
	ResourceActivities    Resource = "activities"
	ResourceTasks         Resource = "tasks"
	ResourceNotes         Resource = "notes"
	ResourceUsers         Resource = "users"
	ResourceRoles         Resource = "roles"
)

// CRMResources lists the sales record types.
var CRMResources = []Resource{
	ResourceAccounts,
	ResourceContacts,
	ResourceLeads,
	ResourceOpportunities,
	ResourceActivities,
	ResourceTasks,
	ResourceNotes,
}

// KnownResource reports whether r is a resource the API guards.
func KnownResource(r Resource) bool {
	switch r {
	case ResourceUsers, ResourceRoles:
		return true
	}
	for _, c := range CRMResources {
		if c == r {
			return true
		}
	}
	return false
}

// Action is an operation on a resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const wildcard = "*"

func parseAction(raw string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(raw))); a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, raw)
	}
}

// ActionSet is the set of actions granted on one resource. The zero value
// grants nothing.
type ActionSet struct {
	all     bool
	actions map[Action]struct{}
}

// AllActions grants every action.
func AllActions() ActionSet { return ActionSet{all: true} }

// Actions grants exactly the listed actions.
func Actions(actions ...Action) ActionSet {
	set := ActionSet{actions: make(map[Action]struct{}, len(actions))}
	for _, a := range actions {
		set.actions[a] = struct{}{}
	}
	return set
}

// IsAll reports whether the set is the all-actions sentinel.
func (s ActionSet) IsAll() bool { return s.all }

// Allows reports whether the set grants action.
func (s ActionSet) Allows(action Action) bool {
	if s.all {
		return true
	}
	_, ok := s.actions[action]
	return ok
}

func (s ActionSet) list() []string {
	if s.all {
		return []string{wildcard}
	}
	out := make([]string, 0, len(s.actions))
	for a := range s.actions {
		out = append(out, string(a))
	}
	sort.Strings(out)
	return out
}

// PermissionSet maps resources to granted actions, with an optional entry
// that applies to every resource.
type PermissionSet struct {
	anyResource *ActionSet
	resources   map[Resource]ActionSet
}

// NewPermissionSet returns an empty permission set.
func NewPermissionSet() PermissionSet {
	return PermissionSet{resources: make(map[Resource]ActionSet)}
}

// Grant sets the actions allowed on resource.
func (p *PermissionSet) Grant(resource Resource, actions ActionSet) {
	if p.resources == nil {
		p.resources = make(map[Resource]ActionSet)
	}
	p.resources[resource] = actions
}

// GrantAnyResource sets the entry that applies to every resource.
func (p *PermissionSet) GrantAnyResource(actions ActionSet) {
	p.anyResource = &actions
}

// Resources returns the explicitly listed resources, sorted.
func (p PermissionSet) Resources() []Resource {
	out := make([]Resource, 0, len(p.resources))
	for r := range p.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsEmpty reports whether the set grants nothing at all.
func (p PermissionSet) IsEmpty() bool {
	return p.anyResource == nil && len(p.resources) == 0
}

// IsAllowed evaluates a permission check. The any-resource entry only short
// circuits when it grants every action; otherwise the resource's own entry
// decides.
func IsAllowed(set PermissionSet, resource Resource, action Action) bool {
	if set.anyResource != nil && set.anyResource.IsAll() {
		return true
	}
	actions, ok := set.resources[resource]
	if !ok {
		return false
	}
	return actions.Allows(action)
}

// MarshalJSON encodes the set as {"resource": ["action", ...]} using "*" for
// the wildcard entries.
func (p PermissionSet) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(p.resources)+1)
	if p.anyResource != nil {
		out[wildcard] = p.anyResource.list()
	}
	for r, actions := range p.resources {
		out[string(r)] = actions.list()
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the stored form. Unknown actions are rejected.
func (p *PermissionSet) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParsePermissions(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePermissions converts the loosely typed stored form into a PermissionSet.
func ParsePermissions(raw map[string][]string) (PermissionSet, error) {
	set := NewPermissionSet()
	for key, list := range raw {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return PermissionSet{}, fmt.Errorf("%w: empty resource name", ErrInvalidInput)
		}
		actions, err := parseActionList(list)
		if err != nil {
			return PermissionSet{}, err
		}
		if key == wildcard {
			set.GrantAnyResource(actions)
			continue
		}
		set.Grant(Resource(key), actions)
	}
	return set, nil
}

func parseActionList(list []string) (ActionSet, error) {
	var granted []Action
	for _, raw := range list {
		if strings.TrimSpace(raw) == wildcard {
			return AllActions(), nil
		}
		a, err := parseAction(raw)
		if err != nil {
			return ActionSet{}, err
		}
		granted = append(granted, a)
	}
	return Actions(granted...), nil
}

// Built-in role template names.
const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleSalesRep = "Sales Rep"
	RoleReadOnly = "Read Only"
)

// Templates returns the system-wide role templates copied into every tenant
// at onboarding.
func Templates() []Role {
	admin := NewPermissionSet()
	admin.GrantAnyResource(AllActions())

	manager := NewPermissionSet()
	for _, r := range CRMResources {
		manager.Grant(r, AllActions())
	}
	manager.Grant(ResourceUsers, Actions(ActionRead))
	manager.Grant(ResourceRoles, Actions(ActionRead))

	rep := NewPermissionSet()
	for _, r := range CRMResources {
		rep.Grant(r, Actions(ActionCreate, ActionRead, ActionUpdate))
	}

	readOnly := NewPermissionSet()
	for _, r := range CRMResources {
		readOnly.Grant(r, Actions(ActionRead))
	}

	return []Role{
		{Name: RoleAdmin, Description: "Full access to every resource", Permissions: admin},
		{Name: RoleManager, Description: "Manage all sales records and view the team", Permissions: manager},
		{Name: RoleSalesRep, Description: "Work sales records without deleting them", Permissions: rep},
		{Name: RoleReadOnly, Description: "View sales records", Permissions: readOnly},
	}
}
