package crm

import (
	"time"

	"tenantcrm.dev/internal/auth"
)

type AccountType string

const (
	AccountProspect AccountType = "PROSPECT"
	AccountCustomer AccountType = "CUSTOMER"
	AccountPartner  AccountType = "PARTNER"
	AccountVendor   AccountType = "VENDOR"
	AccountOther    AccountType = "OTHER"
)

type Account struct {
	Base
	Name          string      `json:"name" validate:"required,max=200"`
	Industry      *string     `json:"industry" validate:"omitempty,max=100"`
	Website       *string     `json:"website" validate:"omitempty,url,max=255"`
	Phone         *string     `json:"phone" validate:"omitempty,max=50"`
	Email         *string     `json:"email" validate:"omitempty,email,max=255"`
	Address       *string     `json:"address" validate:"omitempty,max=500"`
	Type          AccountType `json:"type" validate:"required,oneof=PROSPECT CUSTOMER PARTNER VENDOR OTHER"`
	AnnualRevenue *float64    `json:"annualRevenue" validate:"omitempty,min=0"`
	Employees     *int        `json:"employees" validate:"omitempty,min=0"`
}

func (a *Account) Fields() []any {
	return []any{&a.Name, &a.Industry, &a.Website, &a.Phone, &a.Email, &a.Address, &a.Type, &a.AnnualRevenue, &a.Employees}
}

func (a *Account) Refs() []Ref { return nil }

func (a *Account) defaults(time.Time) {
	if a.Type == "" {
		a.Type = AccountProspect
	}
}

var AccountSchema = register(Schema{
	Resource: auth.ResourceAccounts,
	Table:    "accounts",
	Columns:  []string{"name", "industry", "website", "phone", "email", "address", "type", "annual_revenue", "employees"},
	Search:   []string{"name", "industry", "email", "website"},
	Filters:  map[string]string{"type": "type", "industry": "industry"},
	Sortable: map[string]string{"name": "name", "annualRevenue": "annual_revenue", "employees": "employees"},
	New:      func() Entity { return &Account{} },
})

type Contact struct {
	Base
	FirstName string  `json:"firstName" validate:"required,max=100"`
	LastName  string  `json:"lastName" validate:"required,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
	Title     *string `json:"title" validate:"omitempty,max=100"`
	AccountID *string `json:"accountId"`
}

func (c *Contact) Fields() []any {
	return []any{&c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.Title, &c.AccountID}
}

func (c *Contact) Refs() []Ref {
	return []Ref{{Field: "accountId", Resource: auth.ResourceAccounts, ID: c.AccountID}}
}

var ContactSchema = register(Schema{
	Resource: auth.ResourceContacts,
	Table:    "contacts",
	Columns:  []string{"first_name", "last_name", "email", "phone", "title", "account_id"},
	Search:   []string{"first_name", "last_name", "email"},
	Filters:  map[string]string{"accountId": "account_id"},
	Sortable: map[string]string{"firstName": "first_name", "lastName": "last_name"},
	New:      func() Entity { return &Contact{} },
})

type LeadStatus string

const (
	LeadNew         LeadStatus = "NEW"
	LeadContacted   LeadStatus = "CONTACTED"
	LeadQualified   LeadStatus = "QUALIFIED"
	LeadUnqualified LeadStatus = "UNQUALIFIED"
	LeadConverted   LeadStatus = "CONVERTED"
)

type Lead struct {
	Base
	FirstName string     `json:"firstName" validate:"required,max=100"`
	LastName  string     `json:"lastName" validate:"required,max=100"`
	Email     *string    `json:"email" validate:"omitempty,email,max=255"`
	Phone     *string    `json:"phone" validate:"omitempty,max=50"`
	Company   *string    `json:"company" validate:"omitempty,max=200"`
	Source    *string    `json:"source" validate:"omitempty,max=100"`
	Status    LeadStatus `json:"status" validate:"required,oneof=NEW CONTACTED QUALIFIED UNQUALIFIED CONVERTED"`
	Score     int        `json:"score" validate:"min=0,max=100"`
}

func (l *Lead) Fields() []any {
	return []any{&l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.Company, &l.Source, &l.Status, &l.Score}
}

func (l *Lead) Refs() []Ref { return nil }

func (l *Lead) defaults(time.Time) {
	if l.Status == "" {
		l.Status = LeadNew
	}
}

var LeadSchema = register(Schema{
	Resource: auth.ResourceLeads,
	Table:    "leads",
	Columns:  []string{"first_name", "last_name", "email", "phone", "company", "source", "status", "score"},
	Search:   []string{"first_name", "last_name", "email", "company"},
	Filters:  map[string]string{"status": "status", "source": "source"},
	Sortable: map[string]string{"firstName": "first_name", "lastName": "last_name", "score": "score", "company": "company"},
	New:      func() Entity { return &Lead{} },
})

type OpportunityStage string

const (
	StageProspecting   OpportunityStage = "PROSPECTING"
	StageQualification OpportunityStage = "QUALIFICATION"
	StageProposal      OpportunityStage = "PROPOSAL"
	StageNegotiation   OpportunityStage = "NEGOTIATION"
	StageClosedWon     OpportunityStage = "CLOSED_WON"
	StageClosedLost    OpportunityStage = "CLOSED_LOST"
)

type Opportunity struct {
	Base
	Name        string           `json:"name" validate:"required,max=200"`
	AccountID   *string          `json:"accountId"`
	ContactID   *string          `json:"contactId"`
	Amount      *float64         `json:"amount" validate:"omitempty,min=0"`
	Stage       OpportunityStage `json:"stage" validate:"required,oneof=PROSPECTING QUALIFICATION PROPOSAL NEGOTIATION CLOSED_WON CLOSED_LOST"`
	Probability int              `json:"probability" validate:"min=0,max=100"`
	CloseDate   *time.Time       `json:"closeDate"`
}

func (o *Opportunity) Fields() []any {
	return []any{&o.Name, &o.AccountID, &o.ContactID, &o.Amount, &o.Stage, &o.Probability, &o.CloseDate}
}

func (o *Opportunity) Refs() []Ref {
	return []Ref{
		{Field: "accountId", Resource: auth.ResourceAccounts, ID: o.AccountID},
		{Field: "contactId", Resource: auth.ResourceContacts, ID: o.ContactID},
	}
}

func (o *Opportunity) defaults(time.Time) {
	if o.Stage == "" {
		o.Stage = StageProspecting
	}
}

var OpportunitySchema = register(Schema{
	Resource: auth.ResourceOpportunities,
	Table:    "opportunities",
	Columns:  []string{"name", "account_id", "contact_id", "amount", "stage", "probability", "close_date"},
	Search:   []string{"name"},
	Filters:  map[string]string{"stage": "stage", "accountId": "account_id", "contactId": "contact_id"},
	Sortable: map[string]string{"name": "name", "amount": "amount", "closeDate": "close_date", "probability": "probability"},
	New:      func() Entity { return &Opportunity{} },
})

// Links shared by activities, tasks and notes.
type Links struct {
	AccountID     *string `json:"accountId"`
	ContactID     *string `json:"contactId"`
	LeadID        *string `json:"leadId"`
	OpportunityID *string `json:"opportunityId"`
}

func (l *Links) fields() []any {
	return []any{&l.AccountID, &l.ContactID, &l.LeadID, &l.OpportunityID}
}

func (l *Links) refs() []Ref {
	return []Ref{
		{Field: "accountId", Resource: auth.ResourceAccounts, ID: l.AccountID},
		{Field: "contactId", Resource: auth.ResourceContacts, ID: l.ContactID},
		{Field: "leadId", Resource: auth.ResourceLeads, ID: l.LeadID},
		{Field: "opportunityId", Resource: auth.ResourceOpportunities, ID: l.OpportunityID},
	}
}

var (
	linkColumns = []string{"account_id", "contact_id", "lead_id", "opportunity_id"}
	linkFilters = map[string]string{
		"accountId":     "account_id",
		"contactId":     "contact_id",
		"leadId":        "lead_id",
		"opportunityId": "opportunity_id",
	}
)

func withLinks(own []string) []string { return append(own, linkColumns...) }

func linkFiltersWith(extra map[string]string) map[string]string {
	out := make(map[string]string, len(linkFilters)+len(extra))
	for k, v := range linkFilters {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

type ActivityType string

const (
	ActivityCall    ActivityType = "CALL"
	ActivityEmail   ActivityType = "EMAIL"
	ActivityMeeting ActivityType = "MEETING"
	ActivityOther   ActivityType = "OTHER"
)

type Activity struct {
	Base
	Type        ActivityType `json:"type" validate:"required,oneof=CALL EMAIL MEETING OTHER"`
	Subject     string       `json:"subject" validate:"required,max=200"`
	Description *string      `json:"description" validate:"omitempty,max=5000"`
	OccurredAt  time.Time    `json:"occurredAt"`
	Links
}

func (a *Activity) Fields() []any {
	return append([]any{&a.Type, &a.Subject, &a.Description, &a.OccurredAt}, a.Links.fields()...)
}

func (a *Activity) Refs() []Ref { return a.Links.refs() }

func (a *Activity) defaults(now time.Time) {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = now
	}
}

var ActivitySchema = register(Schema{
	Resource: auth.ResourceActivities,
	Table:    "activities",
	Columns:  withLinks([]string{"type", "subject", "description", "occurred_at"}),
	Search:   []string{"subject", "description"},
	Filters:  linkFiltersWith(map[string]string{"type": "type"}),
	Sortable: map[string]string{"occurredAt": "occurred_at", "subject": "subject"},
	New:      func() Entity { return &Activity{} },
})

type TaskStatus string

const (
	TaskTodo       TaskStatus = "TODO"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
	TaskCancelled  TaskStatus = "CANCELLED"
)

type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

type Task struct {
	Base
	Title       string       `json:"title" validate:"required,max=200"`
	Description *string      `json:"description" validate:"omitempty,max=5000"`
	Status      TaskStatus   `json:"status" validate:"required,oneof=TODO IN_PROGRESS DONE CANCELLED"`
	Priority    TaskPriority `json:"priority" validate:"required,oneof=LOW MEDIUM HIGH URGENT"`
	DueDate     *time.Time   `json:"dueDate"`
	Links
}

func (t *Task) Fields() []any {
	return append([]any{&t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate}, t.Links.fields()...)
}

func (t *Task) Refs() []Ref { return t.Links.refs() }

func (t *Task) defaults(time.Time) {
	if t.Status == "" {
		t.Status = TaskTodo
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
}

var TaskSchema = register(Schema{
	Resource: auth.ResourceTasks,
	Table:    "tasks",
	Columns:  withLinks([]string{"title", "description", "status", "priority", "due_date"}),
	Search:   []string{"title", "description"},
	Filters:  linkFiltersWith(map[string]string{"status": "status", "priority": "priority"}),
	Sortable: map[string]string{"title": "title", "dueDate": "due_date", "priority": "priority"},
	New:      func() Entity { return &Task{} },
})

type Note struct {
	Base
	Content string `json:"content" validate:"required,max=10000"`
	Links
}

func (n *Note) Fields() []any {
	return append([]any{&n.Content}, n.Links.fields()...)
}

func (n *Note) Refs() []Ref { return n.Links.refs() }

var NoteSchema = register(Schema{
	Resource: auth.ResourceNotes,
	Table:    "notes",
	Columns:  withLinks([]string{"content"}),
	Search:   []string{"content"},
	Filters:  linkFiltersWith(nil),
	New:      func() Entity { return &Note{} },
})

// defaulter is implemented by records with enum fields that have a default.
type defaulter interface {
	defaults(now time.Time)
}
