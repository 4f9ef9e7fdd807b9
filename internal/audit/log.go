package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Action names a mutating event recorded in the audit log.
type Action string

const (
	ActionCreate                Action = "CREATE"
	ActionUpdate                Action = "UPDATE"
	ActionDelete                Action = "DELETE"
	ActionLogin                 Action = "LOGIN"
	ActionLoginFailed           Action = "LOGIN_FAILED"
	ActionLogout                Action = "LOGOUT"
	ActionRolePermissionsUpdate Action = "ROLE_PERMISSIONS_UPDATE"
	ActionUserDeactivate        Action = "USER_DEACTIVATE"
	ActionTenantOnboard         Action = "TENANT_ONBOARD"
)

// Entry is one append-only audit record. Empty TenantID, ActorID and
// ResourceID are stored as NULL.
type Entry struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenantId,omitempty"`
	ActorID      string          `json:"actorId,omitempty"`
	Action       Action          `json:"action"`
	ResourceType string          `json:"resourceType"`
	ResourceID   string          `json:"resourceId,omitempty"`
	Before       json.RawMessage `json:"before,omitempty"`
	After        json.RawMessage `json:"after,omitempty"`
	IPAddress    string          `json:"ipAddress,omitempty"`
	UserAgent    string          `json:"userAgent,omitempty"`
	RequestID    string          `json:"requestId,omitempty"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Sink accepts audit entries without reporting failures to the caller.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// Snapshot encodes v for the Before/After columns. A value that cannot be
// encoded yields nil rather than failing the audited operation.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

type ctxKey string

const requestMetaKey ctxKey = "audit_request_meta"

// RequestMeta is the client information copied onto every entry recorded
// while serving a request.
type RequestMeta struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// WithRequestMeta attaches request metadata to the context for audit logging.
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	meta.RequestID = strings.TrimSpace(meta.RequestID)
	meta.IPAddress = strings.TrimSpace(meta.IPAddress)
	meta.UserAgent = strings.TrimSpace(meta.UserAgent)
	if meta == (RequestMeta{}) {
		return ctx
	}
	return context.WithValue(ctx, requestMetaKey, meta)
}

// WithRequestID attaches only the request identifier.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	meta := RequestMetaFromContext(ctx)
	meta.RequestID = requestID
	return WithRequestMeta(ctx, meta)
}

// RequestMetaFromContext extracts request metadata if present.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if ctx == nil {
		return RequestMeta{}
	}
	if v, ok := ctx.Value(requestMetaKey).(RequestMeta); ok {
		return v
	}
	return RequestMeta{}
}
