package pg

import (
	"context"
	"encoding/json"

	"tenantcrm.dev/internal/audit"
)

func (s *Store) Append(ctx context.Context, e audit.Entry) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_logs (id, tenant_id, actor_id, action, resource_type, resource_id,
			before, after, ip_address, user_agent, request_id, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.ID, nullIfEmpty(e.TenantID), nullIfEmpty(e.ActorID), string(e.Action), e.ResourceType,
		nullIfEmpty(e.ResourceID), jsonOrNull(e.Before), jsonOrNull(e.After),
		nullIfEmpty(e.IPAddress), nullIfEmpty(e.UserAgent), nullIfEmpty(e.RequestID), e.OccurredAt)
	return err
}

func jsonOrNull(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
