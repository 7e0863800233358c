package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO audit_log (action, entity_type, entity_id, actor_type, actor_id, actor_ip, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8)
`,
		string(entry.Action), entry.EntityType, entry.EntityID, string(entry.ActorType), entry.ActorID, entry.ActorIP, string(raw), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListForEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, action, entity_type, entity_id, actor_type, actor_id, actor_ip, details::text, created_at
FROM audit_log
WHERE entity_type = $1 AND entity_id = $2
ORDER BY created_at ASC, id ASC
`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		var action, actorType, rawDetails string
		if err := rows.Scan(&e.ID, &action, &e.EntityType, &e.EntityID, &actorType, &e.ActorID, &e.ActorIP, &rawDetails, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Action = domain.AuditAction(action)
		e.ActorType = domain.ActorType(actorType)
		if rawDetails != "" {
			if err := json.Unmarshal([]byte(rawDetails), &e.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
