package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

type actor struct {
	kind domain.ActorType
	id   string
	ip   string
}

func adminActor(admin *domain.AdminIdentity, meta domain.RequestMeta) actor {
	a := actor{kind: domain.ActorAdmin, ip: meta.ClientIP}
	if admin != nil {
		a.id = admin.User.ID
	}
	return a
}

func uploaderActor(sessionID string, meta domain.RequestMeta) actor {
	return actor{kind: domain.ActorUploader, id: sessionID, ip: meta.ClientIP}
}

func publicActor(meta domain.RequestMeta) actor {
	return actor{kind: domain.ActorPublic, ip: meta.ClientIP}
}

func systemActor() actor {
	return actor{kind: domain.ActorSystem}
}

// Auditor appends audit entries. A failed append is logged and never fails the caller.
type Auditor struct {
	repo ports.AuditRepository
	now  func() time.Time
}

func NewAuditor(repo ports.AuditRepository) *Auditor {
	return &Auditor{repo: repo, now: utcNow}
}

func (a *Auditor) Record(
	ctx context.Context,
	action domain.AuditAction,
	entityType, entityID string,
	who actor,
	details map[string]any,
) {
	if a == nil || a.repo == nil {
		return
	}
	entry := domain.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityID:   optionalString(entityID),
		ActorType:  who.kind,
		ActorID:    optionalString(who.id),
		ActorIP:    optionalString(who.ip),
		Details:    details,
		CreatedAt:  a.now(),
	}
	if err := a.repo.Append(ctx, entry); err != nil {
		slog.Warn("audit_append_failed",
			"action", string(action),
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}
