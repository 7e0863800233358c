package domain

import "time"

type AuditAction string

const (
	AuditAdminLogin              AuditAction = "admin_login"
	AuditAdminLogout             AuditAction = "admin_logout"
	AuditUploaderLogin           AuditAction = "uploader_login"
	AuditUploaderLogout          AuditAction = "uploader_logout"
	AuditSubmissionCreated       AuditAction = "submission_created"
	AuditSubmissionUpdated       AuditAction = "submission_updated"
	AuditSubmissionSubmitted     AuditAction = "submission_submitted"
	AuditSubmissionStatusChanged AuditAction = "submission_status_changed"
	AuditSubmissionForwarded     AuditAction = "submission_forwarded"
	AuditSubmissionDeleted       AuditAction = "submission_deleted"
	AuditDocumentUploaded        AuditAction = "document_uploaded"
	AuditDocumentDeleted         AuditAction = "document_deleted"
	AuditSlotBooked              AuditAction = "slot_booked"
	AuditSlotCancelled           AuditAction = "slot_cancelled"
	AuditSlotCreated             AuditAction = "slot_created"
	AuditSlotDeleted             AuditAction = "slot_deleted"
)

type ActorType string

const (
	ActorAdmin    ActorType = "admin"
	ActorUploader ActorType = "uploader"
	ActorPublic   ActorType = "public"
	ActorSystem   ActorType = "system"
)

const (
	EntitySubmission = "submission"
	EntityDocument   = "document"
	EntitySlot       = "calendar_slot"
	EntityAdminUser  = "admin_user"
)

// AuditEntry is append-only.
type AuditEntry struct {
	ID         int64          `json:"id"`
	Action     AuditAction    `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   *string        `json:"entity_id"`
	ActorType  ActorType      `json:"actor_type"`
	ActorID    *string        `json:"actor_id"`
	ActorIP    *string        `json:"actor_ip"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

// SubmissionExport is the JSON export bundle of a dossier.
type SubmissionExport struct {
	Submission Submission    `json:"submission"`
	Documents  []Document    `json:"documents"`
	Meeting    *CalendarSlot `json:"meeting"`
	AuditTrail []AuditEntry  `json:"audit_trail"`
	ExportedAt time.Time     `json:"exported_at"`
}
