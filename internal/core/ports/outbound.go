package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

// SubmissionRepository persists dossiers. Guarded transitions are single conditional statements.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetBySlug(ctx context.Context, slug string) (*domain.Submission, error)
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	FindBySlugAndEmail(ctx context.Context, slug, email string) (*domain.Submission, error)
	UpdateDraft(ctx context.Context, slug string, patch domain.SubmissionPatch, at time.Time) (*domain.Submission, error)
	Submit(ctx context.Context, slug string, at time.Time) (*domain.Submission, error)
	SetStatus(ctx context.Context, id string, status domain.SubmissionStatus, notes *string, at time.Time) (*domain.Submission, domain.SubmissionStatus, error)
	Forward(ctx context.Context, id, forwardTo string, notes *string, at time.Time) (*domain.Submission, error)
	Delete(ctx context.Context, id string) error
	DeleteDraftsCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Submission, error)
	List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, int64, error)
	CountByStatus(ctx context.Context) (map[domain.SubmissionStatus]int64, error)
}

// DocumentRepository persists document metadata.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	ListBySubmission(ctx context.Context, submissionID string) ([]domain.Document, error)
	GetForSubmission(ctx context.Context, submissionID, documentID string) (*domain.Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

type AdminUserRepository interface {
	GetActiveByUsername(ctx context.Context, username string) (*domain.AdminUser, error)
	GetActiveByID(ctx context.Context, id string) (*domain.AdminUser, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, user *domain.AdminUser) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// AdminSessionRepository stores admin sessions keyed by token hash.
type AdminSessionRepository interface {
	Create(ctx context.Context, session *domain.AdminSession) error
	GetValid(ctx context.Context, tokenHash string, now time.Time) (*domain.AdminSession, error)
	Delete(ctx context.Context, tokenHash string) (*domain.AdminSession, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UploaderSessionRepository stores uploader sessions keyed by token hash.
type UploaderSessionRepository interface {
	Create(ctx context.Context, session *domain.UploaderSession) error
	GetValid(ctx context.Context, tokenHash string, now time.Time) (*domain.UploaderSession, error)
	Delete(ctx context.Context, tokenHash string) (*domain.UploaderSession, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CalendarRepository stores meeting slots. Book and DeleteUnbooked are race-safe.
type CalendarRepository interface {
	Create(ctx context.Context, slot *domain.CalendarSlot) error
	ListRange(ctx context.Context, from, to time.Time, onlyAvailable bool) ([]domain.CalendarSlot, error)
	FindBySubmission(ctx context.Context, submissionID string) (*domain.CalendarSlot, error)
	Book(ctx context.Context, slotID, submissionID string, now time.Time) (*domain.CalendarSlot, error)
	Cancel(ctx context.Context, submissionID string) (*domain.CalendarSlot, error)
	DeleteUnbooked(ctx context.Context, id string) error
	CountAvailableFrom(ctx context.Context, from time.Time) (int64, error)
}

// RateLimitRepository is a log of attempts per client address and endpoint.
type RateLimitRepository interface {
	// RecordIfUnder logs an attempt at `at` only when fewer than limit attempts
	// exist after since, and reports whether it did. Check and insert are atomic
	// per (ip, endpoint).
	RecordIfUnder(ctx context.Context, ip, endpoint string, at, since time.Time, limit int64) (bool, error)
	CountSince(ctx context.Context, ip, endpoint string, since time.Time) (int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListForEntity(ctx context.Context, entityType, entityID string) ([]domain.AuditEntry, error)
}

// ObjectStorage stores uploaded files grouped by directory.
type ObjectStorage interface {
	Save(ctx context.Context, dir, name string, data io.Reader, maxBytes int64) (key string, size int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
	RemoveDir(ctx context.Context, dir string) error
}

// DocumentInspector reads metadata from a stored file.
type DocumentInspector interface {
	Inspect(ctx context.Context, key, mimeType string) (domain.FileInspection, error)
}

// ForwardNotifier announces forwarded submissions to downstream departments.
type ForwardNotifier interface {
	PublishSubmissionForwarded(ctx context.Context, event domain.ForwardEvent) error
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, encoded string) (bool, error)
}

// TokenIssuer generates bearer tokens and the digests under which they are stored.
type TokenIssuer interface {
	Generate() (string, error)
	Hash(token string) string
}

// TextSanitizer strips markup from free text before it is stored.
type TextSanitizer interface {
	Clean(s string) string
}

type SpreadsheetWriter interface {
	WriteSubmissionOverview(w io.Writer, rows []domain.SubmissionDetail, generatedAt time.Time) error
}

type SweepObserver interface {
	ObserveSweep(observation domain.SweepObservation, err error)
}
