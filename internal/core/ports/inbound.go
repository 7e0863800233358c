package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

// SubmissionManager is the inbound contract for the dossier lifecycle.
type SubmissionManager interface {
	Create(ctx context.Context, meta domain.RequestMeta, in domain.CreateSubmissionInput) (*domain.Submission, error)
	Get(ctx context.Context, slug string) (*domain.SubmissionDetail, error)
	Update(ctx context.Context, meta domain.RequestMeta, slug string, patch domain.SubmissionPatch) (*domain.Submission, error)
	Submit(ctx context.Context, meta domain.RequestMeta, slug string) (*domain.Submission, error)
	GetByID(ctx context.Context, id string) (*domain.SubmissionDetail, error)
	List(ctx context.Context, filter domain.SubmissionFilter) (domain.Page[domain.SubmissionDetail], error)
	SetStatus(ctx context.Context, admin *domain.AdminIdentity, meta domain.RequestMeta, id string, status domain.SubmissionStatus, notes *string) (*domain.Submission, error)
	Forward(ctx context.Context, admin *domain.AdminIdentity, meta domain.RequestMeta, id, forwardTo string, notes *string) (*domain.Submission, error)
	Delete(ctx context.Context, admin *domain.AdminIdentity, meta domain.RequestMeta, id string) error
	Dashboard(ctx context.Context) (*domain.DashboardStats, error)
}

// DocumentManager is the inbound contract for adding and removing dossier documents.
type DocumentManager interface {
	Upload(ctx context.Context, meta domain.RequestMeta, in domain.UploadInput) (*domain.Document, error)
	AddFormalLaw(ctx context.Context, meta domain.RequestMeta, in domain.FormalLawInput) (*domain.Document, error)
	Delete(ctx context.Context, meta domain.RequestMeta, slug, documentID, uploaderToken string) error
}

type CalendarManager interface {
	Available(ctx context.Context, from, to *time.Time) ([]domain.CalendarSlot, error)
	Book(ctx context.Context, meta domain.RequestMeta, slug, slotID string) (*domain.CalendarSlot, error)
	Cancel(ctx context.Context, meta domain.RequestMeta, slug string) error
	ListAll(ctx context.Context, from, to *time.Time) ([]domain.CalendarSlot, error)
	CreateSlots(ctx context.Context, admin *domain.AdminIdentity, meta domain.RequestMeta, slots []domain.SlotInput) ([]domain.CalendarSlot, error)
	DeleteSlot(ctx context.Context, admin *domain.AdminIdentity, meta domain.RequestMeta, id string) error
}

type AdminAuthenticator interface {
	Login(ctx context.Context, meta domain.RequestMeta, username, password string) (*domain.AdminLogin, error)
	Logout(ctx context.Context, meta domain.RequestMeta, token string) error
	Validate(ctx context.Context, token string) (*domain.AdminIdentity, error)
}

type UploaderAuthenticator interface {
	Login(ctx context.Context, meta domain.RequestMeta, slug, email string) (*domain.UploaderLogin, error)
	Logout(ctx context.Context, meta domain.RequestMeta, token string) error
	Validate(ctx context.Context, token string) (*domain.UploaderIdentity, error)
	Me(ctx context.Context, token string) (*domain.UploaderView, error)
}

// SubmissionExporter renders dossiers for offline review.
type SubmissionExporter interface {
	ExportJSON(ctx context.Context, id string) (*domain.SubmissionExport, error)
	WriteArchive(ctx context.Context, bundle *domain.SubmissionExport, w io.Writer) error
	WriteOverview(ctx context.Context, filter domain.SubmissionFilter, w io.Writer) error
}
