package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

var _ ports.SubmissionManager = (*SubmissionService)(nil)

const (
	slugAttempts           = 5
	defaultRetentionMonths = 12

	msgSubmissionNotFound = "Submission not found"
)

type SubmissionService struct {
	submissions     ports.SubmissionRepository
	documents       ports.DocumentRepository
	calendar        ports.CalendarRepository
	storage         ports.ObjectStorage
	notifier        ports.ForwardNotifier
	sanitizer       ports.TextSanitizer
	limiter         *RateLimiter
	audit           *Auditor
	retentionMonths int
	now             func() time.Time
}

func NewSubmissionService(
	submissions ports.SubmissionRepository,
	documents ports.DocumentRepository,
	calendar ports.CalendarRepository,
	storage ports.ObjectStorage,
	notifier ports.ForwardNotifier,
	sanitizer ports.TextSanitizer,
	limiter *RateLimiter,
	audit *Auditor,
	retentionMonths int,
) *SubmissionService {
	if retentionMonths <= 0 {
		retentionMonths = defaultRetentionMonths
	}
	return &SubmissionService{
		submissions:     submissions,
		documents:       documents,
		calendar:        calendar,
		storage:         storage,
		notifier:        notifier,
		sanitizer:       sanitizer,
		limiter:         limiter,
		audit:           audit,
		retentionMonths: retentionMonths,
		now:             utcNow,
	}
}

func (s *SubmissionService) Create(ctx context.Context, meta domain.RequestMeta, in domain.CreateSubmissionInput) (*domain.Submission, error) {
	if err := s.limiter.Check(ctx, meta.ClientIP, EndpointCreateSubmission); err != nil {
		return nil, err
	}
	in.SubmitterName = s.clean(in.SubmitterName)
	in.Organization = s.clean(in.Organization)
	in.SubmitterEmail = trimOptional(in.SubmitterEmail)
	in.OrganizationDepartment = s.cleanOptional(in.OrganizationDepartment)
	if err := domain.ValidateCreateSubmission(in); err != nil {
		return nil, err
	}

	now := s.now()
	for attempt := 1; attempt <= slugAttempts; attempt++ {
		sub := &domain.Submission{
			ID:                     uuid.NewString(),
			Slug:                   domain.NewSlug(now),
			SubmitterName:          in.SubmitterName,
			SubmitterEmail:         in.SubmitterEmail,
			Organization:           in.Organization,
			OrganizationDepartment: in.OrganizationDepartment,
			Status:                 domain.StatusDraft,
			CreatedAt:              now,
			UpdatedAt:              now,
			ExpiresAt:              now.AddDate(0, s.retentionMonths, 0),
		}
		err := s.submissions.Create(ctx, sub)
		if domain.IsKind(err, domain.ErrSlugTaken) {
			slog.Warn("submission_slug_collision", "slug", sub.Slug, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create submission: %w", err)
		}
		s.audit.Record(ctx, domain.AuditSubmissionCreated, domain.EntitySubmission, sub.ID, publicActor(meta),
			map[string]any{"slug": sub.Slug})
		return sub, nil
	}
	return nil, fmt.Errorf("create submission: no unique slug after %d attempts", slugAttempts)
}

func (s *SubmissionService) Get(ctx context.Context, slug string) (*domain.SubmissionDetail, error) {
	if err := domain.ValidateSlug(slug); err != nil {
		return nil, err
	}
	sub, err := s.submissions.GetBySlug(ctx, slug)
	if err != nil {
		return nil, submissionLookupError(err)
	}
	return s.detail(ctx, sub)
}

// Update edits applicant fields. Only drafts can change.
func (s *SubmissionService) Update(ctx context.Context, meta domain.RequestMeta, slug string, patch domain.SubmissionPatch) (*domain.Submission, error) {
	if err := domain.ValidateSlug(slug); err != nil {
		return nil, err
	}
	patch.SubmitterName = s.cleanOptional(patch.SubmitterName)
	patch.Organization = s.cleanOptional(patch.Organization)
	patch.SubmitterEmail = trimOptional(patch.SubmitterEmail)
	patch.OrganizationDepartment = s.cleanOptional(patch.OrganizationDepartment)
	if err := domain.ValidateSubmissionPatch(patch); err != nil {
		return nil, err
	}

	sub, err := s.submissions.UpdateDraft(ctx, slug, patch, s.now())
	if err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			return nil, domain.Fail(domain.ErrConflict, "Submission can only be updated while in draft status")
		}
		return nil, submissionLookupError(err)
	}
	s.audit.Record(ctx, domain.AuditSubmissionUpdated, domain.EntitySubmission, sub.ID, publicActor(meta),
		map[string]any{"fields": patchedFields(patch)})
	return sub, nil
}

func (s *SubmissionService) Submit(ctx context.Context, meta domain.RequestMeta, slug string) (*domain.Submission, error) {
	if err := domain.ValidateSlug(slug); err != nil {
		return nil, err
	}
	sub, err := s.submissions.Submit(ctx, slug, s.now())
	if err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			return nil, domain.Fail(domain.ErrConflict, "Submission has already been submitted")
		}
		return nil, submissionLookupError(err)
	}
	s.audit.Record(ctx, domain.AuditSubmissionSubmitted, domain.EntitySubmission, sub.ID, publicActor(meta),
		map[string]any{"slug": sub.Slug})
	return sub, nil
}

func (s *SubmissionService) GetByID(ctx context.Context, id string) (*domain.SubmissionDetail, error) {
	if err := validateID(id, "submission"); err != nil {
		return nil, err
	}
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, submissionLookupError(err)
	}
	return s.detail(ctx, sub)
}

func (s *SubmissionService) List(ctx context.Context, filter domain.SubmissionFilter) (domain.Page[domain.SubmissionDetail], error) {
	filter = filter.Normalize()
	subs, total, err := s.submissions.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.SubmissionDetail]{}, fmt.Errorf("list submissions: %w", err)
	}
	items := make([]domain.SubmissionDetail, 0, len(subs))
	for i := range subs {
		d, err := s.detail(ctx, &subs[i])
		if err != nil {
			return domain.Page[domain.SubmissionDetail]{}, err
		}
		items = append(items, *d)
	}
	return domain.NewPage(items, total, filter.Page, filter.PerPage), nil
}

// SetStatus overrides the status from any state. Every change is audited with the old and new value.
func (s *SubmissionService) SetStatus(
	ctx context.Context,
	admin *domain.AdminIdentity,
	meta domain.RequestMeta,
	id string,
	status domain.SubmissionStatus,
	notes *string,
) (*domain.Submission, error) {
	if err := validateID(id, "submission"); err != nil {
		return nil, err
	}
	if _, err := domain.ParseSubmissionStatus(string(status)); err != nil {
		return nil, err
	}
	notes = s.cleanOptional(notes)

	sub, previous, err := s.submissions.SetStatus(ctx, id, status, notes, s.now())
	if err != nil {
		return nil, submissionLookupError(err)
	}
	details := map[string]any{
		"old_status": string(previous),
		"new_status": string(status),
	}
	if notes != nil {
		details["notes"] = *notes
	}
	s.audit.Record(ctx, domain.AuditSubmissionStatusChanged, domain.EntitySubmission, sub.ID, adminActor(admin, meta), details)
	return sub, nil
}

// Forward hands a submission to another department. Only submitted, under_review and approved dossiers qualify.
func (s *SubmissionService) Forward(
	ctx context.Context,
	admin *domain.AdminIdentity,
	meta domain.RequestMeta,
	id, forwardTo string,
	notes *string,
) (*domain.Submission, error) {
	if err := validateID(id, "submission"); err != nil {
		return nil, err
	}
	forwardTo = s.clean(forwardTo)
	if forwardTo == "" {
		return nil, domain.Fail(domain.ErrInvalidInput, "forwarded_to is required")
	}
	if len(forwardTo) > 255 {
		return nil, domain.Fail(domain.ErrInvalidInput, "forwarded_to is too long (max 255 characters)")
	}
	notes = s.cleanOptional(notes)

	now := s.now()
	sub, err := s.submissions.Forward(ctx, id, forwardTo, notes, now)
	if err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			return nil, domain.Fail(domain.ErrConflict, "Submission cannot be forwarded from its current status")
		}
		return nil, submissionLookupError(err)
	}

	who := adminActor(admin, meta)
	event := domain.ForwardEvent{
		SubmissionID: sub.ID,
		Slug:         sub.Slug,
		ForwardedTo:  forwardTo,
		Notes:        notes,
		ForwardedBy:  who.id,
		ForwardedAt:  now,
	}
	if s.notifier != nil {
		if err := s.notifier.PublishSubmissionForwarded(ctx, event); err != nil {
			slog.Warn("forward_notification_failed", "submission_id", sub.ID, "error", err)
		}
	}
	s.audit.Record(ctx, domain.AuditSubmissionForwarded, domain.EntitySubmission, sub.ID, who,
		map[string]any{"forwarded_to": forwardTo})
	return sub, nil
}

// Delete removes stored files first, best effort, then the row. Documents and sessions cascade.
func (s *SubmissionService) Delete(ctx context.Context, admin *domain.AdminIdentity, meta domain.RequestMeta, id string) error {
	if err := validateID(id, "submission"); err != nil {
		return err
	}
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return submissionLookupError(err)
	}

	docs, err := s.documents.ListBySubmission(ctx, sub.ID)
	if err != nil {
		slog.Warn("submission_delete_list_documents_failed", "submission_id", sub.ID, "error", err)
	}
	for _, doc := range docs {
		if !doc.IsFile() {
			continue
		}
		if err := s.storage.Remove(ctx, *doc.FilePath); err != nil {
			slog.Warn("submission_delete_file_failed", "submission_id", sub.ID, "document_id", doc.ID, "error", err)
		}
	}
	if err := s.storage.RemoveDir(ctx, sub.Slug); err != nil {
		slog.Warn("submission_delete_dir_failed", "submission_id", sub.ID, "slug", sub.Slug, "error", err)
	}

	if err := s.submissions.Delete(ctx, sub.ID); err != nil {
		return submissionLookupError(err)
	}
	s.audit.Record(ctx, domain.AuditSubmissionDeleted, domain.EntitySubmission, sub.ID, adminActor(admin, meta),
		map[string]any{"slug": sub.Slug, "documents": len(docs)})
	return nil
}

func (s *SubmissionService) Dashboard(ctx context.Context) (*domain.DashboardStats, error) {
	counts, err := s.submissions.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count submissions: %w", err)
	}
	stats := &domain.DashboardStats{SubmissionsByStatus: make(map[domain.SubmissionStatus]int64)}
	for _, status := range domain.SubmissionStatuses() {
		stats.SubmissionsByStatus[status] = counts[status]
		stats.TotalSubmissions += counts[status]
	}
	if stats.TotalDocuments, err = s.documents.Count(ctx); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	if stats.AvailableMeetingSlots, err = s.calendar.CountAvailableFrom(ctx, s.now()); err != nil {
		return nil, fmt.Errorf("count available slots: %w", err)
	}
	return stats, nil
}

func (s *SubmissionService) detail(ctx context.Context, sub *domain.Submission) (*domain.SubmissionDetail, error) {
	docs, err := s.documents.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return &domain.SubmissionDetail{Submission: *sub, Documents: docs}, nil
}

func (s *SubmissionService) clean(v string) string {
	if s.sanitizer == nil {
		return strings.TrimSpace(v)
	}
	return s.sanitizer.Clean(v)
}

func (s *SubmissionService) cleanOptional(v *string) *string {
	if v == nil {
		return nil
	}
	out := s.clean(*v)
	return &out
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if out == "" {
		return nil
	}
	return &out
}

func patchedFields(p domain.SubmissionPatch) []string {
	var out []string
	if p.SubmitterName != nil {
		out = append(out, "submitter_name")
	}
	if p.SubmitterEmail != nil {
		out = append(out, "submitter_email")
	}
	if p.Organization != nil {
		out = append(out, "organization")
	}
	if p.OrganizationDepartment != nil {
		out = append(out, "organization_department")
	}
	return out
}

func submissionLookupError(err error) error {
	if domain.IsKind(err, domain.ErrNotFound) {
		return domain.Fail(domain.ErrNotFound, msgSubmissionNotFound)
	}
	return err
}

func validateID(id, entity string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Failf(domain.ErrInvalidInput, "Invalid %s id", entity)
	}
	return nil
}
