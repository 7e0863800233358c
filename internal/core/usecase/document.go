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

var _ ports.DocumentManager = (*DocumentService)(nil)

type UploadPolicy struct {
	MaxUploadSize      int64
	CanonicalLawDomain string
}

type DocumentService struct {
	submissions ports.SubmissionRepository
	documents   ports.DocumentRepository
	sessions    ports.UploaderSessionRepository
	tokens      ports.TokenIssuer
	storage     ports.ObjectStorage
	inspector   ports.DocumentInspector
	sanitizer   ports.TextSanitizer
	audit       *Auditor
	policy      UploadPolicy
	now         func() time.Time
}

func NewDocumentService(
	submissions ports.SubmissionRepository,
	documents ports.DocumentRepository,
	sessions ports.UploaderSessionRepository,
	tokens ports.TokenIssuer,
	storage ports.ObjectStorage,
	inspector ports.DocumentInspector,
	sanitizer ports.TextSanitizer,
	audit *Auditor,
	policy UploadPolicy,
) *DocumentService {
	if policy.MaxUploadSize <= 0 {
		policy.MaxUploadSize = domain.DefaultMaxUploadSize
	}
	if policy.CanonicalLawDomain == "" {
		policy.CanonicalLawDomain = domain.CanonicalLawDomain
	}
	return &DocumentService{
		submissions: submissions,
		documents:   documents,
		sessions:    sessions,
		tokens:      tokens,
		storage:     storage,
		inspector:   inspector,
		sanitizer:   sanitizer,
		audit:       audit,
		policy:      policy,
		now:         utcNow,
	}
}

// Upload stores a file document. Restricted and formal-law uploads are refused before anything is written.
func (s *DocumentService) Upload(ctx context.Context, meta domain.RequestMeta, in domain.UploadInput) (*domain.Document, error) {
	if err := domain.ValidateSlug(in.Slug); err != nil {
		return nil, err
	}
	if in.Category == domain.CategoryFormalLaw {
		return nil, domain.Fail(domain.ErrInvalidInput, "Formal law documents must be submitted as a URL reference")
	}
	if err := domain.ValidateClassificationForUpload(in.Classification); err != nil {
		return nil, err
	}

	sub, who, err := s.authorize(ctx, meta, in.Slug, in.UploaderToken)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateFileUpload(in.MimeType, in.Size, s.policy.MaxUploadSize); err != nil {
		return nil, err
	}
	if err := domain.ValidateFilenameExtensions(in.Filename); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	stored := domain.StoredFilename(id, in.Filename)
	key, size, err := s.storage.Save(ctx, sub.Slug, stored, in.Body, s.policy.MaxUploadSize)
	if err != nil {
		if domain.IsKind(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("save upload: %w", err)
	}

	var pageCount *int
	if s.inspector != nil {
		info, err := s.inspector.Inspect(ctx, key, in.MimeType)
		if err != nil {
			slog.Warn("document_inspect_failed", "submission_id", sub.ID, "document_id", id, "error", err)
		} else {
			pageCount = info.PageCount
		}
	}

	original := in.Filename
	mime := in.MimeType
	doc := &domain.Document{
		ID:               id,
		SubmissionID:     sub.ID,
		Category:         in.Category,
		Classification:   in.Classification,
		Filename:         &stored,
		OriginalFilename: &original,
		FilePath:         &key,
		FileSize:         &size,
		MimeType:         &mime,
		PageCount:        pageCount,
		Description:      s.cleanOptional(in.Description),
		CreatedAt:        s.now(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		if rmErr := s.storage.Remove(ctx, key); rmErr != nil {
			slog.Warn("orphan_upload_cleanup_failed", "key", key, "error", rmErr)
		}
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.audit.Record(ctx, domain.AuditDocumentUploaded, domain.EntityDocument, doc.ID, who, map[string]any{
		"submission_id":  sub.ID,
		"filename":       original,
		"category":       string(doc.Category),
		"classification": string(doc.Classification),
		"file_size":      size,
	})
	return doc, nil
}

// AddFormalLaw records a link to the canonical text of a law. Formal law is always public.
func (s *DocumentService) AddFormalLaw(ctx context.Context, meta domain.RequestMeta, in domain.FormalLawInput) (*domain.Document, error) {
	if err := domain.ValidateSlug(in.Slug); err != nil {
		return nil, err
	}
	if in.Classification != nil {
		if err := domain.ValidateClassificationForUpload(*in.Classification); err != nil {
			return nil, err
		}
	}
	url := strings.TrimSpace(in.ExternalURL)
	if err := domain.ValidateExternalURL(url); err != nil {
		return nil, err
	}

	sub, who, err := s.authorize(ctx, meta, in.Slug, in.UploaderToken)
	if err != nil {
		return nil, err
	}

	if !domain.IsCanonicalLawURL(url, s.policy.CanonicalLawDomain) {
		slog.Warn("formal_law_non_canonical_url", "submission_id", sub.ID, "url", url, "expected_domain", s.policy.CanonicalLawDomain)
	}

	doc := &domain.Document{
		ID:             uuid.NewString(),
		SubmissionID:   sub.ID,
		Category:       domain.CategoryFormalLaw,
		Classification: domain.ClassificationPublic,
		ExternalURL:    &url,
		ExternalTitle:  s.cleanOptional(in.ExternalTitle),
		Description:    s.cleanOptional(in.Description),
		CreatedAt:      s.now(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	s.audit.Record(ctx, domain.AuditDocumentUploaded, domain.EntityDocument, doc.ID, who, map[string]any{
		"submission_id": sub.ID,
		"category":      string(doc.Category),
		"external_url":  url,
	})
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, meta domain.RequestMeta, slug, documentID, uploaderToken string) error {
	if err := domain.ValidateSlug(slug); err != nil {
		return err
	}
	if err := validateID(documentID, "document"); err != nil {
		return err
	}
	sub, who, err := s.authorize(ctx, meta, slug, uploaderToken)
	if err != nil {
		return err
	}

	doc, err := s.documents.GetForSubmission(ctx, sub.ID, documentID)
	if err != nil {
		return documentLookupError(err)
	}
	if err := s.documents.Delete(ctx, doc.ID); err != nil {
		return documentLookupError(err)
	}
	if doc.IsFile() {
		if err := s.storage.Remove(ctx, *doc.FilePath); err != nil {
			slog.Warn("document_file_remove_failed", "document_id", doc.ID, "error", err)
		}
	}

	s.audit.Record(ctx, domain.AuditDocumentDeleted, domain.EntityDocument, doc.ID, who,
		map[string]any{"submission_id": sub.ID})
	return nil
}

func (s *DocumentService) authorize(ctx context.Context, meta domain.RequestMeta, slug, token string) (*domain.Submission, actor, error) {
	sub, err := s.submissions.GetBySlug(ctx, slug)
	if err != nil {
		return nil, actor{}, submissionLookupError(err)
	}
	who, err := authorizeUploader(ctx, s.sessions, s.tokens, sub, token, meta, s.now())
	if err != nil {
		return nil, actor{}, err
	}
	return sub, who, nil
}

func (s *DocumentService) cleanOptional(v *string) *string {
	if v == nil {
		return nil
	}
	out := strings.TrimSpace(*v)
	if s.sanitizer != nil {
		out = s.sanitizer.Clean(out)
	}
	if out == "" {
		return nil
	}
	return &out
}

func documentLookupError(err error) error {
	if domain.IsKind(err, domain.ErrNotFound) {
		return domain.Fail(domain.ErrNotFound, "Document not found")
	}
	return err
}
