package usecase

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

var _ ports.SubmissionExporter = (*ExportService)(nil)

type ExportService struct {
	submissions ports.SubmissionRepository
	documents   ports.DocumentRepository
	calendar    ports.CalendarRepository
	auditLog    ports.AuditRepository
	storage     ports.ObjectStorage
	sheets      ports.SpreadsheetWriter
	now         func() time.Time
}

func NewExportService(
	submissions ports.SubmissionRepository,
	documents ports.DocumentRepository,
	calendar ports.CalendarRepository,
	auditLog ports.AuditRepository,
	storage ports.ObjectStorage,
	sheets ports.SpreadsheetWriter,
) *ExportService {
	return &ExportService{
		submissions: submissions,
		documents:   documents,
		calendar:    calendar,
		auditLog:    auditLog,
		storage:     storage,
		sheets:      sheets,
		now:         utcNow,
	}
}

func (s *ExportService) ExportJSON(ctx context.Context, id string) (*domain.SubmissionExport, error) {
	if err := validateID(id, "submission"); err != nil {
		return nil, err
	}
	sub, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		return nil, submissionLookupError(err)
	}
	docs, err := s.documents.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}

	bundle := &domain.SubmissionExport{
		Submission: *sub,
		Documents:  docs,
		AuditTrail: []domain.AuditEntry{},
		ExportedAt: s.now(),
	}
	meeting, err := s.calendar.FindBySubmission(ctx, sub.ID)
	switch {
	case err == nil:
		bundle.Meeting = meeting
	case !domain.IsKind(err, domain.ErrNotFound):
		return nil, fmt.Errorf("find meeting: %w", err)
	}
	trail, err := s.auditLog.ListForEntity(ctx, domain.EntitySubmission, sub.ID)
	if err != nil {
		slog.Warn("export_audit_trail_failed", "submission_id", sub.ID, "error", err)
	} else if trail != nil {
		bundle.AuditTrail = trail
	}
	return bundle, nil
}

// WriteArchive streams a zip with submission.json and every stored file under documents/.
// Files missing from storage are skipped.
func (s *ExportService) WriteArchive(ctx context.Context, bundle *domain.SubmissionExport, w io.Writer) error {
	zw := zip.NewWriter(w)

	manifest, err := zw.CreateHeader(&zip.FileHeader{
		Name:     "submission.json",
		Method:   zip.Deflate,
		Modified: bundle.ExportedAt,
	})
	if err != nil {
		return fmt.Errorf("create manifest entry: %w", err)
	}
	enc := json.NewEncoder(manifest)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	for _, doc := range bundle.Documents {
		if !doc.IsFile() || doc.Filename == nil {
			continue
		}
		if err := s.addFile(ctx, zw, doc); err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				slog.Warn("export_file_missing", "document_id", doc.ID, "error", err)
				continue
			}
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func (s *ExportService) addFile(ctx context.Context, zw *zip.Writer, doc domain.Document) error {
	rc, err := s.storage.Open(ctx, *doc.FilePath)
	if err != nil {
		return err
	}
	defer rc.Close()

	entry, err := zw.CreateHeader(&zip.FileHeader{
		Name:     path.Join("documents", *doc.Filename),
		Method:   zip.Deflate,
		Modified: doc.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("create archive entry: %w", err)
	}
	if _, err := io.Copy(entry, rc); err != nil {
		return fmt.Errorf("copy %s into archive: %w", doc.ID, err)
	}
	return nil
}

// WriteOverview renders every submission matching filter into a spreadsheet, paging through the store.
func (s *ExportService) WriteOverview(ctx context.Context, filter domain.SubmissionFilter, w io.Writer) error {
	filter.Page = 1
	filter.PerPage = domain.MaxPerPage

	var rows []domain.SubmissionDetail
	for {
		subs, total, err := s.submissions.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list submissions: %w", err)
		}
		for _, sub := range subs {
			docs, err := s.documents.ListBySubmission(ctx, sub.ID)
			if err != nil {
				return fmt.Errorf("list documents: %w", err)
			}
			rows = append(rows, domain.SubmissionDetail{Submission: sub, Documents: docs})
		}
		if len(subs) == 0 || int64(filter.Page*filter.PerPage) >= total {
			break
		}
		filter.Page++
	}
	return s.sheets.WriteSubmissionOverview(w, rows, s.now())
}
