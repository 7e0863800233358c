package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

const documentColumns = `id, submission_id, category::text, classification::text, external_url, external_title,
	filename, original_filename, file_path, file_size, mime_type, page_count, description, created_at`

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var category, classification string
	var pageCount sql.NullInt32
	if err := row.Scan(
		&doc.ID, &doc.SubmissionID, &category, &classification, &doc.ExternalURL, &doc.ExternalTitle,
		&doc.Filename, &doc.OriginalFilename, &doc.FilePath, &doc.FileSize, &doc.MimeType, &pageCount, &doc.Description, &doc.CreatedAt,
	); err != nil {
		return nil, err
	}
	doc.Category = domain.DocumentCategory(category)
	doc.Classification = domain.DocumentClassification(classification)
	if pageCount.Valid {
		n := int(pageCount.Int32)
		doc.PageCount = &n
	}
	return &doc, nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	var pageCount any
	if doc.PageCount != nil {
		pageCount = int32(*doc.PageCount)
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, submission_id, category, classification, external_url, external_title,
	filename, original_filename, file_path, file_size, mime_type, page_count, description, created_at
) VALUES ($1,$2,$3::document_category,$4::document_classification,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		doc.ID, doc.SubmissionID, string(doc.Category), string(doc.Classification), doc.ExternalURL, doc.ExternalTitle,
		doc.Filename, doc.OriginalFilename, doc.FilePath, doc.FileSize, doc.MimeType, pageCount, doc.Description, doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) ListBySubmission(ctx context.Context, submissionID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE submission_id = $1
ORDER BY created_at ASC, id ASC
`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// GetForSubmission only finds a document that belongs to the given submission.
func (r *DocumentRepository) GetForSubmission(ctx context.Context, submissionID, documentID string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1 AND submission_id = $2
`, documentID, submissionID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get document", err)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document rows affected: %w", err)
	}
	if affected == 0 {
		return notFound("delete document", sql.ErrNoRows)
	}
	return nil
}

func (r *DocumentRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}
