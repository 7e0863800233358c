package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

var submissionColumnList = []string{
	"id", "slug", "submitter_name", "submitter_email", "organization", "organization_department",
	"status::text", "notes", "forwarded_to", "forwarded_at", "created_at", "updated_at", "submitted_at", "expires_at",
}

var submissionColumns = prefixColumns("", submissionColumnList)

type SubmissionRepository struct {
	db *sql.DB
}

func NewSubmissionRepository(db *sql.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner, extra ...any) (*domain.Submission, error) {
	var sub domain.Submission
	var status string
	dest := append([]any{}, extra...)
	dest = append(dest,
		&sub.ID, &sub.Slug, &sub.SubmitterName, &sub.SubmitterEmail, &sub.Organization, &sub.OrganizationDepartment,
		&status, &sub.Notes, &sub.ForwardedTo, &sub.ForwardedAt, &sub.CreatedAt, &sub.UpdatedAt, &sub.SubmittedAt, &sub.ExpiresAt,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	sub.Status = domain.SubmissionStatus(status)
	return &sub, nil
}

func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO submissions (
	id, slug, submitter_name, submitter_email, organization, organization_department, status, created_at, updated_at, expires_at
) VALUES ($1,$2,$3,$4,$5,$6,$7::submission_status,$8,$9,$10)
`,
		sub.ID, sub.Slug, sub.SubmitterName, sub.SubmitterEmail, sub.Organization, sub.OrganizationDepartment,
		string(sub.Status), sub.CreatedAt, sub.UpdatedAt, sub.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err, "submissions_slug_key") {
			return domain.WrapError(domain.ErrSlugTaken, "insert submission", err)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) GetBySlug(ctx context.Context, slug string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE slug = $1`, slug)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get submission by slug", err)
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return sub, nil
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get submission by id", err)
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return sub, nil
}

// FindBySlugAndEmail expects both arguments already lowercased.
func (r *SubmissionRepository) FindBySlugAndEmail(ctx context.Context, slug, email string) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+submissionColumns+`
FROM submissions
WHERE LOWER(slug) = $1 AND LOWER(submitter_email) = $2
`, slug, email)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("find submission by slug and email", err)
		}
		return nil, fmt.Errorf("scan submission: %w", err)
	}
	return sub, nil
}

func (r *SubmissionRepository) UpdateDraft(ctx context.Context, slug string, patch domain.SubmissionPatch, at time.Time) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE submissions
SET submitter_name = COALESCE($2, submitter_name),
	submitter_email = COALESCE($3, submitter_email),
	organization = COALESCE($4, organization),
	organization_department = COALESCE($5, organization_department),
	updated_at = $6
WHERE slug = $1 AND status = 'draft'
RETURNING `+submissionColumns,
		slug, patch.SubmitterName, patch.SubmitterEmail, patch.Organization, patch.OrganizationDepartment, at,
	)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrConflict(ctx, "update draft submission", `SELECT EXISTS (SELECT 1 FROM submissions WHERE slug = $1)`, slug)
		}
		return nil, fmt.Errorf("update submission: %w", err)
	}
	return sub, nil
}

func (r *SubmissionRepository) Submit(ctx context.Context, slug string, at time.Time) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE submissions
SET status = 'submitted', submitted_at = $2, updated_at = $2
WHERE slug = $1 AND status = 'draft'
RETURNING `+submissionColumns, slug, at)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrConflict(ctx, "submit submission", `SELECT EXISTS (SELECT 1 FROM submissions WHERE slug = $1)`, slug)
		}
		return nil, fmt.Errorf("submit submission: %w", err)
	}
	return sub, nil
}

// SetStatus is an unguarded override. It returns the status the row had before the update.
func (r *SubmissionRepository) SetStatus(
	ctx context.Context,
	id string,
	status domain.SubmissionStatus,
	notes *string,
	at time.Time,
) (*domain.Submission, domain.SubmissionStatus, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE submissions AS s
SET status = $2::submission_status, notes = COALESCE($3, s.notes), updated_at = $4
FROM (SELECT id, status FROM submissions WHERE id = $1 FOR UPDATE) AS prev
WHERE s.id = prev.id
RETURNING prev.status::text, `+prefixColumns("s", submissionColumnList),
		id, string(status), notes, at,
	)
	var previous string
	sub, err := scanSubmission(row, &previous)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", notFound("set submission status", err)
		}
		return nil, "", fmt.Errorf("set submission status: %w", err)
	}
	return sub, domain.SubmissionStatus(previous), nil
}

func (r *SubmissionRepository) Forward(ctx context.Context, id, forwardTo string, notes *string, at time.Time) (*domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, `
UPDATE submissions
SET status = 'forwarded', forwarded_to = $2, forwarded_at = $4, notes = COALESCE($3, notes), updated_at = $4
WHERE id = $1 AND status IN (`+forwardableStatuses()+`)
RETURNING `+submissionColumns,
		id, forwardTo, notes, at,
	)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.missingOrConflict(ctx, "forward submission", `SELECT EXISTS (SELECT 1 FROM submissions WHERE id = $1)`, id)
		}
		return nil, fmt.Errorf("forward submission: %w", err)
	}
	return sub, nil
}

func forwardableStatuses() string {
	var out []string
	for _, s := range domain.SubmissionStatuses() {
		if s.Forwardable() {
			out = append(out, string(s))
		}
	}
	return quoteLiterals(out)
}

func (r *SubmissionRepository) missingOrConflict(ctx context.Context, op, query string, arg any) error {
	found, err := exists(ctx, r.db, query, arg)
	if err != nil {
		return fmt.Errorf("%s: check existence: %w", op, err)
	}
	if !found {
		return notFound(op, sql.ErrNoRows)
	}
	return domain.WrapError(domain.ErrConflict, op, errors.New("precondition failed"))
}

// Delete removes a submission. Documents and sessions cascade; a booked slot is released.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete submission rows affected: %w", err)
	}
	if affected == 0 {
		return notFound("delete submission", sql.ErrNoRows)
	}
	if err := releaseOrphanedSlots(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete tx: %w", err)
	}
	return nil
}

// DeleteDraftsCreatedBefore removes abandoned drafts in one statement and returns what was removed.
func (r *SubmissionRepository) DeleteDraftsCreatedBefore(ctx context.Context, cutoff time.Time) ([]domain.Submission, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin draft sweep tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
DELETE FROM submissions
WHERE status = 'draft' AND created_at < $1
RETURNING `+submissionColumns, cutoff)
	if err != nil {
		return nil, fmt.Errorf("delete abandoned drafts: %w", err)
	}
	var removed []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan deleted draft: %w", err)
		}
		removed = append(removed, *sub)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate deleted drafts: %w", err)
	}
	_ = rows.Close()

	if len(removed) > 0 {
		if err := releaseOrphanedSlots(ctx, tx); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit draft sweep tx: %w", err)
	}
	return removed, nil
}

// releaseOrphanedSlots restores availability for slots whose booker was deleted (FK set them to NULL).
func releaseOrphanedSlots(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
UPDATE calendar_slots
SET is_available = TRUE
WHERE is_available = FALSE AND booked_by_submission IS NULL
`)
	if err != nil {
		return fmt.Errorf("release orphaned slots: %w", err)
	}
	return nil
}

func (r *SubmissionRepository) List(ctx context.Context, filter domain.SubmissionFilter) ([]domain.Submission, int64, error) {
	filter = filter.Normalize()

	var where []string
	var args []any
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d::submission_status", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(submitter_name ILIKE $%d OR organization ILIKE $%d OR slug ILIKE $%d)", n, n, n))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	pageArgs := append(append([]any{}, args...), filter.PerPage, filter.Offset())
	query := fmt.Sprintf(`SELECT %s FROM submissions%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		submissionColumns, clause, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, query, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0, filter.PerPage)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, total, nil
}

func (r *SubmissionRepository) CountByStatus(ctx context.Context) (map[domain.SubmissionStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status::text, COUNT(*) FROM submissions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.SubmissionStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		out[domain.SubmissionStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	return out, nil
}
