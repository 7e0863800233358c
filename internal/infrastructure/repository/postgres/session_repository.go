package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

const adminSessionColumns = `id, admin_user_id, token_hash, expires_at, ip_address, user_agent, created_at`

type AdminSessionRepository struct {
	db *sql.DB
}

func NewAdminSessionRepository(db *sql.DB) *AdminSessionRepository {
	return &AdminSessionRepository{db: db}
}

func scanAdminSession(row rowScanner) (*domain.AdminSession, error) {
	var s domain.AdminSession
	if err := row.Scan(&s.ID, &s.AdminUserID, &s.TokenHash, &s.ExpiresAt, &s.IPAddress, &s.UserAgent, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *AdminSessionRepository) Create(ctx context.Context, s *domain.AdminSession) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO admin_sessions (id, admin_user_id, token_hash, expires_at, ip_address, user_agent, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, s.ID, s.AdminUserID, s.TokenHash, s.ExpiresAt, s.IPAddress, s.UserAgent, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert admin session: %w", err)
	}
	return nil
}

// GetValid returns the session for tokenHash if it has not expired at now.
func (r *AdminSessionRepository) GetValid(ctx context.Context, tokenHash string, now time.Time) (*domain.AdminSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+adminSessionColumns+`
FROM admin_sessions
WHERE token_hash = $1 AND expires_at > $2
`, tokenHash, now)
	s, err := scanAdminSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get admin session", err)
		}
		return nil, fmt.Errorf("scan admin session: %w", err)
	}
	return s, nil
}

func (r *AdminSessionRepository) Delete(ctx context.Context, tokenHash string) (*domain.AdminSession, error) {
	row := r.db.QueryRowContext(ctx, `DELETE FROM admin_sessions WHERE token_hash = $1 RETURNING `+adminSessionColumns, tokenHash)
	s, err := scanAdminSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("delete admin session", err)
		}
		return nil, fmt.Errorf("delete admin session: %w", err)
	}
	return s, nil
}

func (r *AdminSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpired(ctx, r.db, "admin_sessions", now)
}

const uploaderSessionColumns = `id, submission_id, email, token_hash, expires_at, created_at`

type UploaderSessionRepository struct {
	db *sql.DB
}

func NewUploaderSessionRepository(db *sql.DB) *UploaderSessionRepository {
	return &UploaderSessionRepository{db: db}
}

func scanUploaderSession(row rowScanner) (*domain.UploaderSession, error) {
	var s domain.UploaderSession
	if err := row.Scan(&s.ID, &s.SubmissionID, &s.Email, &s.TokenHash, &s.ExpiresAt, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *UploaderSessionRepository) Create(ctx context.Context, s *domain.UploaderSession) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO uploader_sessions (id, submission_id, email, token_hash, expires_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, s.ID, s.SubmissionID, s.Email, s.TokenHash, s.ExpiresAt, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert uploader session: %w", err)
	}
	return nil
}

func (r *UploaderSessionRepository) GetValid(ctx context.Context, tokenHash string, now time.Time) (*domain.UploaderSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+uploaderSessionColumns+`
FROM uploader_sessions
WHERE token_hash = $1 AND expires_at > $2
`, tokenHash, now)
	s, err := scanUploaderSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get uploader session", err)
		}
		return nil, fmt.Errorf("scan uploader session: %w", err)
	}
	return s, nil
}

func (r *UploaderSessionRepository) Delete(ctx context.Context, tokenHash string) (*domain.UploaderSession, error) {
	row := r.db.QueryRowContext(ctx, `DELETE FROM uploader_sessions WHERE token_hash = $1 RETURNING `+uploaderSessionColumns, tokenHash)
	s, err := scanUploaderSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("delete uploader session", err)
		}
		return nil, fmt.Errorf("delete uploader session: %w", err)
	}
	return s, nil
}

func (r *UploaderSessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return deleteExpired(ctx, r.db, "uploader_sessions", now)
}

// table is always a compile-time constant.
func deleteExpired(ctx context.Context, db *sql.DB, table string, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM `+table+` WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired %s rows affected: %w", table, err)
	}
	return n, nil
}
