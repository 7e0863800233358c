package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

const adminUserColumns = `id, username, email, display_name, password_hash, is_active, last_login_at, created_at`

type AdminUserRepository struct {
	db *sql.DB
}

func NewAdminUserRepository(db *sql.DB) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

func scanAdminUser(row rowScanner) (*domain.AdminUser, error) {
	var u domain.AdminUser
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.PasswordHash, &u.IsActive, &u.LastLoginAt, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *AdminUserRepository) GetActiveByUsername(ctx context.Context, username string) (*domain.AdminUser, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users WHERE username = $1 AND is_active = TRUE`, username)
	u, err := scanAdminUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get admin user", err)
		}
		return nil, fmt.Errorf("scan admin user: %w", err)
	}
	return u, nil
}

func (r *AdminUserRepository) GetActiveByID(ctx context.Context, id string) (*domain.AdminUser, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+adminUserColumns+` FROM admin_users WHERE id = $1 AND is_active = TRUE`, id)
	u, err := scanAdminUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("get admin user by id", err)
		}
		return nil, fmt.Errorf("scan admin user: %w", err)
	}
	return u, nil
}

func (r *AdminUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	ok, err := exists(ctx, r.db, `SELECT EXISTS (SELECT 1 FROM admin_users WHERE username = $1)`, username)
	if err != nil {
		return false, fmt.Errorf("check admin user: %w", err)
	}
	return ok, nil
}

func (r *AdminUserRepository) Create(ctx context.Context, user *domain.AdminUser) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO admin_users (id, username, email, display_name, password_hash, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, user.ID, user.Username, user.Email, user.DisplayName, user.PasswordHash, user.IsActive, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return domain.WrapError(domain.ErrConflict, "insert admin user", err)
		}
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

func (r *AdminUserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE admin_users SET last_login_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("touch admin last login: %w", err)
	}
	return nil
}
