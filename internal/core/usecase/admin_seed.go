package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
)

type AdminSeed struct {
	Username string
	Password string
	Email    string
}

// EnsureAdminUser creates the configured admin account on first start. An existing
// account is left alone, so rotating ADMIN_PASSWORD never overwrites a changed password.
func EnsureAdminUser(ctx context.Context, users ports.AdminUserRepository, hasher ports.PasswordHasher, seed AdminSeed) (bool, error) {
	username := strings.TrimSpace(seed.Username)
	if username == "" || seed.Password == "" {
		return false, nil
	}
	if seed.Email != "" && !domain.IsValidEmail(strings.TrimSpace(seed.Email)) {
		return false, domain.Fail(domain.ErrInvalidInput, "ADMIN_EMAIL is not a valid email address")
	}

	exists, err := users.ExistsByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("check admin user: %w", err)
	}
	if exists {
		return false, nil
	}

	hash, err := hasher.Hash(seed.Password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	user := &domain.AdminUser{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    utcNow(),
	}
	if email := strings.TrimSpace(seed.Email); email != "" {
		user.Email = &email
	}
	if err := users.Create(ctx, user); err != nil {
		if domain.IsKind(err, domain.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("create admin user: %w", err)
	}
	slog.Info("admin_user_seeded", "username", username)
	return true, nil
}
