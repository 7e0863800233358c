package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type RateLimitRepository struct {
	db *sql.DB
}

func NewRateLimitRepository(db *sql.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// RecordIfUnder logs an attempt unless limit attempts already exist after since.
// A transaction-scoped advisory lock on (ip, endpoint) serialises concurrent
// callers, so a burst cannot all read the same count.
func (r *RateLimitRepository) RecordIfUnder(ctx context.Context, ip, endpoint string, at, since time.Time, limit int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin rate limit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || '|' || $2))`, ip, endpoint); err != nil {
		return false, fmt.Errorf("lock rate limit key: %w", err)
	}

	var n int64
	err = tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM rate_limit_attempts
WHERE ip_address = $1 AND endpoint = $2 AND attempted_at > $3
`, ip, endpoint, since).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count rate limit attempts: %w", err)
	}
	if n >= limit {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO rate_limit_attempts (ip_address, endpoint, attempted_at) VALUES ($1,$2,$3)`, ip, endpoint, at); err != nil {
		return false, fmt.Errorf("record rate limit attempt: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit rate limit tx: %w", err)
	}
	return true, nil
}

func (r *RateLimitRepository) CountSince(ctx context.Context, ip, endpoint string, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM rate_limit_attempts
WHERE ip_address = $1 AND endpoint = $2 AND attempted_at > $3
`, ip, endpoint, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rate limit attempts: %w", err)
	}
	return n, nil
}

func (r *RateLimitRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rate_limit_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old rate limit rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old rate limit rows affected: %w", err)
	}
	return n, nil
}
