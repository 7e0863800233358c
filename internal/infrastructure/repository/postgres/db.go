package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/resilience"
)

type PoolConfig struct {
	MaxOpenConns    int
	AcquireTimeout  time.Duration
	ConnectAttempts int
	ConnectBackoff  time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    10,
		AcquireTimeout:  5 * time.Second,
		ConnectAttempts: 5,
		ConnectBackoff:  2 * time.Second,
	}
}

// OpenDB connects through the pgx stdlib driver, retrying the first ping with linear backoff.
func OpenDB(ctx context.Context, dsn string, pool PoolConfig) (*sql.DB, error) {
	def := DefaultPoolConfig()
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = def.MaxOpenConns
	}
	if pool.AcquireTimeout <= 0 {
		pool.AcquireTimeout = def.AcquireTimeout
	}
	if pool.ConnectAttempts <= 0 {
		pool.ConnectAttempts = def.ConnectAttempts
	}
	if pool.ConnectBackoff <= 0 {
		pool.ConnectBackoff = def.ConnectBackoff
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	connCfg.ConnectTimeout = pool.AcquireTimeout

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxOpenConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	guard := resilience.NewGuard(resilience.ConnectPolicy(pool.ConnectAttempts, pool.ConnectBackoff))
	err = guard.Do(ctx, "postgres.connect", connectVerdict, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, pool.AcquireTimeout)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func connectVerdict(err error) resilience.Verdict {
	if errors.Is(err, context.Canceled) {
		return resilience.Abort
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "28") {
		// invalid credentials will not heal by waiting
		return resilience.Fail
	}
	return resilience.Retry
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func notFound(op string, err error) error {
	return domain.WrapError(domain.ErrNotFound, op, err)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exists(ctx context.Context, q queryer, query string, args ...any) (bool, error) {
	var ok bool
	if err := q.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func prefixColumns(alias string, columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		if alias == "" {
			out[i] = c
			continue
		}
		if base, cast, ok := strings.Cut(c, "::"); ok {
			out[i] = alias + "." + base + "::" + cast
			continue
		}
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}
