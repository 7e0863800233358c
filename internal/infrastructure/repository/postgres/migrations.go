package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kirillkom/policy-upload-portal/internal/core/domain"
)

const schemaLockID int64 = 2024031501

type migration struct {
	version string
	ddl     func() string
}

var migrations = []migration{
	{version: "0001_initial_schema", ddl: initialSchema},
	{version: "0002_page_count", ddl: func() string {
		return `ALTER TABLE documents ADD COLUMN IF NOT EXISTS page_count INTEGER CHECK (page_count IS NULL OR page_count >= 0);`
	}},
	{version: "0003_single_booking", ddl: func() string {
		return `CREATE UNIQUE INDEX IF NOT EXISTS uq_calendar_slots_booked_by
	ON calendar_slots(booked_by_submission) WHERE booked_by_submission IS NOT NULL;`
	}},
}

// enumTypes maps each database enum to the Go values it must contain.
func enumTypes() []struct {
	name   string
	values []string
} {
	return []struct {
		name   string
		values []string
	}{
		{"submission_status", toStrings(domain.SubmissionStatuses())},
		{"document_category", toStrings(domain.DocumentCategories())},
		{"document_classification", toStrings(domain.DocumentClassifications())},
	}
}

func toStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func quoteLiterals(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}

func initialSchema() string {
	var b strings.Builder
	for _, e := range enumTypes() {
		fmt.Fprintf(&b, "CREATE TYPE %s AS ENUM (%s);\n", e.name, quoteLiterals(e.values))
	}
	b.WriteString(`
CREATE TABLE submissions (
	id UUID PRIMARY KEY,
	slug VARCHAR(50) NOT NULL,
	submitter_name VARCHAR(255) NOT NULL,
	submitter_email VARCHAR(255),
	organization VARCHAR(255) NOT NULL,
	organization_department VARCHAR(255),
	status submission_status NOT NULL DEFAULT 'draft',
	notes TEXT,
	forwarded_to VARCHAR(255),
	forwarded_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	submitted_at TIMESTAMPTZ,
	expires_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT submissions_slug_key UNIQUE (slug),
	CONSTRAINT submissions_slug_format CHECK (slug ~ '^[a-z0-9]([a-z0-9-]*[a-z0-9])?$')
);
CREATE INDEX idx_submissions_status ON submissions(status);
CREATE INDEX idx_submissions_created_at ON submissions(created_at DESC);
CREATE INDEX idx_submissions_email ON submissions(LOWER(submitter_email));

CREATE TABLE documents (
	id UUID PRIMARY KEY,
	submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	category document_category NOT NULL,
	classification document_classification NOT NULL,
	external_url TEXT,
	external_title TEXT,
	filename TEXT,
	original_filename TEXT,
	file_path TEXT,
	file_size BIGINT,
	mime_type TEXT,
	description TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT documents_never_restricted CHECK (classification <> 'restricted'),
	CONSTRAINT documents_single_source CHECK ((external_url IS NULL) <> (file_path IS NULL)),
	CONSTRAINT documents_formal_law_shape CHECK (
		category <> 'formal_law'
		OR (classification = 'public' AND file_path IS NULL AND filename IS NULL AND external_url IS NOT NULL)
	)
);
CREATE INDEX idx_documents_submission ON documents(submission_id, created_at);

CREATE TABLE admin_users (
	id UUID PRIMARY KEY,
	username VARCHAR(100) NOT NULL UNIQUE,
	email VARCHAR(255),
	display_name VARCHAR(255),
	password_hash TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	last_login_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE admin_sessions (
	id UUID PRIMARY KEY,
	admin_user_id UUID NOT NULL REFERENCES admin_users(id) ON DELETE CASCADE,
	token_hash CHAR(64) NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	ip_address VARCHAR(64),
	user_agent VARCHAR(500),
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX idx_admin_sessions_expires ON admin_sessions(expires_at);

CREATE TABLE uploader_sessions (
	id UUID PRIMARY KEY,
	submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
	email VARCHAR(255) NOT NULL,
	token_hash CHAR(64) NOT NULL UNIQUE,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX idx_uploader_sessions_expires ON uploader_sessions(expires_at);

CREATE TABLE calendar_slots (
	id UUID PRIMARY KEY,
	slot_start TIMESTAMPTZ NOT NULL,
	slot_end TIMESTAMPTZ NOT NULL,
	is_available BOOLEAN NOT NULL DEFAULT TRUE,
	booked_by_submission UUID REFERENCES submissions(id) ON DELETE SET NULL,
	notes TEXT,
	created_by UUID REFERENCES admin_users(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT calendar_slots_order CHECK (slot_end > slot_start)
);
CREATE INDEX idx_calendar_slots_start ON calendar_slots(slot_start);
CREATE INDEX idx_calendar_slots_booked_by ON calendar_slots(booked_by_submission);

CREATE TABLE rate_limit_attempts (
	id BIGSERIAL PRIMARY KEY,
	ip_address VARCHAR(64) NOT NULL,
	endpoint VARCHAR(64) NOT NULL,
	attempted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX idx_rate_limit_attempts_lookup ON rate_limit_attempts(ip_address, endpoint, attempted_at);

CREATE TABLE audit_log (
	id BIGSERIAL PRIMARY KEY,
	action VARCHAR(64) NOT NULL,
	entity_type VARCHAR(64) NOT NULL,
	entity_id VARCHAR(64),
	actor_type VARCHAR(32) NOT NULL,
	actor_id VARCHAR(64),
	actor_ip VARCHAR(64),
	details JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX idx_audit_log_entity ON audit_log(entity_type, entity_id, created_at);
`)
	return b.String()
}

// EnsureSchema applies pending migrations and adds any enum value the code knows but the database lacks.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, tx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if _, err := tx.ExecContext(ctx, m.ddl()); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}

	for _, e := range enumTypes() {
		for _, v := range e.values {
			stmt := fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s", e.name, quoteLiterals([]string{v}))
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sync enum %s: %w", e.name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}
	return applied, nil
}
