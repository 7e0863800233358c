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

var (
	_ ports.AdminAuthenticator    = (*AdminAuthService)(nil)
	_ ports.UploaderAuthenticator = (*UploaderAuthService)(nil)
	_ AuthProvider                = (*LocalPasswordProvider)(nil)
	_ AuthProvider                = (*SSOProvider)(nil)
)

const (
	msgInvalidCredentials = "Invalid username or password"
	msgInvalidUploader    = "Invalid reference code or email address"
	msgNotAuthenticated   = "Not authenticated"

	maxUserAgentLength = 500
)

// AuthProvider resolves admin credentials to an active account.
type AuthProvider interface {
	Name() string
	Authenticate(ctx context.Context, username, password string) (*domain.AdminUser, error)
}

// LocalPasswordProvider checks a username and password against stored argon2 hashes.
type LocalPasswordProvider struct {
	users  ports.AdminUserRepository
	hasher ports.PasswordHasher
}

func NewLocalPasswordProvider(users ports.AdminUserRepository, hasher ports.PasswordHasher) *LocalPasswordProvider {
	return &LocalPasswordProvider{users: users, hasher: hasher}
}

func (p *LocalPasswordProvider) Name() string {
	return "local"
}

func (p *LocalPasswordProvider) Authenticate(ctx context.Context, username, password string) (*domain.AdminUser, error) {
	user, err := p.users.GetActiveByUsername(ctx, username)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.Fail(domain.ErrUnauthorized, msgInvalidCredentials)
		}
		return nil, fmt.Errorf("load admin user: %w", err)
	}
	ok, err := p.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		slog.Error("admin_password_hash_invalid", "admin_user_id", user.ID, "error", err)
		return nil, fmt.Errorf("verify admin password: %w", err)
	}
	if !ok {
		return nil, domain.Fail(domain.ErrUnauthorized, msgInvalidCredentials)
	}
	return user, nil
}

// SSOProvider is the placeholder for federated login. It rejects every attempt until an identity provider is configured.
type SSOProvider struct {
	Issuer string
}

func (p *SSOProvider) Name() string {
	return "sso"
}

func (p *SSOProvider) Authenticate(context.Context, string, string) (*domain.AdminUser, error) {
	return nil, domain.Fail(domain.ErrUnauthorized, "Single sign-on is not available")
}

type AdminAuthService struct {
	provider AuthProvider
	users    ports.AdminUserRepository
	sessions ports.AdminSessionRepository
	tokens   ports.TokenIssuer
	limiter  *RateLimiter
	audit    *Auditor
	ttl      time.Duration
	now      func() time.Time
}

func NewAdminAuthService(
	provider AuthProvider,
	users ports.AdminUserRepository,
	sessions ports.AdminSessionRepository,
	tokens ports.TokenIssuer,
	limiter *RateLimiter,
	audit *Auditor,
	ttl time.Duration,
) *AdminAuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AdminAuthService{
		provider: provider,
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		limiter:  limiter,
		audit:    audit,
		ttl:      ttl,
		now:      utcNow,
	}
}

func (s *AdminAuthService) Login(ctx context.Context, meta domain.RequestMeta, username, password string) (*domain.AdminLogin, error) {
	// Every attempt counts, malformed ones included.
	if err := s.limiter.Check(ctx, meta.ClientIP, EndpointLogin); err != nil {
		return nil, err
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.Fail(domain.ErrInvalidInput, "Username and password are required")
	}

	user, err := s.provider.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now()
	session := &domain.AdminSession{
		ID:          uuid.NewString(),
		AdminUserID: user.ID,
		TokenHash:   s.tokens.Hash(token),
		ExpiresAt:   now.Add(s.ttl),
		IPAddress:   optionalString(meta.ClientIP),
		UserAgent:   optionalString(truncate(meta.UserAgent, maxUserAgentLength)),
		CreatedAt:   now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create admin session: %w", err)
	}
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		slog.Warn("admin_last_login_update_failed", "admin_user_id", user.ID, "error", err)
	} else {
		user.LastLoginAt = &now
	}

	s.audit.Record(ctx, domain.AuditAdminLogin, domain.EntityAdminUser, user.ID,
		actor{kind: domain.ActorAdmin, id: user.ID, ip: meta.ClientIP},
		map[string]any{"provider": s.provider.Name()},
	)
	return &domain.AdminLogin{User: *user, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// Logout ends the session behind token. Unknown tokens are ignored.
func (s *AdminAuthService) Logout(ctx context.Context, meta domain.RequestMeta, token string) error {
	if token == "" {
		return nil
	}
	session, err := s.sessions.Delete(ctx, s.tokens.Hash(token))
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete admin session: %w", err)
	}
	s.audit.Record(ctx, domain.AuditAdminLogout, domain.EntityAdminUser, session.AdminUserID,
		actor{kind: domain.ActorAdmin, id: session.AdminUserID, ip: meta.ClientIP}, nil)
	return nil
}

// Validate resolves token to an active admin. Expired sessions and deactivated accounts look the same.
func (s *AdminAuthService) Validate(ctx context.Context, token string) (*domain.AdminIdentity, error) {
	if token == "" {
		return nil, domain.Fail(domain.ErrUnauthorized, msgNotAuthenticated)
	}
	session, err := s.sessions.GetValid(ctx, s.tokens.Hash(token), s.now())
	if err != nil {
		return nil, unauthenticated("load admin session", err)
	}
	user, err := s.users.GetActiveByID(ctx, session.AdminUserID)
	if err != nil {
		return nil, unauthenticated("load admin user", err)
	}
	return &domain.AdminIdentity{User: *user, SessionID: session.ID, ExpiresAt: session.ExpiresAt}, nil
}

func unauthenticated(op string, err error) error {
	if domain.IsKind(err, domain.ErrNotFound) {
		return domain.Fail(domain.ErrUnauthorized, msgNotAuthenticated)
	}
	return fmt.Errorf("%s: %w", op, err)
}

type UploaderAuthService struct {
	submissions ports.SubmissionRepository
	documents   ports.DocumentRepository
	sessions    ports.UploaderSessionRepository
	tokens      ports.TokenIssuer
	limiter     *RateLimiter
	audit       *Auditor
	ttl         time.Duration
	now         func() time.Time
}

func NewUploaderAuthService(
	submissions ports.SubmissionRepository,
	documents ports.DocumentRepository,
	sessions ports.UploaderSessionRepository,
	tokens ports.TokenIssuer,
	limiter *RateLimiter,
	audit *Auditor,
	ttl time.Duration,
) *UploaderAuthService {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &UploaderAuthService{
		submissions: submissions,
		documents:   documents,
		sessions:    sessions,
		tokens:      tokens,
		limiter:     limiter,
		audit:       audit,
		ttl:         ttl,
		now:         utcNow,
	}
}

// Login authenticates with the reference code and the email given at creation. No password is involved.
func (s *UploaderAuthService) Login(ctx context.Context, meta domain.RequestMeta, slug, email string) (*domain.UploaderLogin, error) {
	if err := s.limiter.Check(ctx, meta.ClientIP, EndpointUploaderLogin); err != nil {
		return nil, err
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	email = strings.ToLower(strings.TrimSpace(email))
	if slug == "" || email == "" {
		return nil, domain.Fail(domain.ErrInvalidInput, "Reference code and email address are required")
	}

	sub, err := s.submissions.FindBySlugAndEmail(ctx, slug, email)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.Fail(domain.ErrUnauthorized, msgInvalidUploader)
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}

	token, err := s.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	now := s.now()
	session := &domain.UploaderSession{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		Email:        email,
		TokenHash:    s.tokens.Hash(token),
		ExpiresAt:    now.Add(s.ttl),
		CreatedAt:    now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create uploader session: %w", err)
	}

	docs, err := s.documents.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	s.audit.Record(ctx, domain.AuditUploaderLogin, domain.EntitySubmission, sub.ID, uploaderActor(session.ID, meta), nil)
	return &domain.UploaderLogin{
		View:  uploaderView(sub, docs, session.ExpiresAt),
		Token: token,
	}, nil
}

func (s *UploaderAuthService) Logout(ctx context.Context, meta domain.RequestMeta, token string) error {
	if token == "" {
		return nil
	}
	session, err := s.sessions.Delete(ctx, s.tokens.Hash(token))
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete uploader session: %w", err)
	}
	s.audit.Record(ctx, domain.AuditUploaderLogout, domain.EntitySubmission, session.SubmissionID, uploaderActor(session.ID, meta), nil)
	return nil
}

func (s *UploaderAuthService) Validate(ctx context.Context, token string) (*domain.UploaderIdentity, error) {
	if token == "" {
		return nil, domain.Fail(domain.ErrUnauthorized, msgNotAuthenticated)
	}
	session, err := s.sessions.GetValid(ctx, s.tokens.Hash(token), s.now())
	if err != nil {
		return nil, unauthenticated("load uploader session", err)
	}
	sub, err := s.submissions.GetByID(ctx, session.SubmissionID)
	if err != nil {
		return nil, unauthenticated("load session submission", err)
	}
	return &domain.UploaderIdentity{
		SubmissionID: sub.ID,
		Slug:         sub.Slug,
		SessionID:    session.ID,
		ExpiresAt:    session.ExpiresAt,
	}, nil
}

func (s *UploaderAuthService) Me(ctx context.Context, token string) (*domain.UploaderView, error) {
	ident, err := s.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	sub, err := s.submissions.GetByID(ctx, ident.SubmissionID)
	if err != nil {
		return nil, unauthenticated("load session submission", err)
	}
	docs, err := s.documents.ListBySubmission(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	view := uploaderView(sub, docs, ident.ExpiresAt)
	return &view, nil
}

func uploaderView(sub *domain.Submission, docs []domain.Document, expiresAt time.Time) domain.UploaderView {
	if docs == nil {
		docs = []domain.Document{}
	}
	return domain.UploaderView{
		SubmissionID:     sub.ID,
		Slug:             sub.Slug,
		Status:           sub.Status,
		Documents:        docs,
		SessionExpiresAt: expiresAt,
	}
}

// authorizeUploader gates changes to a dossier. Drafts accept the slug alone; later stages need a session bound to the submission.
func authorizeUploader(
	ctx context.Context,
	sessions ports.UploaderSessionRepository,
	tokens ports.TokenIssuer,
	sub *domain.Submission,
	token string,
	meta domain.RequestMeta,
	now time.Time,
) (actor, error) {
	if token != "" {
		session, err := sessions.GetValid(ctx, tokens.Hash(token), now)
		switch {
		case err == nil && session.SubmissionID == sub.ID:
			return uploaderActor(session.ID, meta), nil
		case err != nil && !domain.IsKind(err, domain.ErrNotFound):
			return actor{}, fmt.Errorf("load uploader session: %w", err)
		}
	}
	if sub.Status == domain.StatusDraft {
		return publicActor(meta), nil
	}
	return actor{}, domain.Fail(domain.ErrUnauthorized, "Authentication required: log in with your reference code to modify a submitted dossier")
}
